package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/sidelinehq/sideline/internal/errors"
	"github.com/sidelinehq/sideline/internal/match/domain"
)

var testClock = func() time.Time {
	return time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC)
}

// fakeStore is an in-memory MatchStore with the same revision semantics
// as the SQLite implementation.
type fakeStore struct {
	matches map[string]*domain.Match
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{matches: make(map[string]*domain.Match)}
}

func (f *fakeStore) SaveMatch(_ context.Context, m *domain.Match) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	stored, ok := f.matches[m.ID]
	if m.Revision == 0 {
		clone := *m
		clone.DrainEvents() // persistence never carries queued events
		m.Revision = 1
		clone.Revision = 1
		f.matches[m.ID] = &clone
		return nil
	}
	if !ok {
		return errors.New(errors.CodeMatchNotFound, "match not found")
	}
	if stored.Revision != m.Revision {
		return errors.New(errors.CodeRevisionConflict, "match was modified concurrently")
	}
	clone := *m
	clone.DrainEvents()
	m.Revision++
	clone.Revision = m.Revision
	f.matches[m.ID] = &clone
	return nil
}

func (f *fakeStore) GetMatch(_ context.Context, id string) (*domain.Match, error) {
	m, ok := f.matches[id]
	if !ok {
		return nil, errors.New(errors.CodeMatchNotFound, "match not found")
	}
	clone := *m
	return &clone, nil
}

func (f *fakeStore) GetLiveMatchByChat(_ context.Context, chatID string) (*domain.Match, error) {
	for _, m := range f.matches {
		if m.ChatID == chatID && m.Status == domain.StatusLive {
			clone := *m
			return &clone, nil
		}
	}
	return nil, errors.New(errors.CodeMatchNotFound, "no live match for chat")
}

func (f *fakeStore) ListLiveMatches(_ context.Context) ([]*domain.Match, error) {
	var out []*domain.Match
	for _, m := range f.matches {
		if m.Status == domain.StatusLive {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

type fakePublisher struct {
	events      []domain.Event
	hasDeadline bool
	err         error
}

func (f *fakePublisher) Publish(ctx context.Context, events ...domain.Event) error {
	_, f.hasDeadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

type fakePusher struct {
	states []MatchState
}

func (f *fakePusher) PushState(state MatchState) {
	f.states = append(f.states, state)
}

type fakeAdviser struct {
	text        string
	hasDeadline bool
	err         error
}

func (f *fakeAdviser) Advise(ctx context.Context, _ *domain.Match) (string, error) {
	_, f.hasDeadline = ctx.Deadline()
	return f.text, f.err
}

func newTestService(t *testing.T) (*Service, *fakeStore, *fakePublisher, *fakePusher) {
	t.Helper()
	store := newFakeStore()
	publisher := &fakePublisher{}
	pusher := &fakePusher{}
	svc := New(store, publisher,
		WithRealtime(pusher),
		WithAdviser(&fakeAdviser{text: "Keep serving deep."}),
		WithClock(testClock),
		WithLogger(log.New(io.Discard, "", 0)))
	return svc, store, publisher, pusher
}

func startedMatch(t *testing.T, svc *Service, chatID string) MatchSummary {
	t.Helper()
	summary, err := svc.StartMatch(context.Background(), StartMatchInput{
		ChatID:       chatID,
		TeamAName:    "Eagles",
		TeamBName:    "Hawks",
		CompositionA: []int{1, 2, 3, 4, 5, 6},
		CompositionB: []int{7, 8, 9, 10, 11, 12},
	})
	if err != nil {
		t.Fatalf("start match: %v", err)
	}
	return summary
}

func recordScored(t *testing.T, svc *Service, matchID string, team int) MatchState {
	t.Helper()
	player := 1
	if team == domain.TeamB {
		player = 7
	}
	state, err := svc.RecordEvent(context.Background(), RecordEventInput{
		MatchID:      matchID,
		PlayerNumber: player,
		TeamID:       team,
		ActionType:   "attack",
		Result:       "scored",
	})
	if err != nil {
		t.Fatalf("record scored event: %v", err)
	}
	return state
}

func TestStartMatchPublishesAndReturnsSummary(t *testing.T) {
	svc, store, publisher, _ := newTestService(t)

	summary := startedMatch(t, svc, "chat-1")

	if summary.Status != string(domain.StatusLive) {
		t.Fatalf("status = %s, want LIVE", summary.Status)
	}
	if summary.CurrentSet != 1 || summary.ScoreA != 0 || summary.ScoreB != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("published events = %d, want 1", len(publisher.events))
	}
	if _, ok := publisher.events[0].(domain.MatchStarted); !ok {
		t.Fatalf("expected MatchStarted, got %T", publisher.events[0])
	}
	if _, ok := store.matches[summary.ID]; !ok {
		t.Fatal("match was not persisted")
	}
}

func TestStartMatchRejectsSecondLiveMatchForChat(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	startedMatch(t, svc, "chat-1")

	_, err := svc.StartMatch(context.Background(), StartMatchInput{
		ChatID:       "chat-1",
		TeamAName:    "Other",
		TeamBName:    "Teams",
		CompositionA: []int{1, 2, 3, 4, 5, 6},
		CompositionB: []int{7, 8, 9, 10, 11, 12},
	})
	if !errors.IsCode(err, errors.CodeChatHasLiveMatch) {
		t.Fatalf("err = %v, want code %s", err, errors.CodeChatHasLiveMatch)
	}
}

func TestStartMatchAllowedAfterCompletion(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	summary := startedMatch(t, svc, "chat-1")
	store.matches[summary.ID].Status = domain.StatusCompleted

	startedMatch(t, svc, "chat-1")
}

func TestRecordEventScoredUpdatesStateAndPushes(t *testing.T) {
	svc, _, publisher, pusher := newTestService(t)
	summary := startedMatch(t, svc, "chat-1")
	publisher.events = nil

	state := recordScored(t, svc, summary.ID, domain.TeamA)

	if state.ScoreA != 1 || state.ScoreB != 0 {
		t.Fatalf("score = %d-%d, want 1-0", state.ScoreA, state.ScoreB)
	}
	if len(state.Changes) != 1 || state.Changes[0] != "point_scored" {
		t.Fatalf("changes = %v, want [point_scored]", state.Changes)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("published events = %d, want 1", len(publisher.events))
	}
	if len(pusher.states) != 1 {
		t.Fatalf("pushed states = %d, want 1", len(pusher.states))
	}
	if pusher.states[0].MatchID != summary.ID {
		t.Fatalf("pushed state for %q, want %q", pusher.states[0].MatchID, summary.ID)
	}
}

func TestRecordEventNeutralReportsNoChanges(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	summary := startedMatch(t, svc, "chat-1")

	state, err := svc.RecordEvent(context.Background(), RecordEventInput{
		MatchID:      summary.ID,
		PlayerNumber: 1,
		TeamID:       domain.TeamA,
		ActionType:   "serve",
		Result:       "neutral",
	})
	if err != nil {
		t.Fatalf("record event: %v", err)
	}
	if len(state.Changes) != 0 {
		t.Fatalf("changes = %v, want none", state.Changes)
	}
	if state.ScoreA != 0 || state.ScoreB != 0 {
		t.Fatalf("score = %d-%d, want 0-0", state.ScoreA, state.ScoreB)
	}
}

func TestRecordEventValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	summary := startedMatch(t, svc, "chat-1")

	cases := []struct {
		name  string
		input RecordEventInput
		code  errors.Code
	}{
		{
			name:  "unknown match",
			input: RecordEventInput{MatchID: "missing", PlayerNumber: 1, TeamID: 1, ActionType: "serve", Result: "scored"},
			code:  errors.CodeMatchNotFound,
		},
		{
			name:  "bad team id",
			input: RecordEventInput{MatchID: summary.ID, PlayerNumber: 1, TeamID: 3, ActionType: "serve", Result: "scored"},
			code:  errors.CodeTeamIDInvalid,
		},
		{
			name:  "player not in team",
			input: RecordEventInput{MatchID: summary.ID, PlayerNumber: 7, TeamID: 1, ActionType: "serve", Result: "scored"},
			code:  errors.CodePlayerNotInTeam,
		},
		{
			name:  "player number out of range",
			input: RecordEventInput{MatchID: summary.ID, PlayerNumber: 120, TeamID: 1, ActionType: "serve", Result: "scored"},
			code:  errors.CodePlayerNumberInvalid,
		},
		{
			name:  "unknown action type",
			input: RecordEventInput{MatchID: summary.ID, PlayerNumber: 1, TeamID: 1, ActionType: "spike", Result: "scored"},
			code:  errors.CodeActionTypeUnknown,
		},
		{
			name:  "unknown result",
			input: RecordEventInput{MatchID: summary.ID, PlayerNumber: 1, TeamID: 1, ActionType: "serve", Result: "win"},
			code:  errors.CodeActionResultUnknown,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordEvent(context.Background(), tc.input)
			if !errors.IsCode(err, tc.code) {
				t.Fatalf("err = %v, want code %s", err, tc.code)
			}
		})
	}
}

func TestRecordEventOnCompletedMatchConflicts(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	summary := startedMatch(t, svc, "chat-1")
	store.matches[summary.ID].Status = domain.StatusCompleted

	_, err := svc.RecordEvent(context.Background(), RecordEventInput{
		MatchID:      summary.ID,
		PlayerNumber: 1,
		TeamID:       domain.TeamA,
		ActionType:   "serve",
		Result:       "scored",
	})
	if !errors.IsCode(err, errors.CodeMatchNotLive) {
		t.Fatalf("err = %v, want code %s", err, errors.CodeMatchNotLive)
	}
}

func TestRecordEventSetCompletionTags(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	summary := startedMatch(t, svc, "chat-1")

	var state MatchState
	for i := 0; i < 25; i++ {
		state = recordScored(t, svc, summary.ID, domain.TeamA)
	}

	want := []string{"point_scored", "set_completed"}
	if len(state.Changes) != len(want) || state.Changes[0] != want[0] || state.Changes[1] != want[1] {
		t.Fatalf("changes = %v, want %v", state.Changes, want)
	}
	if state.CurrentSet != 2 {
		t.Fatalf("current set = %d, want 2", state.CurrentSet)
	}
	if state.RotationA != 2 || state.RotationB != 2 {
		t.Fatalf("rotation = %d/%d, want 2/2", state.RotationA, state.RotationB)
	}
}

func TestRecordEventMatchCompletionTags(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	summary := startedMatch(t, svc, "chat-1")

	var state MatchState
	for set := 0; set < 3; set++ {
		for point := 0; point < 25; point++ {
			state = recordScored(t, svc, summary.ID, domain.TeamB)
		}
	}

	want := []string{"point_scored", "set_completed", "match_completed"}
	if len(state.Changes) != 3 || state.Changes[2] != want[2] {
		t.Fatalf("changes = %v, want %v", state.Changes, want)
	}
	if state.Status != string(domain.StatusCompleted) {
		t.Fatalf("status = %s, want COMPLETED", state.Status)
	}
}

func TestRecordEventPublishFailureDoesNotFailCommand(t *testing.T) {
	svc, _, publisher, _ := newTestService(t)
	summary := startedMatch(t, svc, "chat-1")
	publisher.err = fmt.Errorf("broker unreachable")

	state := recordScored(t, svc, summary.ID, domain.TeamA)
	if state.ScoreA != 1 {
		t.Fatalf("score a = %d, want 1", state.ScoreA)
	}
}

func TestRecordEventAcceptsOffsetTimestamp(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	summary := startedMatch(t, svc, "chat-1")

	ts, err := time.Parse(time.RFC3339, "2025-06-01T21:30:00+03:00")
	if err != nil {
		t.Fatalf("parse timestamp: %v", err)
	}
	state, err := svc.RecordEvent(context.Background(), RecordEventInput{
		MatchID:      summary.ID,
		PlayerNumber: 1,
		TeamID:       domain.TeamA,
		ActionType:   "attack",
		Result:       "scored",
		Timestamp:    ts,
	})
	if err != nil {
		t.Fatalf("record event: %v", err)
	}
	if state.ScoreA != 1 {
		t.Fatalf("score a = %d, want 1", state.ScoreA)
	}
}

func TestPublishUsesBoundedContext(t *testing.T) {
	svc, _, publisher, _ := newTestService(t)

	startedMatch(t, svc, "chat-1")
	if !publisher.hasDeadline {
		t.Fatal("publish context has no deadline")
	}
}

func TestRequestAdviceUsesBoundedContext(t *testing.T) {
	store := newFakeStore()
	adviser := &fakeAdviser{text: "Keep serving deep."}
	svc := New(store, &fakePublisher{},
		WithAdviser(adviser),
		WithClock(testClock),
		WithLogger(log.New(io.Discard, "", 0)))
	summary := startedMatch(t, svc, "chat-1")

	if _, err := svc.RequestAdvice(context.Background(), RequestAdviceInput{MatchID: summary.ID}); err != nil {
		t.Fatalf("request advice: %v", err)
	}
	if !adviser.hasDeadline {
		t.Fatal("advice context has no deadline")
	}
}

func TestCompleteMatchDerivedWinner(t *testing.T) {
	svc, _, publisher, _ := newTestService(t)
	summary := startedMatch(t, svc, "chat-1")

	for set := 0; set < 2; set++ {
		for point := 0; point < 25; point++ {
			recordScored(t, svc, summary.ID, domain.TeamA)
		}
	}
	// Two sets are not enough to derive a winner.
	_, err := svc.CompleteMatch(context.Background(), CompleteMatchInput{MatchID: summary.ID})
	if !errors.IsCode(err, errors.CodeWinnerUndetermined) {
		t.Fatalf("err = %v, want code %s", err, errors.CodeWinnerUndetermined)
	}

	for point := 0; point < 25; point++ {
		recordScored(t, svc, summary.ID, domain.TeamA)
	}
	// The third set win completed the match already.
	last := publisher.events[len(publisher.events)-1]
	if _, ok := last.(domain.MatchCompleted); !ok {
		t.Fatalf("expected MatchCompleted published last, got %T", last)
	}
}

func TestCompleteMatchExplicitWinnerValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	summary := startedMatch(t, svc, "chat-1")

	for set := 0; set < 2; set++ {
		for point := 0; point < 25; point++ {
			recordScored(t, svc, summary.ID, domain.TeamA)
		}
	}

	_, err := svc.CompleteMatch(context.Background(), CompleteMatchInput{MatchID: summary.ID, Winner: 3})
	if !errors.IsCode(err, errors.CodeWinnerInvalid) {
		t.Fatalf("err = %v, want code %s", err, errors.CodeWinnerInvalid)
	}

	_, err = svc.CompleteMatch(context.Background(), CompleteMatchInput{MatchID: summary.ID, Winner: domain.TeamA})
	if !errors.IsCode(err, errors.CodeWinnerSetsInsufficient) {
		t.Fatalf("err = %v, want code %s", err, errors.CodeWinnerSetsInsufficient)
	}
}

func TestCompleteMatchNotLiveConflicts(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	summary := startedMatch(t, svc, "chat-1")
	store.matches[summary.ID].Status = domain.StatusCancelled

	_, err := svc.CompleteMatch(context.Background(), CompleteMatchInput{MatchID: summary.ID})
	if !errors.IsCode(err, errors.CodeMatchNotLive) {
		t.Fatalf("err = %v, want code %s", err, errors.CodeMatchNotLive)
	}
}

func TestRequestAdvice(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	summary := startedMatch(t, svc, "chat-1")

	advice, err := svc.RequestAdvice(context.Background(), RequestAdviceInput{MatchID: summary.ID})
	if err != nil {
		t.Fatalf("request advice: %v", err)
	}
	if advice.Advice != "Keep serving deep." {
		t.Fatalf("advice = %q", advice.Advice)
	}
	if advice.MatchID != summary.ID {
		t.Fatalf("advice match id = %q, want %q", advice.MatchID, summary.ID)
	}

	store.matches[summary.ID].Status = domain.StatusCompleted
	_, err = svc.RequestAdvice(context.Background(), RequestAdviceInput{MatchID: summary.ID})
	if !errors.IsCode(err, errors.CodeMatchNotLive) {
		t.Fatalf("err = %v, want code %s", err, errors.CodeMatchNotLive)
	}
}

func TestListLiveMatches(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	first := startedMatch(t, svc, "chat-1")
	startedMatch(t, svc, "chat-2")
	store.matches[first.ID].Status = domain.StatusCompleted

	live, err := svc.ListLiveMatches(context.Background())
	if err != nil {
		t.Fatalf("list live: %v", err)
	}
	if len(live) != 1 {
		t.Fatalf("live matches = %d, want 1", len(live))
	}
	if live[0].ChatID != "chat-2" {
		t.Fatalf("live chat = %q, want chat-2", live[0].ChatID)
	}
}
