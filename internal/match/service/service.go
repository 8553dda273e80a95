// Package service implements the match command handlers. Each handler
// validates input against the loaded aggregate, applies the mutation,
// persists it, and only then publishes the drained domain events and the
// refreshed live state. Publish and push failures are logged, not
// returned: the aggregate is already saved and consumers catch up from
// storage.
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sidelinehq/sideline/internal/errors"
	"github.com/sidelinehq/sideline/internal/match/domain"
	"github.com/sidelinehq/sideline/internal/match/storage"
	"github.com/sidelinehq/sideline/internal/platform/timeouts"
)

// EventPublisher delivers domain events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event) error
}

// StatePusher fans live match state out to realtime subscribers.
type StatePusher interface {
	PushState(state MatchState)
}

// Adviser produces coaching advice for a live match.
type Adviser interface {
	Advise(ctx context.Context, m *domain.Match) (string, error)
}

// Service wires the match command handlers to their collaborators.
type Service struct {
	store     storage.MatchStore
	publisher EventPublisher
	realtime  StatePusher
	adviser   Adviser
	logger    *log.Logger
	clock     func() time.Time
	newID     func() (string, error)
}

// Option customizes a Service.
type Option func(*Service)

// WithRealtime attaches a realtime state pusher.
func WithRealtime(pusher StatePusher) Option {
	return func(s *Service) { s.realtime = pusher }
}

// WithAdviser attaches an advice generator.
func WithAdviser(adviser Adviser) Option {
	return func(s *Service) { s.adviser = adviser }
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the wall clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator overrides match id generation, for tests.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Service) { s.newID = newID }
}

// New creates a match service backed by the given store and publisher.
func New(store storage.MatchStore, publisher EventPublisher, opts ...Option) *Service {
	s := &Service{
		store:     store,
		publisher: publisher,
		logger:    log.Default(),
		clock:     time.Now,
		newID:     domain.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartMatchInput carries the raw fields of a start-match command.
type StartMatchInput struct {
	ChatID       string
	TeamAName    string
	TeamBName    string
	CompositionA []int
	CompositionB []int
}

// StartMatch begins tracking a new match for a chat. A chat can track at
// most one live match at a time.
func (s *Service) StartMatch(ctx context.Context, input StartMatchInput) (MatchSummary, error) {
	existing, err := s.store.GetLiveMatchByChat(ctx, input.ChatID)
	if err != nil && !errors.IsNotFound(err) {
		return MatchSummary{}, fmt.Errorf("check live match: %w", err)
	}
	if existing != nil {
		return MatchSummary{}, errors.WithMetadata(errors.CodeChatHasLiveMatch,
			fmt.Sprintf("chat %s already has a live match", input.ChatID),
			map[string]string{"chat_id": input.ChatID, "match_id": existing.ID})
	}

	m, err := domain.Start(domain.StartInput{
		ChatID:       input.ChatID,
		TeamA:        input.TeamAName,
		TeamB:        input.TeamBName,
		CompositionA: input.CompositionA,
		CompositionB: input.CompositionB,
	}, s.clock, s.newID)
	if err != nil {
		return MatchSummary{}, err
	}

	if err := s.store.SaveMatch(ctx, m); err != nil {
		return MatchSummary{}, fmt.Errorf("save match: %w", err)
	}
	s.publish(ctx, m.DrainEvents())
	return summaryView(m), nil
}

// RecordEventInput carries the raw fields of a record-event command. A
// zero Timestamp means the server clock is used.
type RecordEventInput struct {
	MatchID      string
	PlayerNumber int
	TeamID       int
	ActionType   string
	Result       string
	Timestamp    time.Time
}

// RecordEvent appends a rally action to a live match and returns the
// refreshed state along with what the action changed.
func (s *Service) RecordEvent(ctx context.Context, input RecordEventInput) (MatchState, error) {
	m, err := s.store.GetMatch(ctx, input.MatchID)
	if err != nil {
		return MatchState{}, err
	}
	if !m.IsLive() {
		return MatchState{}, errors.WithMetadata(errors.CodeMatchNotLive,
			fmt.Sprintf("cannot record event: match is %s", m.Status),
			map[string]string{"match_id": m.ID, "status": string(m.Status)})
	}

	if err := domain.ValidateTeamID(input.TeamID); err != nil {
		return MatchState{}, err
	}
	composition, err := m.Composition(input.TeamID)
	if err != nil {
		return MatchState{}, err
	}
	if !composition.Has(input.PlayerNumber) {
		if err := domain.ValidatePlayerNumber(input.PlayerNumber); err != nil {
			return MatchState{}, err
		}
		return MatchState{}, errors.WithMetadata(errors.CodePlayerNotInTeam,
			fmt.Sprintf("player %d is not in team %d", input.PlayerNumber, input.TeamID),
			map[string]string{
				"player": fmt.Sprintf("%d", input.PlayerNumber),
				"team":   fmt.Sprintf("%d", input.TeamID),
			})
	}
	actionType, err := domain.ParseActionType(input.ActionType)
	if err != nil {
		return MatchState{}, err
	}
	result, err := domain.ParseActionResult(input.Result)
	if err != nil {
		return MatchState{}, err
	}

	ts := input.Timestamp
	if ts.IsZero() {
		ts = s.clock().UTC()
	}
	rotation := m.Rotation.A
	if input.TeamID == domain.TeamB {
		rotation = m.Rotation.B
	}
	action, err := domain.NewRallyAction(ts, input.PlayerNumber, input.TeamID, actionType, result, rotation)
	if err != nil {
		return MatchState{}, err
	}

	if err := m.RecordAction(action); err != nil {
		return MatchState{}, err
	}
	if err := s.store.SaveMatch(ctx, m); err != nil {
		return MatchState{}, fmt.Errorf("save match: %w", err)
	}

	events := m.DrainEvents()
	changes := detectChanges(events)
	s.publish(ctx, events)

	state := stateView(m, changes)
	s.pushState(state)
	return state, nil
}

// CompleteMatchInput carries the raw fields of a complete-match command.
// Winner 0 asks the handler to derive the winner from the set history.
type CompleteMatchInput struct {
	MatchID string
	Winner  int
}

// CompleteMatch ends a live match. A supplied winner must name a side
// that has already won three sets.
func (s *Service) CompleteMatch(ctx context.Context, input CompleteMatchInput) (MatchResult, error) {
	m, err := s.store.GetMatch(ctx, input.MatchID)
	if err != nil {
		return MatchResult{}, err
	}
	if !m.IsLive() {
		return MatchResult{}, errors.WithMetadata(errors.CodeMatchNotLive,
			fmt.Sprintf("cannot complete match: match is %s", m.Status),
			map[string]string{"match_id": m.ID, "status": string(m.Status)})
	}

	if input.Winner != 0 {
		if err := validateWinner(m, input.Winner); err != nil {
			return MatchResult{}, err
		}
	}

	if err := m.Complete(input.Winner, s.clock()); err != nil {
		return MatchResult{}, err
	}
	if err := s.store.SaveMatch(ctx, m); err != nil {
		return MatchResult{}, fmt.Errorf("save match: %w", err)
	}

	s.publish(ctx, m.DrainEvents())
	s.pushState(stateView(m, []string{"match_completed"}))
	return resultView(m), nil
}

// RequestAdviceInput identifies the live match advice is wanted for.
type RequestAdviceInput struct {
	MatchID string
}

// RequestAdvice generates coaching advice for a live match.
func (s *Service) RequestAdvice(ctx context.Context, input RequestAdviceInput) (Advice, error) {
	if s.adviser == nil {
		return Advice{}, fmt.Errorf("advice generator is not configured")
	}

	m, err := s.store.GetMatch(ctx, input.MatchID)
	if err != nil {
		return Advice{}, err
	}
	if !m.IsLive() {
		return Advice{}, errors.WithMetadata(errors.CodeMatchNotLive,
			fmt.Sprintf("cannot advise: match is %s", m.Status),
			map[string]string{"match_id": m.ID, "status": string(m.Status)})
	}

	adviceCtx, cancel := context.WithTimeout(ctx, timeouts.AdviceRequest)
	defer cancel()
	text, err := s.adviser.Advise(adviceCtx, m)
	if err != nil {
		return Advice{}, fmt.Errorf("generate advice: %w", err)
	}
	return Advice{
		MatchID:     m.ID,
		Advice:      text,
		GeneratedAt: s.clock().UTC(),
	}, nil
}

// GetMatch returns the summary view of a match.
func (s *Service) GetMatch(ctx context.Context, id string) (MatchSummary, error) {
	m, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return MatchSummary{}, err
	}
	return summaryView(m), nil
}

// GetMatchState returns the live state view of a match.
func (s *Service) GetMatchState(ctx context.Context, id string) (MatchState, error) {
	m, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return MatchState{}, err
	}
	return stateView(m, nil), nil
}

// GetLiveMatchByChat returns the live match tracked for a chat, if any.
func (s *Service) GetLiveMatchByChat(ctx context.Context, chatID string) (MatchSummary, error) {
	m, err := s.store.GetLiveMatchByChat(ctx, chatID)
	if err != nil {
		return MatchSummary{}, err
	}
	return summaryView(m), nil
}

// ListLiveMatches returns summaries of all live matches.
func (s *Service) ListLiveMatches(ctx context.Context) ([]MatchSummary, error) {
	matches, err := s.store.ListLiveMatches(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]MatchSummary, 0, len(matches))
	for _, m := range matches {
		summaries = append(summaries, summaryView(m))
	}
	return summaries, nil
}

func validateWinner(m *domain.Match, winner int) error {
	if winner != domain.TeamA && winner != domain.TeamB {
		return errors.WithMetadata(errors.CodeWinnerInvalid,
			fmt.Sprintf("winner must be %d or %d, got %d", domain.TeamA, domain.TeamB, winner),
			map[string]string{"winner": fmt.Sprintf("%d", winner)})
	}
	wonA, wonB := m.SetsWon()
	won := wonA
	if winner == domain.TeamB {
		won = wonB
	}
	if won < domain.SetsToWin {
		return errors.WithMetadata(errors.CodeWinnerSetsInsufficient,
			fmt.Sprintf("team %d has only %d set wins, cannot be the winner", winner, won),
			map[string]string{"winner": fmt.Sprintf("%d", winner), "sets": fmt.Sprintf("%d", won)})
	}
	return nil
}

// detectChanges maps drained domain events to change tags in order. The
// event set is closed; anything else is a bug worth failing loudly over
// in tests, so unknown events are simply skipped here.
func detectChanges(events []domain.Event) []string {
	var changes []string
	for _, e := range events {
		switch e.(type) {
		case domain.PointScored:
			changes = append(changes, "point_scored")
		case domain.SetCompleted:
			changes = append(changes, "set_completed")
		case domain.MatchCompleted:
			changes = append(changes, "match_completed")
		}
	}
	return changes
}

func (s *Service) publish(ctx context.Context, events []domain.Event) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Publish)
	defer cancel()
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Printf("publish domain events: %v", err)
	}
}

func (s *Service) pushState(state MatchState) {
	if s.realtime == nil {
		return
	}
	s.realtime.PushState(state)
}
