package domain

import (
	"testing"
	"time"

	"github.com/sidelinehq/sideline/internal/errors"
)

func TestScoreSetWon(t *testing.T) {
	cases := []struct {
		score  Score
		winner int
		won    bool
	}{
		{Score{A: 25, B: 23}, TeamA, true},
		{Score{A: 25, B: 24}, 0, false},
		{Score{A: 24, B: 26}, TeamB, true},
		{Score{A: 24, B: 24}, 0, false},
		{Score{A: 30, B: 28}, TeamA, true},
		{Score{A: 10, B: 3}, 0, false},
	}
	for _, tc := range cases {
		winner, won := tc.score.SetWon()
		if won != tc.won || winner != tc.winner {
			t.Fatalf("%d-%d: winner=%d won=%v, want winner=%d won=%v",
				tc.score.A, tc.score.B, winner, won, tc.winner, tc.won)
		}
	}
}

func TestNewScoreBounds(t *testing.T) {
	if _, err := NewScore(0, 100); err != nil {
		t.Fatalf("expected 0-100 to be valid: %v", err)
	}
	if _, err := NewScore(-1, 0); !errors.IsCode(err, errors.CodeScoreOutOfRange) {
		t.Fatalf("err = %v, want code %s", err, errors.CodeScoreOutOfRange)
	}
	if _, err := NewScore(0, 101); !errors.IsCode(err, errors.CodeScoreOutOfRange) {
		t.Fatalf("err = %v, want code %s", err, errors.CodeScoreOutOfRange)
	}
}

func TestCompositionHas(t *testing.T) {
	c, err := NewComposition([]int{4, 8, 15, 16, 23, 42})
	if err != nil {
		t.Fatalf("new composition: %v", err)
	}
	if !c.Has(23) {
		t.Fatal("expected roster to contain 23")
	}
	if c.Has(99) {
		t.Fatal("expected roster not to contain 99")
	}
}

func TestParseActionType(t *testing.T) {
	for raw, want := range map[string]ActionType{
		"serve":   ActionServe,
		" ATTACK": ActionAttack,
		"Block":   ActionBlock,
	} {
		got, err := ParseActionType(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q = %s, want %s", raw, got, want)
		}
	}

	if _, err := ParseActionType("spike"); !errors.IsCode(err, errors.CodeActionTypeUnknown) {
		t.Fatalf("err = %v, want code %s", err, errors.CodeActionTypeUnknown)
	}
}

func TestParseActionResult(t *testing.T) {
	if _, err := ParseActionResult("scored"); err != nil {
		t.Fatalf("parse scored: %v", err)
	}
	if _, err := ParseActionResult("win"); !errors.IsCode(err, errors.CodeActionResultUnknown) {
		t.Fatalf("err = %v, want code %s", err, errors.CodeActionResultUnknown)
	}
}

func TestNewRallyActionRejectsZeroTimestamp(t *testing.T) {
	_, err := NewRallyAction(time.Time{}, 1, TeamA, ActionServe, ResultScored, 1)
	if !errors.IsCode(err, errors.CodeTimestampMissingZone) {
		t.Fatalf("err = %v, want code %s", err, errors.CodeTimestampMissingZone)
	}
}

func TestNewRallyActionAcceptsOffsetTimestamps(t *testing.T) {
	ts, err := time.Parse(time.RFC3339, "2025-06-01T18:00:00+03:00")
	if err != nil {
		t.Fatalf("parse timestamp: %v", err)
	}

	a, err := NewRallyAction(ts, 1, TeamA, ActionServe, ResultScored, 1)
	if err != nil {
		t.Fatalf("offset timestamp rejected: %v", err)
	}
	if !a.Timestamp.Equal(ts) {
		t.Fatalf("timestamp = %v, want %v", a.Timestamp, ts)
	}
}

func TestNewRallyActionValidatesFields(t *testing.T) {
	ts := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	if _, err := NewRallyAction(ts, 0, TeamA, ActionServe, ResultScored, 1); !errors.IsCode(err, errors.CodePlayerNumberInvalid) {
		t.Fatalf("player: err = %v", err)
	}
	if _, err := NewRallyAction(ts, 1, 3, ActionServe, ResultScored, 1); !errors.IsCode(err, errors.CodeTeamIDInvalid) {
		t.Fatalf("team: err = %v", err)
	}
	if _, err := NewRallyAction(ts, 1, TeamA, ActionServe, ResultScored, 7); !errors.IsCode(err, errors.CodeRotationPositionInvalid) {
		t.Fatalf("rotation: err = %v", err)
	}
	if _, err := NewRallyAction(ts, 1, TeamA, ActionServe, ResultScored, 1); err != nil {
		t.Fatalf("valid action rejected: %v", err)
	}
}

func TestEventPayloadShapes(t *testing.T) {
	at := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	point := PointScored{Match: "m1", Team: TeamB, NewScoreA: 3, NewScoreB: 4, CurrentSet: 2, Occurred: at}
	payload := point.Payload()
	if payload["type"] != string(KindPointScored) {
		t.Fatalf("type = %v", payload["type"])
	}
	if payload["new_score_b"] != 4 || payload["current_set"] != 2 {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["occurred_at"] != "2025-06-01T18:00:00Z" {
		t.Fatalf("occurred_at = %v", payload["occurred_at"])
	}

	completed := MatchCompleted{
		Match:     "m1",
		Winner:    TeamA,
		TotalSets: 3,
		SetScores: []Score{{25, 20}, {23, 25}, {25, 18}},
		Occurred:  at,
	}
	scores, ok := completed.Payload()["final_set_scores"].([][2]int)
	if !ok {
		t.Fatalf("final_set_scores has unexpected type %T", completed.Payload()["final_set_scores"])
	}
	if len(scores) != 3 || scores[1] != [2]int{23, 25} {
		t.Fatalf("unexpected set scores: %v", scores)
	}
}
