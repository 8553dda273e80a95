package domain

import "time"

// EventKind names a domain event type. Kinds double as message routing
// keys on the broker.
type EventKind string

const (
	KindMatchStarted   EventKind = "match.started"
	KindPointScored    EventKind = "match.point_scored"
	KindSetCompleted   EventKind = "match.set_completed"
	KindMatchCompleted EventKind = "match.completed"
)

// Event is a domain event queued by the match aggregate. The set of
// implementations is closed: consumers switch over the concrete types and
// can treat an unknown event as a programming error.
type Event interface {
	Kind() EventKind
	MatchID() string
	OccurredAt() time.Time
	Payload() map[string]any

	isEvent()
}

// MatchStarted records that a match began tracking.
type MatchStarted struct {
	Match    string
	TeamA    string
	TeamB    string
	Occurred time.Time
}

func (MatchStarted) isEvent()                {}
func (MatchStarted) Kind() EventKind         { return KindMatchStarted }
func (e MatchStarted) MatchID() string       { return e.Match }
func (e MatchStarted) OccurredAt() time.Time { return e.Occurred }

// Payload returns the wire shape of the event.
func (e MatchStarted) Payload() map[string]any {
	return map[string]any{
		"type":        string(KindMatchStarted),
		"match_id":    e.Match,
		"team_a":      e.TeamA,
		"team_b":      e.TeamB,
		"occurred_at": e.Occurred.Format(time.RFC3339),
	}
}

// PointScored records a single point and the resulting tally.
type PointScored struct {
	Match      string
	Team       int
	NewScoreA  int
	NewScoreB  int
	CurrentSet int
	Occurred   time.Time
}

func (PointScored) isEvent()                {}
func (PointScored) Kind() EventKind         { return KindPointScored }
func (e PointScored) MatchID() string       { return e.Match }
func (e PointScored) OccurredAt() time.Time { return e.Occurred }

func (e PointScored) Payload() map[string]any {
	return map[string]any{
		"type":        string(KindPointScored),
		"match_id":    e.Match,
		"team_id":     e.Team,
		"new_score_a": e.NewScoreA,
		"new_score_b": e.NewScoreB,
		"current_set": e.CurrentSet,
		"occurred_at": e.Occurred.Format(time.RFC3339),
	}
}

// SetCompleted records a decided set and its final score.
type SetCompleted struct {
	Match       string
	SetNumber   int
	Winner      int
	FinalScoreA int
	FinalScoreB int
	Occurred    time.Time
}

func (SetCompleted) isEvent()                {}
func (SetCompleted) Kind() EventKind         { return KindSetCompleted }
func (e SetCompleted) MatchID() string       { return e.Match }
func (e SetCompleted) OccurredAt() time.Time { return e.Occurred }

func (e SetCompleted) Payload() map[string]any {
	return map[string]any{
		"type":          string(KindSetCompleted),
		"match_id":      e.Match,
		"set_number":    e.SetNumber,
		"winner":        e.Winner,
		"final_score_a": e.FinalScoreA,
		"final_score_b": e.FinalScoreB,
		"occurred_at":   e.Occurred.Format(time.RFC3339),
	}
}

// MatchCompleted records the end of a match and the full set history.
type MatchCompleted struct {
	Match     string
	Winner    int
	TotalSets int
	SetScores []Score
	Occurred  time.Time
}

func (MatchCompleted) isEvent()                {}
func (MatchCompleted) Kind() EventKind         { return KindMatchCompleted }
func (e MatchCompleted) MatchID() string       { return e.Match }
func (e MatchCompleted) OccurredAt() time.Time { return e.Occurred }

func (e MatchCompleted) Payload() map[string]any {
	scores := make([][2]int, 0, len(e.SetScores))
	for _, s := range e.SetScores {
		scores = append(scores, [2]int{s.A, s.B})
	}
	return map[string]any{
		"type":             string(KindMatchCompleted),
		"match_id":         e.Match,
		"winner":           e.Winner,
		"total_sets":       e.TotalSets,
		"final_set_scores": scores,
		"occurred_at":      e.Occurred.Format(time.RFC3339),
	}
}
