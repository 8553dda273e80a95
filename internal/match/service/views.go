package service

import (
	"time"

	"github.com/sidelinehq/sideline/internal/match/domain"
)

// MatchSummary is the read view returned when a match starts or is
// fetched by id.
type MatchSummary struct {
	ID           string    `json:"id"`
	ChatID       string    `json:"chat_id"`
	TeamAName    string    `json:"team_a_name"`
	TeamBName    string    `json:"team_b_name"`
	CompositionA []int     `json:"composition_a"`
	CompositionB []int     `json:"composition_b"`
	Status       string    `json:"status"`
	CurrentSet   int       `json:"current_set"`
	ScoreA       int       `json:"score_a"`
	ScoreB       int       `json:"score_b"`
	RotationA    int       `json:"rotation_a"`
	RotationB    int       `json:"rotation_b"`
	CreatedAt    time.Time `json:"created_at"`
}

// MatchState is the live view pushed to realtime subscribers after every
// recorded action. Changes lists what the action caused, in order:
// "point_scored", "set_completed", "match_completed".
type MatchState struct {
	MatchID    string   `json:"match_id"`
	Status     string   `json:"status"`
	CurrentSet int      `json:"current_set"`
	ScoreA     int      `json:"score_a"`
	ScoreB     int      `json:"score_b"`
	RotationA  int      `json:"rotation_a"`
	RotationB  int      `json:"rotation_b"`
	Changes    []string `json:"changes"`
}

// MatchResult is the read view returned when a match completes.
type MatchResult struct {
	MatchID   string   `json:"match_id"`
	Winner    int      `json:"winner"`
	TotalSets int      `json:"total_sets"`
	SetScores [][2]int `json:"set_scores"`
	TeamAName string   `json:"team_a_name"`
	TeamBName string   `json:"team_b_name"`
}

// Advice is the read view returned for an advice request.
type Advice struct {
	MatchID     string    `json:"match_id"`
	Advice      string    `json:"advice"`
	GeneratedAt time.Time `json:"generated_at"`
}

func summaryView(m *domain.Match) MatchSummary {
	return MatchSummary{
		ID:           m.ID,
		ChatID:       m.ChatID,
		TeamAName:    m.TeamAName,
		TeamBName:    m.TeamBName,
		CompositionA: m.CompositionA,
		CompositionB: m.CompositionB,
		Status:       string(m.Status),
		CurrentSet:   m.CurrentSet,
		ScoreA:       m.Score.A,
		ScoreB:       m.Score.B,
		RotationA:    m.Rotation.A,
		RotationB:    m.Rotation.B,
		CreatedAt:    m.CreatedAt,
	}
}

func stateView(m *domain.Match, changes []string) MatchState {
	if changes == nil {
		changes = []string{}
	}
	return MatchState{
		MatchID:    m.ID,
		Status:     string(m.Status),
		CurrentSet: m.CurrentSet,
		ScoreA:     m.Score.A,
		ScoreB:     m.Score.B,
		RotationA:  m.Rotation.A,
		RotationB:  m.Rotation.B,
		Changes:    changes,
	}
}

func resultView(m *domain.Match) MatchResult {
	scores := make([][2]int, 0, len(m.SetScores))
	for _, s := range m.SetScores {
		scores = append(scores, [2]int{s.A, s.B})
	}
	return MatchResult{
		MatchID:   m.ID,
		Winner:    m.Winner(),
		TotalSets: len(m.SetScores),
		SetScores: scores,
		TeamAName: m.TeamAName,
		TeamBName: m.TeamBName,
	}
}
