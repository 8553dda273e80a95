package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/sidelinehq/sideline/internal/errors"
)

// Match is the aggregate tracking one volleyball match: the set in
// progress, both serve rotations, the set history, and the lifecycle
// status. All mutations queue domain events; callers drain them after a
// successful save and hand them to the publisher.
type Match struct {
	ID           string
	ChatID       string
	Status       Status
	TeamAName    string
	TeamBName    string
	CompositionA Composition
	CompositionB Composition
	CurrentSet   int
	Score        Score
	Rotation     Rotation
	SetScores    []Score
	Revision     uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time

	actions []RallyAction
	pending []Event
}

// StartInput carries the raw fields needed to start tracking a match.
type StartInput struct {
	ChatID       string
	TeamA        string
	TeamB        string
	CompositionA []int
	CompositionB []int
}

// Start validates the input and creates a live match at set 1, score 0-0,
// both rotations at position 1. A MatchStarted event is queued.
func Start(input StartInput, now func() time.Time, newID func() (string, error)) (*Match, error) {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = NewID
	}

	chatID := strings.TrimSpace(input.ChatID)
	if chatID == "" {
		return nil, errors.New(errors.CodeChatIDInvalid, "chat id is required")
	}
	teamA, err := NormalizeTeamName(input.TeamA)
	if err != nil {
		return nil, err
	}
	teamB, err := NormalizeTeamName(input.TeamB)
	if err != nil {
		return nil, err
	}
	compA, err := NewComposition(input.CompositionA)
	if err != nil {
		return nil, err
	}
	compB, err := NewComposition(input.CompositionB)
	if err != nil {
		return nil, err
	}

	id, err := newID()
	if err != nil {
		return nil, fmt.Errorf("generate match id: %w", err)
	}

	ts := now().UTC()
	m := &Match{
		ID:           id,
		ChatID:       chatID,
		Status:       StatusLive,
		TeamAName:    teamA,
		TeamBName:    teamB,
		CompositionA: compA,
		CompositionB: compB,
		CurrentSet:   1,
		Score:        Score{},
		Rotation:     Rotation{A: 1, B: 1},
		Revision:     0,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	m.queue(MatchStarted{
		Match:    m.ID,
		TeamA:    teamA,
		TeamB:    teamB,
		Occurred: ts,
	})
	return m, nil
}

// IsLive reports whether the match still accepts rally actions.
func (m *Match) IsLive() bool {
	return m != nil && m.Status == StatusLive
}

// RecordAction appends a rally action and applies its consequences: a
// SCORED result increments the acting side's tally, which may decide the
// set and in turn the match. NEUTRAL and ERROR results are logged without
// touching the score.
func (m *Match) RecordAction(action RallyAction) error {
	if !m.IsLive() {
		return errors.WithMetadata(errors.CodeStateInvalid,
			fmt.Sprintf("cannot record action on %s match", m.Status),
			map[string]string{"status": string(m.Status)})
	}

	m.actions = append(m.actions, action)
	m.UpdatedAt = action.Timestamp.UTC()

	if action.Result != ResultScored {
		return nil
	}

	score, err := m.Score.Increment(action.Team)
	if err != nil {
		return err
	}
	m.Score = score
	m.queue(PointScored{
		Match:      m.ID,
		Team:       action.Team,
		NewScoreA:  m.Score.A,
		NewScoreB:  m.Score.B,
		CurrentSet: m.CurrentSet,
		Occurred:   action.Timestamp.UTC(),
	})

	winner, won := m.Score.SetWon()
	if !won {
		return nil
	}
	return m.finishSet(winner, action.Timestamp.UTC())
}

// finishSet closes the current set, then either completes the match or
// opens the next set with a fresh score and both rotations advanced.
func (m *Match) finishSet(winner int, at time.Time) error {
	m.SetScores = append(m.SetScores, m.Score)
	m.queue(SetCompleted{
		Match:       m.ID,
		SetNumber:   m.CurrentSet,
		Winner:      winner,
		FinalScoreA: m.Score.A,
		FinalScoreB: m.Score.B,
		Occurred:    at,
	})

	wonA, wonB := m.SetsWon()
	if wonA >= SetsToWin || wonB >= SetsToWin {
		return m.complete(winner, at)
	}

	m.CurrentSet++
	m.Score = Score{}
	m.Rotation = m.Rotation.Advance()
	return nil
}

// Complete ends the match. Winner 0 means derive the winner from the set
// history; a match with no side at three set wins cannot be completed
// that way.
func (m *Match) Complete(winner int, at time.Time) error {
	if !m.IsLive() {
		return errors.WithMetadata(errors.CodeStateInvalid,
			fmt.Sprintf("cannot complete %s match", m.Status),
			map[string]string{"status": string(m.Status)})
	}
	return m.complete(winner, at.UTC())
}

func (m *Match) complete(winner int, at time.Time) error {
	if winner == 0 {
		wonA, wonB := m.SetsWon()
		switch {
		case wonA >= SetsToWin:
			winner = TeamA
		case wonB >= SetsToWin:
			winner = TeamB
		default:
			return errors.New(errors.CodeWinnerUndetermined,
				"cannot determine winner: no side has won three sets")
		}
	}

	m.Status = StatusCompleted
	m.UpdatedAt = at
	m.queue(MatchCompleted{
		Match:     m.ID,
		Winner:    winner,
		TotalSets: len(m.SetScores),
		SetScores: m.setScoresCopy(),
		Occurred:  at,
	})
	return nil
}

// SetsWon tallies completed sets per side. A set belongs to whichever
// side holds the higher score in its final tally.
func (m *Match) SetsWon() (a, b int) {
	if m == nil {
		return 0, 0
	}
	for _, s := range m.SetScores {
		if s.A > s.B {
			a++
		} else {
			b++
		}
	}
	return a, b
}

// Winner returns the winning side of a completed match, or 0 when no side
// has won three sets.
func (m *Match) Winner() int {
	wonA, wonB := m.SetsWon()
	switch {
	case wonA >= SetsToWin:
		return TeamA
	case wonB >= SetsToWin:
		return TeamB
	}
	return 0
}

// Composition returns the roster for the given side.
func (m *Match) Composition(team int) (Composition, error) {
	switch team {
	case TeamA:
		return m.CompositionA, nil
	case TeamB:
		return m.CompositionB, nil
	}
	return nil, errors.WithMetadata(errors.CodeTeamIDInvalid,
		fmt.Sprintf("team id must be %d or %d, got %d", TeamA, TeamB, team),
		map[string]string{"team": fmt.Sprintf("%d", team)})
}

// Actions returns a copy of the recorded rally actions.
func (m *Match) Actions() []RallyAction {
	if m == nil || len(m.actions) == 0 {
		return nil
	}
	out := make([]RallyAction, len(m.actions))
	copy(out, m.actions)
	return out
}

// DrainEvents returns the queued domain events and clears the queue, so a
// second drain after the same mutation yields nothing. Callers drain only
// after the aggregate has been persisted.
func (m *Match) DrainEvents() []Event {
	if m == nil || len(m.pending) == 0 {
		return nil
	}
	out := make([]Event, len(m.pending))
	copy(out, m.pending)
	m.pending = nil
	return out
}

// PendingEvents reports how many events are queued without draining them.
func (m *Match) PendingEvents() int {
	if m == nil {
		return 0
	}
	return len(m.pending)
}

func (m *Match) queue(e Event) {
	m.pending = append(m.pending, e)
}

func (m *Match) setScoresCopy() []Score {
	if len(m.SetScores) == 0 {
		return nil
	}
	out := make([]Score, len(m.SetScores))
	copy(out, m.SetScores)
	return out
}
