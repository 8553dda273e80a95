// Package advice turns live match state into short coaching advice. A
// language model writes the advice when one is reachable; a rule-based
// fallback answers otherwise, so the bot always has something to say.
package advice

import (
	"github.com/sidelinehq/sideline/internal/match/domain"
)

// Situation classifies the moment of the match for prompt selection and
// fallback advice.
type Situation string

const (
	SituationMatchPoint Situation = "match_point"
	SituationDeuce      Situation = "deuce"
	SituationSetPoint   Situation = "set_point"
	SituationBigLead    Situation = "big_lead"
	SituationCloseGame  Situation = "close_game"
	SituationNormal     Situation = "normal"
)

// Context is the match snapshot handed to the prompt builder.
type Context struct {
	MatchID    string
	TeamA      string
	TeamB      string
	ScoreA     int
	ScoreB     int
	CurrentSet int
	RotationA  int
	RotationB  int
	SetScores  [][2]int
	Situation  Situation
}

// BuildContext extracts the advice-relevant slice of a match.
func BuildContext(m *domain.Match) Context {
	scores := make([][2]int, 0, len(m.SetScores))
	for _, s := range m.SetScores {
		scores = append(scores, [2]int{s.A, s.B})
	}
	ctx := Context{
		MatchID:    m.ID,
		TeamA:      m.TeamAName,
		TeamB:      m.TeamBName,
		ScoreA:     m.Score.A,
		ScoreB:     m.Score.B,
		CurrentSet: m.CurrentSet,
		RotationA:  m.Rotation.A,
		RotationB:  m.Rotation.B,
		SetScores:  scores,
	}
	ctx.Situation = detectSituation(ctx)
	return ctx
}

func detectSituation(ctx Context) Situation {
	a, b := ctx.ScoreA, ctx.ScoreB

	if ctx.CurrentSet == 5 && a >= 14 && b >= 14 {
		return SituationMatchPoint
	}
	if a >= 24 && b >= 24 {
		return SituationDeuce
	}
	if (a >= 24 && a-b >= 2) || (b >= 24 && b-a >= 2) {
		return SituationSetPoint
	}

	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if diff >= 5 {
		return SituationBigLead
	}
	if diff <= 2 {
		return SituationCloseGame
	}
	return SituationNormal
}
