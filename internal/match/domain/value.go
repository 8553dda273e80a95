package domain

import (
	"fmt"
	"strings"

	"github.com/sidelinehq/sideline/internal/errors"
)

const (
	// TeamA and TeamB identify the two sides of a match.
	TeamA = 1
	TeamB = 2

	// PlayersPerTeam is the number of players a composition must hold.
	PlayersPerTeam = 6

	// MaxSets is the most sets a match can run to.
	MaxSets = 5

	// SetWinScore is the score a team must reach to win a set.
	SetWinScore = 25
	// SetWinMargin is the lead a team must hold at SetWinScore or above.
	SetWinMargin = 2
	// SetsToWin is the number of set wins that completes a match.
	SetsToWin = 3

	maxScore        = 100
	maxPlayerNumber = 99
	maxNameLength   = 50
)

// Status is the lifecycle state of a match.
type Status string

const (
	StatusLive      Status = "LIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus validates a stored status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusLive, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", errors.WithMetadata(errors.CodeStateInvalid,
		fmt.Sprintf("unknown match status %q", s),
		map[string]string{"status": s})
}

// NormalizeTeamName trims and validates a team display name.
func NormalizeTeamName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New(errors.CodeTeamNameInvalid, "team name is required")
	}
	if len(name) > maxNameLength {
		return "", errors.WithMetadata(errors.CodeTeamNameInvalid,
			fmt.Sprintf("team name exceeds %d characters", maxNameLength),
			map[string]string{"name": name})
	}
	return name, nil
}

// ValidatePlayerNumber checks that a jersey number is in the 1-99 range.
func ValidatePlayerNumber(n int) error {
	if n < 1 || n > maxPlayerNumber {
		return errors.WithMetadata(errors.CodePlayerNumberInvalid,
			fmt.Sprintf("player number must be between 1 and %d, got %d", maxPlayerNumber, n),
			map[string]string{"player": fmt.Sprintf("%d", n)})
	}
	return nil
}

// ValidateTeamID checks that the team reference names one of the two sides.
func ValidateTeamID(team int) error {
	if team != TeamA && team != TeamB {
		return errors.WithMetadata(errors.CodeTeamIDInvalid,
			fmt.Sprintf("team id must be %d or %d, got %d", TeamA, TeamB, team),
			map[string]string{"team": fmt.Sprintf("%d", team)})
	}
	return nil
}

// Composition is the ordered list of jersey numbers fielded by one side.
type Composition []int

// NewComposition validates a six-player roster with unique jersey numbers.
func NewComposition(players []int) (Composition, error) {
	if len(players) != PlayersPerTeam {
		return nil, errors.WithMetadata(errors.CodeCompositionSizeInvalid,
			fmt.Sprintf("composition must have exactly %d players, got %d", PlayersPerTeam, len(players)),
			map[string]string{"size": fmt.Sprintf("%d", len(players))})
	}
	seen := make(map[int]struct{}, PlayersPerTeam)
	for _, n := range players {
		if err := ValidatePlayerNumber(n); err != nil {
			return nil, err
		}
		if _, dup := seen[n]; dup {
			return nil, errors.WithMetadata(errors.CodeCompositionDuplicate,
				fmt.Sprintf("player number %d appears more than once", n),
				map[string]string{"player": fmt.Sprintf("%d", n)})
		}
		seen[n] = struct{}{}
	}
	c := make(Composition, PlayersPerTeam)
	copy(c, players)
	return c, nil
}

// Has reports whether the roster contains the given jersey number.
func (c Composition) Has(player int) bool {
	for _, n := range c {
		if n == player {
			return true
		}
	}
	return false
}

// Score is the point tally of the set in progress, team A first.
type Score struct {
	A int
	B int
}

// NewScore validates a stored score pair.
func NewScore(a, b int) (Score, error) {
	for _, v := range []int{a, b} {
		if v < 0 || v > maxScore {
			return Score{}, errors.WithMetadata(errors.CodeScoreOutOfRange,
				fmt.Sprintf("score must be between 0 and %d, got %d", maxScore, v),
				map[string]string{"score": fmt.Sprintf("%d", v)})
		}
	}
	return Score{A: a, B: b}, nil
}

// Increment returns the score after the given side wins a point.
func (s Score) Increment(team int) (Score, error) {
	switch team {
	case TeamA:
		return NewScore(s.A+1, s.B)
	case TeamB:
		return NewScore(s.A, s.B+1)
	}
	return Score{}, errors.WithMetadata(errors.CodeTeamIDInvalid,
		fmt.Sprintf("team id must be %d or %d, got %d", TeamA, TeamB, team),
		map[string]string{"team": fmt.Sprintf("%d", team)})
}

// SetWon reports whether the score decides the set, and for which side.
// A set is won at SetWinScore points or more with a lead of SetWinMargin.
func (s Score) SetWon() (winner int, won bool) {
	if s.A >= SetWinScore && s.A-s.B >= SetWinMargin {
		return TeamA, true
	}
	if s.B >= SetWinScore && s.B-s.A >= SetWinMargin {
		return TeamB, true
	}
	return 0, false
}

// Rotation tracks the serve rotation position of both sides. Positions run
// from 1 to 6 and wrap back to 1.
type Rotation struct {
	A int
	B int
}

// NewRotation validates a stored rotation pair.
func NewRotation(a, b int) (Rotation, error) {
	for _, v := range []int{a, b} {
		if v < 1 || v > PlayersPerTeam {
			return Rotation{}, errors.WithMetadata(errors.CodeRotationPositionInvalid,
				fmt.Sprintf("rotation position must be between 1 and %d, got %d", PlayersPerTeam, v),
				map[string]string{"position": fmt.Sprintf("%d", v)})
		}
	}
	return Rotation{A: a, B: b}, nil
}

// Advance rotates both sides one position forward, wrapping 6 back to 1.
func (r Rotation) Advance() Rotation {
	return Rotation{A: nextPosition(r.A), B: nextPosition(r.B)}
}

func nextPosition(p int) int {
	if p >= PlayersPerTeam {
		return 1
	}
	return p + 1
}
