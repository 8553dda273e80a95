package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/sidelinehq/sideline/internal/errors"
)

// ActionType classifies the play that produced a rally outcome.
type ActionType string

const (
	ActionServe  ActionType = "SERVE"
	ActionAttack ActionType = "ATTACK"
	ActionBlock  ActionType = "BLOCK"
)

// ParseActionType accepts a case-insensitive action type name.
func ParseActionType(s string) (ActionType, error) {
	switch ActionType(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionServe:
		return ActionServe, nil
	case ActionAttack:
		return ActionAttack, nil
	case ActionBlock:
		return ActionBlock, nil
	}
	return "", errors.WithMetadata(errors.CodeActionTypeUnknown,
		fmt.Sprintf("unknown action type %q", s),
		map[string]string{"action_type": s})
}

// ActionResult is the outcome of a rally action.
type ActionResult string

const (
	ResultScored  ActionResult = "SCORED"
	ResultNeutral ActionResult = "NEUTRAL"
	ResultError   ActionResult = "ERROR"
)

// ParseActionResult accepts a case-insensitive result name.
func ParseActionResult(s string) (ActionResult, error) {
	switch ActionResult(strings.ToUpper(strings.TrimSpace(s))) {
	case ResultScored:
		return ResultScored, nil
	case ResultNeutral:
		return ResultNeutral, nil
	case ResultError:
		return ResultError, nil
	}
	return "", errors.WithMetadata(errors.CodeActionResultUnknown,
		fmt.Sprintf("unknown action result %q", s),
		map[string]string{"result": s})
}

// RallyAction is a single recorded play: who did what, for which side, with
// what outcome, and at which rotation position.
type RallyAction struct {
	Timestamp time.Time
	Player    int
	Team      int
	Type      ActionType
	Result    ActionResult
	Rotation  int
}

// NewRallyAction validates the fields of a recorded play. The timestamp
// must be set; wire layers that parse timestamps from strings require an
// explicit offset (RFC 3339) before the value reaches here.
func NewRallyAction(ts time.Time, player, team int, actionType ActionType, result ActionResult, rotation int) (RallyAction, error) {
	if ts.IsZero() {
		return RallyAction{}, errors.New(errors.CodeTimestampMissingZone, "timestamp is required")
	}
	if err := ValidatePlayerNumber(player); err != nil {
		return RallyAction{}, err
	}
	if err := ValidateTeamID(team); err != nil {
		return RallyAction{}, err
	}
	switch actionType {
	case ActionServe, ActionAttack, ActionBlock:
	default:
		return RallyAction{}, errors.WithMetadata(errors.CodeActionTypeUnknown,
			fmt.Sprintf("unknown action type %q", actionType),
			map[string]string{"action_type": string(actionType)})
	}
	switch result {
	case ResultScored, ResultNeutral, ResultError:
	default:
		return RallyAction{}, errors.WithMetadata(errors.CodeActionResultUnknown,
			fmt.Sprintf("unknown action result %q", result),
			map[string]string{"result": string(result)})
	}
	if rotation < 1 || rotation > PlayersPerTeam {
		return RallyAction{}, errors.WithMetadata(errors.CodeRotationPositionInvalid,
			fmt.Sprintf("rotation position must be between 1 and %d, got %d", PlayersPerTeam, rotation),
			map[string]string{"position": fmt.Sprintf("%d", rotation)})
	}
	return RallyAction{
		Timestamp: ts,
		Player:    player,
		Team:      team,
		Type:      actionType,
		Result:    result,
		Rotation:  rotation,
	}, nil
}
