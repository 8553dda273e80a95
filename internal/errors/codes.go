// Package errors provides structured error handling for the match core.
//
// Every failure surfaced by the domain or the command handlers carries a
// machine-readable code. Codes group into four kinds: validation (bad
// input), conflict (state disallows the operation), not-found, and
// internal (invariant broken by a bug, never by user input).
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeTeamNameInvalid         Code = "MATCH_TEAM_NAME_INVALID"
	CodeCompositionSizeInvalid  Code = "MATCH_COMPOSITION_SIZE_INVALID"
	CodeCompositionDuplicate    Code = "MATCH_COMPOSITION_DUPLICATE_PLAYER"
	CodePlayerNumberInvalid     Code = "MATCH_PLAYER_NUMBER_INVALID"
	CodeTeamIDInvalid           Code = "MATCH_TEAM_ID_INVALID"
	CodePlayerNotInTeam         Code = "MATCH_PLAYER_NOT_IN_TEAM"
	CodeActionTypeUnknown       Code = "MATCH_ACTION_TYPE_UNKNOWN"
	CodeActionResultUnknown     Code = "MATCH_ACTION_RESULT_UNKNOWN"
	CodeTimestampMissingZone    Code = "MATCH_EVENT_TIMESTAMP_MISSING_ZONE"
	CodeWinnerInvalid           Code = "MATCH_WINNER_INVALID"
	CodeWinnerSetsInsufficient  Code = "MATCH_WINNER_SETS_INSUFFICIENT"
	CodeChatIDInvalid           Code = "MATCH_CHAT_ID_INVALID"
	CodeScoreOutOfRange         Code = "MATCH_SCORE_OUT_OF_RANGE"
	CodeSetNumberOutOfRange     Code = "MATCH_SET_NUMBER_OUT_OF_RANGE"
	CodeRotationPositionInvalid Code = "MATCH_ROTATION_POSITION_INVALID"

	// Conflict errors
	CodeMatchNotLive     Code = "MATCH_NOT_LIVE"
	CodeChatHasLiveMatch Code = "MATCH_CHAT_HAS_LIVE_MATCH"
	CodeRevisionConflict Code = "MATCH_REVISION_CONFLICT"

	// Not-found errors
	CodeMatchNotFound Code = "MATCH_NOT_FOUND"

	// Internal errors
	CodeStateInvalid       Code = "MATCH_STATE_INVALID"
	CodeWinnerUndetermined Code = "MATCH_WINNER_UNDETERMINED"
)

// Kind buckets codes into the four failure families handlers care about.
type Kind int

const (
	// KindUnknown classifies errors with no recognized code.
	KindUnknown Kind = iota
	// KindValidation marks malformed or out-of-range input.
	KindValidation
	// KindConflict marks operations the current aggregate state disallows.
	KindConflict
	// KindNotFound marks references to missing records.
	KindNotFound
	// KindInternal marks broken invariants that should never surface.
	KindInternal
)

// Kind returns the failure family for the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeTeamNameInvalid,
		CodeCompositionSizeInvalid,
		CodeCompositionDuplicate,
		CodePlayerNumberInvalid,
		CodeTeamIDInvalid,
		CodePlayerNotInTeam,
		CodeActionTypeUnknown,
		CodeActionResultUnknown,
		CodeTimestampMissingZone,
		CodeWinnerInvalid,
		CodeWinnerSetsInsufficient,
		CodeChatIDInvalid,
		CodeScoreOutOfRange,
		CodeSetNumberOutOfRange,
		CodeRotationPositionInvalid:
		return KindValidation

	case CodeMatchNotLive,
		CodeChatHasLiveMatch,
		CodeRevisionConflict:
		return KindConflict

	case CodeMatchNotFound:
		return KindNotFound

	case CodeStateInvalid,
		CodeWinnerUndetermined:
		return KindInternal

	default:
		return KindUnknown
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c.Kind() {
	case KindValidation:
		return codes.InvalidArgument
	case KindConflict:
		return codes.FailedPrecondition
	case KindNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}
