package domain

import (
	"errors"
	"fmt"
)

// ErrorKind groups engine errors into the categories callers react to
type ErrorKind string

const (
	KindPhase          ErrorKind = "phase_error"
	KindRoleConflict   ErrorKind = "role_conflict"
	KindInvalidAmount  ErrorKind = "invalid_amount"
	KindUnauthorized   ErrorKind = "unauthorized"
	KindInvalidState   ErrorKind = "invalid_state"
	KindNoVotingPower  ErrorKind = "no_voting_power"
	KindSettlementPath ErrorKind = "settlement_path"
	KindInvalidInput   ErrorKind = "invalid_input"
	KindNotFound       ErrorKind = "not_found"
)

// Error is a typed, non-retryable engine failure. Two errors match under
// errors.Is when their codes are equal, so wrapped or re-worded errors still
// compare against the exported sentinels.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target carries the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Withf returns a copy of the error with a more specific message
func (e *Error) Withf(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: fmt.Sprintf(format, args...),
	}
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrPhase         = newError(KindPhase, "wrong_phase", "operation not allowed in the current phase")
	ErrInvalidAmount = newError(KindInvalidAmount, "invalid_amount", "amount must be positive")

	ErrVolunteerCannotDonate = newError(KindRoleConflict, "volunteer_cannot_donate", "registered volunteers cannot donate")
	ErrVoterCannotDonate     = newError(KindRoleConflict, "voter_cannot_donate", "identity has already voted and cannot donate")
	ErrVoterCannotVolunteer  = newError(KindRoleConflict, "voter_cannot_volunteer", "identity has already voted and cannot register as volunteer")

	ErrUnauthorized = newError(KindUnauthorized, "unauthorized", "only the unit admin may perform this operation")

	ErrAlreadyRegistered  = newError(KindInvalidState, "already_registered", "identity is already a registered volunteer")
	ErrInvalidIndex       = newError(KindInvalidState, "invalid_index", "volunteer index out of range")
	ErrAlreadyApproved    = newError(KindInvalidState, "already_approved", "volunteer is already approved")
	ErrAlreadyVoted       = newError(KindInvalidState, "already_voted", "identity has already voted")
	ErrInvalidVolunteer   = newError(KindInvalidState, "invalid_volunteer", "volunteer does not exist or is not approved")
	ErrAlreadyConcluded   = newError(KindInvalidState, "already_concluded", "election already concluded")
	ErrNotConcluded       = newError(KindInvalidState, "not_concluded", "election has not been concluded")
	ErrAlreadyDistributed = newError(KindInvalidState, "already_distributed", "funds have already been distributed")
	ErrNothingToRefund    = newError(KindInvalidState, "nothing_to_refund", "identity has no contribution to refund")
	ErrAlreadyRefunded    = newError(KindInvalidState, "already_refunded", "contribution has already been refunded")
	ErrTallyOverflow      = newError(KindInvalidState, "tally_overflow", "vote total would overflow")

	ErrNoVotingPower = newError(KindNoVotingPower, "no_voting_power", "identity has no governance weight")

	ErrNoWinner     = newError(KindSettlementPath, "no_winner", "election has no winner; donors must claim refunds")
	ErrWinnerExists = newError(KindSettlementPath, "winner_exists", "election has a winner; funds must be distributed")

	ErrInvalidInput = newError(KindInvalidInput, "invalid_input", "invalid input")
	ErrUnitNotFound = newError(KindNotFound, "unit_not_found", "event unit not found")
)

// KindOf extracts the error kind from an engine error anywhere in the chain
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
