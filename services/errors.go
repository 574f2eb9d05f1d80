package services

import "errors"

// Sentinel errors of the service layer. Handlers map these onto HTTP status
// codes; everything else surfaces as an internal error.
var (
	ErrForbidden            = errors.New("caller is not allowed to perform this action")
	ErrValidation           = errors.New("validation failed")
	ErrTournamentNotReady   = errors.New("tournament is not in a state that allows fixture generation")
	ErrNotEnoughTeams       = errors.New("not enough confirmed teams")
	ErrTooManyTeams         = errors.New("too many confirmed teams")
	ErrMatchNotReportable   = errors.New("match does not accept a result report")
	ErrResultAlreadyPending = errors.New("a reported result is already awaiting confirmation")
	ErrNoPendingResult      = errors.New("match has no pending result to confirm")
	ErrNotPendingParty      = errors.New("caller's team is not party to the pending result")
	ErrSelfConfirmation     = errors.New("reporting side cannot confirm its own result")
	ErrDisputeReasonShort   = errors.New("dispute reason must be at least 10 characters")
	ErrInvalidResolution    = errors.New("invalid resolution request")
	ErrTeamNotInMatch       = errors.New("team is not a participant of this match")
	ErrTeamDisqualified     = errors.New("disqualified team cannot be declared winner")
)
