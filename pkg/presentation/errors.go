package presentation

import "errors"

// Error kinds per the presentation error handling design: Application
// errors are logged and the offending command dropped, the session is
// preserved; Claim errors escalate to the caller of Claim but never tear
// down the underlying DDP session by themselves.
var (
	ErrApplication   = errors.New("presentation: invalid draw command")
	ErrUnknownIcon   = errors.New("presentation: unknown bitmap asset")
	ErrOversized     = errors.New("presentation: payload exceeds DDP frame budget")
	ErrClaimRejected = errors.New("presentation: cluster rejected screen claim")
	ErrClaimTimeout  = errors.New("presentation: screen claim not confirmed")
	ErrNotClaimed    = errors.New("presentation: screen not claimed")
)
