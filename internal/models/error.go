package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)

// Login security errors. All of them are recoverable by the user.
var (
	ErrPolicyUnavailable     = errors.New("security policy unavailable")
	ErrLocked                = errors.New("login temporarily locked")
	ErrCaptchaUnsatisfied    = errors.New("verification not completed")
	ErrCredentialRejected    = errors.New("credentials rejected")
	ErrTransport             = errors.New("credential check unavailable")
	ErrCorruptPersistedState = errors.New("persisted ledger record is corrupt")
	ErrLedgerUnavailable     = errors.New("attempt ledger unavailable")
	ErrSubmissionInFlight    = errors.New("a login submission is already in progress")
)

// Session registry errors
var (
	ErrSessionDeletionFailed = errors.New("failed to end session")
	ErrSignOutFailed         = errors.New("failed to sign out")
)
