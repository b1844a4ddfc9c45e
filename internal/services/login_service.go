package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/sunvolt/loginguard/internal/metrics"
	"github.com/sunvolt/loginguard/internal/models"
	"github.com/sunvolt/loginguard/pkg/logger"
)

// OutcomeKind discriminates the result of a login submission
type OutcomeKind string

const (
	OutcomeLocked          OutcomeKind = "locked"
	OutcomeCaptchaRequired OutcomeKind = "captchaRequired"
	OutcomeInvalid         OutcomeKind = "invalid"
	OutcomeSuccess         OutcomeKind = "success"
	OutcomeError           OutcomeKind = "error"
)

const unavailableMessage = "Sign-in is temporarily unavailable. Please try again."

// Outcome is returned by Submit. Failures are values, never errors.
type Outcome struct {
	Kind              OutcomeKind `json:"kind"`
	AttemptsRemaining int         `json:"attemptsRemaining,omitempty"`
	RetryAfterMinutes int         `json:"retryAfterMinutes,omitempty"`
	Message           string      `json:"message"`

	// Err carries the taxonomy error for kinds other than success
	Err error `json:"-"`
	// Session is set on success
	Session *IssuedSession `json:"-"`
}

// Credentials is one login submission
type Credentials struct {
	Identifier string
	Secret     string
	Origin     RequestOrigin
}

// RequestOrigin describes where a submission came from
type RequestOrigin struct {
	ClientID  string
	IPAddress string
	UserAgent string
}

// CheckResult is the answer of a credential check that completed.
// Transport failures are reported through the error return instead.
type CheckResult struct {
	Accepted bool
	User     *models.User
	Reason   string
}

// IssuedSession is what the session starter hands back to the caller
type IssuedSession struct {
	SessionID string
	Token     string
	ExpiresAt time.Time
}

// CaptchaGate exposes the captcha-satisfied signal of a client's challenge
type CaptchaGate interface {
	Satisfied() bool
	Consume()
}

type CredentialChecker interface {
	Check(ctx context.Context, identifier, secret string) (CheckResult, error)
}

type SessionStarter interface {
	StartSession(ctx context.Context, user *models.User, origin RequestOrigin) (*IssuedSession, error)
}

// PolicyReader returns the latest security policy
type PolicyReader interface {
	Current() models.SecurityPolicy
}

// LoginDependencies are shared by every client's orchestrator
type LoginDependencies struct {
	Checker CredentialChecker
	Starter SessionStarter
	Policy  PolicyReader
	Logger  *slog.Logger
	Audit   *logger.AuditLogger
	Metrics *metrics.Metrics
}

// LoginOrchestrator composes the attempt ledger, the captcha gate and the
// credential check into one submission flow for a single client.
type LoginOrchestrator struct {
	deps   LoginDependencies
	ledger *AttemptLedger
	gate   CaptchaGate

	inFlight sync.Mutex
}

func NewLoginOrchestrator(deps LoginDependencies, ledger *AttemptLedger, gate CaptchaGate) *LoginOrchestrator {
	return &LoginOrchestrator{deps: deps, ledger: ledger, gate: gate}
}

// Submit runs one login attempt. A second call while one is still running
// returns an error outcome without touching any state.
func (o *LoginOrchestrator) Submit(ctx context.Context, creds Credentials) Outcome {
	if !o.inFlight.TryLock() {
		return o.finish(ctx, creds, errorOutcome(models.ErrSubmissionInFlight,
			"A login attempt is already in progress."))
	}
	defer o.inFlight.Unlock()

	policy := o.deps.Policy.Current()

	state, err := o.ledger.State(ctx, policy)
	if err != nil {
		return o.finish(ctx, creds, errorOutcome(err, unavailableMessage))
	}
	if state.IsLocked {
		return o.finish(ctx, creds, lockedOutcome(models.RemainingMinutes(state, o.ledger.Now())))
	}

	if policy.CaptchaEnabled && !o.gate.Satisfied() {
		return o.finish(ctx, creds, Outcome{
			Kind:    OutcomeCaptchaRequired,
			Message: "Please complete the verification before signing in.",
			Err:     models.ErrCaptchaUnsatisfied,
		})
	}

	result, err := o.deps.Checker.Check(ctx, creds.Identifier, creds.Secret)
	if err != nil {
		o.deps.Logger.Error("credential check failed", slog.Any("error", err))
		return o.finish(ctx, creds, errorOutcome(fmt.Errorf("%w: %v", models.ErrTransport, err), unavailableMessage))
	}

	// a solved challenge covers exactly one credential check
	o.gate.Consume()

	if !result.Accepted {
		rec, lockedNow, err := o.ledger.RecordFailure(ctx, policy)
		if err != nil {
			return o.finish(ctx, creds, errorOutcome(err, unavailableMessage))
		}
		if lockedNow && models.IsLockedAt(rec, o.ledger.Now()) {
			return o.finish(ctx, creds, lockedOutcome(models.RemainingMinutes(rec, o.ledger.Now())))
		}
		left := models.AttemptsRemaining(rec)
		return o.finish(ctx, creds, Outcome{
			Kind:              OutcomeInvalid,
			AttemptsRemaining: left,
			Message:           fmt.Sprintf("Invalid credentials. %d %s remaining.", left, plural(left, "attempt", "attempts")),
			Err:               models.ErrCredentialRejected,
		})
	}

	o.ledger.Clear(ctx)

	issued, err := o.deps.Starter.StartSession(ctx, result.User, creds.Origin)
	if err != nil {
		o.deps.Logger.Error("failed to start session", slog.Any("error", err))
		return o.finish(ctx, creds, errorOutcome(err, "Sign-in could not be completed. Please try again."))
	}

	out := Outcome{Kind: OutcomeSuccess, Message: "Signed in.", Session: issued}
	if result.User != nil {
		o.deps.Audit.Log(ctx, logger.AuditEvent{
			EventType: logger.EventLoginSuccess,
			UserID:    result.User.ID,
			ClientID:  creds.Origin.ClientID,
			IPAddress: creds.Origin.IPAddress,
			UserAgent: creds.Origin.UserAgent,
			Success:   true,
		})
	}
	o.deps.Metrics.LoginOutcome(string(out.Kind))
	return out
}

// LockStatus reports whether the client is locked out and for how many
// whole minutes, recomputed from the stored expiry on every call
func (o *LoginOrchestrator) LockStatus(ctx context.Context) (bool, int, error) {
	state, err := o.ledger.State(ctx, o.deps.Policy.Current())
	if err != nil {
		return false, 0, err
	}
	if !state.IsLocked {
		return false, 0, nil
	}
	return true, models.RemainingMinutes(state, o.ledger.Now()), nil
}

// LockoutStatus is the pre-submission view of the login form
type LockoutStatus struct {
	Locked            bool `json:"locked"`
	RetryAfterMinutes int  `json:"retryAfterMinutes"`
	AttemptsRemaining int  `json:"attemptsRemaining"`
	CaptchaEnabled    bool `json:"captchaEnabled"`
}

func (o *LoginOrchestrator) Status(ctx context.Context) (LockoutStatus, error) {
	policy := o.deps.Policy.Current()
	state, err := o.ledger.State(ctx, policy)
	if err != nil {
		return LockoutStatus{}, err
	}

	status := LockoutStatus{
		Locked:            state.IsLocked,
		AttemptsRemaining: models.AttemptsRemaining(state),
		CaptchaEnabled:    policy.CaptchaEnabled,
	}
	if state.IsLocked {
		status.RetryAfterMinutes = models.RemainingMinutes(state, o.ledger.Now())
		status.AttemptsRemaining = 0
	}
	return status, nil
}

// finish records metrics and audit entries for non-success outcomes
func (o *LoginOrchestrator) finish(ctx context.Context, creds Credentials, out Outcome) Outcome {
	o.deps.Metrics.LoginOutcome(string(out.Kind))

	event := logger.AuditEvent{
		Identifier: creds.Identifier,
		ClientID:   creds.Origin.ClientID,
		IPAddress:  creds.Origin.IPAddress,
		UserAgent:  creds.Origin.UserAgent,
	}

	switch out.Kind {
	case OutcomeInvalid:
		event.EventType = logger.EventLoginFailed
		event.FailureReason = "invalid_credentials"
		event.Metadata = map[string]string{"attempts_remaining": strconv.Itoa(out.AttemptsRemaining)}
	case OutcomeLocked:
		event.EventType = logger.EventLoginLocked
		event.FailureReason = "locked"
		event.Metadata = map[string]string{"retry_after_minutes": strconv.Itoa(out.RetryAfterMinutes)}
	case OutcomeCaptchaRequired:
		event.EventType = logger.EventLoginBlocked
		event.FailureReason = "captcha_required"
	default:
		if errors.Is(out.Err, models.ErrSubmissionInFlight) {
			return out
		}
		event.EventType = logger.EventLoginFailed
		event.FailureReason = "unavailable"
	}

	o.deps.Audit.Log(ctx, event)
	return out
}

func lockedOutcome(minutes int) Outcome {
	return Outcome{
		Kind:              OutcomeLocked,
		RetryAfterMinutes: minutes,
		Message: fmt.Sprintf("Too many failed attempts. Try again in %d %s.",
			minutes, plural(minutes, "minute", "minutes")),
		Err: models.ErrLocked,
	}
}

func errorOutcome(err error, message string) Outcome {
	return Outcome{Kind: OutcomeError, Message: message, Err: err}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
