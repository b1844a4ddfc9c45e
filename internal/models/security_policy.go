package models

import "time"

const (
	DefaultMaxLoginAttempts       = 5
	DefaultLockoutDurationMinutes = 15
	DefaultSessionTimeoutMinutes  = 60
)

// SecurityPolicy holds the server-controlled login thresholds. It is owned by
// the settings service and is read-only to the login flow.
type SecurityPolicy struct {
	MaxLoginAttempts       int     `json:"maxLoginAttempts" validate:"gte=1,lte=100"`
	LockoutDurationMinutes float64 `json:"lockoutDurationMinutes" validate:"gte=0,lte=1440"`
	CaptchaEnabled         bool    `json:"captchaEnabled"`
	SessionTimeoutMinutes  float64 `json:"sessionTimeoutMinutes" validate:"gte=0"`
}

// DefaultSecurityPolicy is applied whenever no policy could be loaded
func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		MaxLoginAttempts:       DefaultMaxLoginAttempts,
		LockoutDurationMinutes: DefaultLockoutDurationMinutes,
		CaptchaEnabled:         false,
		SessionTimeoutMinutes:  DefaultSessionTimeoutMinutes,
	}
}

// Normalize replaces out-of-range fields with their defaults. This is the only
// place defaults are applied; consumers never re-derive them.
func (p SecurityPolicy) Normalize() SecurityPolicy {
	if p.MaxLoginAttempts < 1 {
		p.MaxLoginAttempts = DefaultMaxLoginAttempts
	}
	if p.LockoutDurationMinutes < 0 {
		p.LockoutDurationMinutes = DefaultLockoutDurationMinutes
	}
	if p.SessionTimeoutMinutes < 0 {
		p.SessionTimeoutMinutes = DefaultSessionTimeoutMinutes
	}
	return p
}

// LockoutDuration returns the lockout window as a duration
func (p SecurityPolicy) LockoutDuration() time.Duration {
	return time.Duration(p.LockoutDurationMinutes * float64(time.Minute))
}

// SessionTimeout returns the idle session lifetime as a duration
func (p SecurityPolicy) SessionTimeout() time.Duration {
	return time.Duration(p.SessionTimeoutMinutes * float64(time.Minute))
}
