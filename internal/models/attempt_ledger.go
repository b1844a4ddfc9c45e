package models

import (
	"math"
	"time"
)

// LedgerRecord is the persisted state of the attempt ledger for one client.
// IsLocked is kept for readers of the raw record; decisions always go through
// IsLockedAt, which only trusts LockoutUntil.
type LedgerRecord struct {
	Attempts     int        `json:"attempts"`
	MaxAttempts  int        `json:"maxAttempts"`
	IsLocked     bool       `json:"isLocked"`
	LockoutUntil *time.Time `json:"lockoutUntil,omitempty"`
}

// OpenRecord returns the initial Open(0) state
func OpenRecord(maxAttempts int) LedgerRecord {
	return LedgerRecord{MaxAttempts: maxAttempts}
}

// IsLockedAt reports whether the record blocks login at the given instant
func IsLockedAt(rec LedgerRecord, now time.Time) bool {
	return rec.LockoutUntil != nil && now.Before(*rec.LockoutUntil)
}

// IsStaleAt reports whether the record carries a lockout that has already expired
func IsStaleAt(rec LedgerRecord, now time.Time) bool {
	return rec.LockoutUntil != nil && !now.Before(*rec.LockoutUntil)
}

// RemainingMinutes returns the whole minutes left until the lockout expires,
// rounded up. It is recomputed from the stored expiry on every call.
func RemainingMinutes(rec LedgerRecord, now time.Time) int {
	if !IsLockedAt(rec, now) {
		return 0
	}
	return int(math.Ceil(rec.LockoutUntil.Sub(now).Minutes()))
}

// AttemptsRemaining returns how many failures are left before a lockout, never negative
func AttemptsRemaining(rec LedgerRecord) int {
	if left := rec.MaxAttempts - rec.Attempts; left > 0 {
		return left
	}
	return 0
}
