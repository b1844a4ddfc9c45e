package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sunvolt/loginguard/internal/models"
	"github.com/sunvolt/loginguard/pkg/auth"
)

// UserLookup finds an account by its login identifier
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Delayer pads failed checks to a uniform duration
type Delayer interface {
	WaitFrom(start time.Time, success bool)
}

// PasswordCredentialChecker checks an email and password against stored
// bcrypt hashes
type PasswordCredentialChecker struct {
	users  UserLookup
	delay  Delayer
	logger *slog.Logger

	dummyCost int
	dummyOnce sync.Once
	dummyHash string
}

func NewPasswordCredentialChecker(users UserLookup, delay Delayer, logger *slog.Logger) *PasswordCredentialChecker {
	return NewPasswordCredentialCheckerWithCost(users, delay, auth.BcryptCost, logger)
}

// NewPasswordCredentialCheckerWithCost sets the bcrypt cost of the hash
// compared against for unknown accounts; it should match stored hashes
func NewPasswordCredentialCheckerWithCost(users UserLookup, delay Delayer, cost int, logger *slog.Logger) *PasswordCredentialChecker {
	return &PasswordCredentialChecker{users: users, delay: delay, logger: logger, dummyCost: cost}
}

// Check returns a rejection for unknown accounts, wrong passwords and
// inactive accounts alike. Only lookup failures are returned as errors.
func (c *PasswordCredentialChecker) Check(ctx context.Context, identifier, secret string) (CheckResult, error) {
	start := time.Now()
	identifier = strings.TrimSpace(identifier)

	if identifier == "" || secret == "" {
		c.delay.WaitFrom(start, false)
		return CheckResult{Reason: "missing_credentials"}, nil
	}

	user, err := c.users.GetByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// burn the same bcrypt work as a real compare
			_ = auth.ComparePassword(c.dummy(), secret)
			c.delay.WaitFrom(start, false)
			return CheckResult{Reason: "invalid_credentials"}, nil
		}
		return CheckResult{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := auth.ComparePassword(user.PasswordHash, secret); err != nil {
		c.delay.WaitFrom(start, false)
		return CheckResult{Reason: "invalid_credentials"}, nil
	}

	if !user.IsActive() {
		c.logger.Warn("login attempt on inactive account",
			slog.String("user_id", user.ID),
			slog.String("status", user.Status),
		)
		c.delay.WaitFrom(start, false)
		return CheckResult{Reason: "account_inactive"}, nil
	}

	c.delay.WaitFrom(start, true)
	return CheckResult{Accepted: true, User: user}, nil
}

func (c *PasswordCredentialChecker) dummy() string {
	c.dummyOnce.Do(func() {
		hash, err := auth.HashPasswordCost("loginguard-timing-equalizer", c.dummyCost)
		if err != nil {
			c.logger.Error("failed to build timing hash", slog.Any("error", err))
			return
		}
		c.dummyHash = hash
	})
	return c.dummyHash
}
