package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sunvolt/loginguard/internal/models"
	"github.com/sunvolt/loginguard/pkg/auth"
)

var accountValidate = validator.New()

// AccountRepository is the user storage used for operator account management
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// NewAccount describes an account to create
type NewAccount struct {
	Email    string `validate:"required,email,max=254"`
	Name     string `validate:"max=100"`
	Role     string `validate:"required,oneof=admin editor"`
	Password string `validate:"required"`
}

// AccountService creates and manages the accounts that can sign in
type AccountService struct {
	repo       AccountRepository
	bcryptCost int
	logger     *slog.Logger
}

func NewAccountService(repo AccountRepository, logger *slog.Logger) *AccountService {
	return &AccountService{repo: repo, bcryptCost: auth.BcryptCost, logger: logger}
}

// CreateAccount validates, hashes and stores a new active account
func (s *AccountService) CreateAccount(ctx context.Context, acct NewAccount) (*models.User, error) {
	acct.Email = strings.ToLower(strings.TrimSpace(acct.Email))
	if err := accountValidate.Struct(acct); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}
	if err := auth.ValidatePassword(acct.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}

	existing, err := s.repo.GetByEmail(ctx, acct.Email)
	if err == nil && existing != nil {
		return nil, models.ErrConflict
	}
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}

	hash, err := auth.HashPasswordCost(acct.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, &models.User{
		Email:        acct.Email,
		PasswordHash: hash,
		Name:         acct.Name,
		Role:         acct.Role,
		Status:       "active",
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created", slog.String("user_id", user.ID), slog.String("role", user.Role))
	return user, nil
}

// EnsureAdmin creates the first admin account unless one with that email
// already exists. It returns true when an account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}

	_, err := s.CreateAccount(ctx, NewAccount{Email: email, Name: "Admin", Role: "admin", Password: password})
	if errors.Is(err, models.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetStatus activates, suspends or disables an account by email
func (s *AccountService) SetStatus(ctx context.Context, email, status string) error {
	switch status {
	case "active", "suspended", "disabled":
	default:
		return fmt.Errorf("%w: unknown status %q", models.ErrBadRequest, status)
	}

	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, user.ID, status); err != nil {
		return err
	}

	s.logger.Info("account status changed", slog.String("user_id", user.ID), slog.String("status", status))
	return nil
}
