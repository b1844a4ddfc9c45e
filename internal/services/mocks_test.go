package services_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sunvolt/loginguard/internal/models"
	"github.com/sunvolt/loginguard/internal/services"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustState(t *testing.T, ctx context.Context, l *services.AttemptLedger, p models.SecurityPolicy) models.LedgerRecord {
	t.Helper()
	rec, err := l.State(ctx, p)
	require.NoError(t, err)
	return rec
}

func mustRecordFailure(t *testing.T, ctx context.Context, l *services.AttemptLedger, p models.SecurityPolicy) (models.LedgerRecord, bool) {
	t.Helper()
	rec, lockedNow, err := l.RecordFailure(ctx, p)
	require.NoError(t, err)
	return rec, lockedNow
}

func mustStatus(t *testing.T, ctx context.Context, o *services.LoginOrchestrator) services.LockoutStatus {
	t.Helper()
	status, err := o.Status(ctx)
	require.NoError(t, err)
	return status
}

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockKVStore implements services.KVStore for testing
type MockKVStore struct {
	GetFunc    func(ctx context.Context, key string) (string, bool, error)
	SetFunc    func(ctx context.Context, key, value string) error
	DeleteFunc func(ctx context.Context, key string) error
}

func (m *MockKVStore) Get(ctx context.Context, key string) (string, bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return "", false, nil
}

func (m *MockKVStore) Set(ctx context.Context, key, value string) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value)
	}
	return nil
}

func (m *MockKVStore) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

// MockCredentialChecker implements services.CredentialChecker for testing
type MockCredentialChecker struct {
	CheckFunc func(ctx context.Context, identifier, secret string) (services.CheckResult, error)
	calls     atomic.Int32
}

func (m *MockCredentialChecker) Check(ctx context.Context, identifier, secret string) (services.CheckResult, error) {
	m.calls.Add(1)
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, identifier, secret)
	}
	return services.CheckResult{Reason: "invalid_credentials"}, nil
}

func (m *MockCredentialChecker) Calls() int {
	return int(m.calls.Load())
}

// MockSessionStarter implements services.SessionStarter for testing
type MockSessionStarter struct {
	StartSessionFunc func(ctx context.Context, user *models.User, origin services.RequestOrigin) (*services.IssuedSession, error)
}

func (m *MockSessionStarter) StartSession(ctx context.Context, user *models.User, origin services.RequestOrigin) (*services.IssuedSession, error) {
	if m.StartSessionFunc != nil {
		return m.StartSessionFunc(ctx, user, origin)
	}
	return &services.IssuedSession{SessionID: "session-1", Token: "token"}, nil
}

// MockCaptchaGate implements services.CaptchaGate for testing
type MockCaptchaGate struct {
	mu        sync.Mutex
	satisfied bool
	consumed  int
}

func (m *MockCaptchaGate) Satisfied() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.satisfied
}

func (m *MockCaptchaGate) Consume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.satisfied = false
	m.consumed++
}

func (m *MockCaptchaGate) Solve() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.satisfied = true
}

// MockPolicyReader implements services.PolicyReader for testing
type MockPolicyReader struct {
	mu     sync.Mutex
	policy models.SecurityPolicy
}

func newPolicyReader(p models.SecurityPolicy) *MockPolicyReader {
	return &MockPolicyReader{policy: p}
}

func (m *MockPolicyReader) Current() models.SecurityPolicy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy
}

func (m *MockPolicyReader) Set(p models.SecurityPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = p
}

// MockPolicySource implements services.PolicySource for testing
type MockPolicySource struct {
	LoadFunc func(ctx context.Context) (*models.SecurityPolicy, error)
}

func (m *MockPolicySource) Load(ctx context.Context) (*models.SecurityPolicy, error) {
	return m.LoadFunc(ctx)
}

// MockPolicyWriter implements services.PolicyWriter for testing
type MockPolicyWriter struct {
	SaveFunc func(ctx context.Context, p models.SecurityPolicy) error
}

func (m *MockPolicyWriter) Save(ctx context.Context, p models.SecurityPolicy) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, p)
	}
	return nil
}

// MockSessionStore implements services.SessionStore for testing
type MockSessionStore struct {
	ListFunc   func(ctx context.Context) ([]models.SessionRecord, error)
	DeleteFunc func(ctx context.Context, id string) error

	mu      sync.Mutex
	deletes []string
	lists   int
}

func (m *MockSessionStore) List(ctx context.Context) ([]models.SessionRecord, error) {
	m.mu.Lock()
	m.lists++
	m.mu.Unlock()
	return m.ListFunc(ctx)
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	m.deletes = append(m.deletes, id)
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockSessionStore) Deletes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}

// MockSignOuter implements services.SignOuter for testing
type MockSignOuter struct {
	SignOutFunc func(ctx context.Context, redirectTarget string) error
	calls       atomic.Int32
}

func (m *MockSignOuter) SignOut(ctx context.Context, redirectTarget string) error {
	m.calls.Add(1)
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx, redirectTarget)
	}
	return nil
}

func (m *MockSignOuter) Calls() int {
	return int(m.calls.Load())
}

// MockSessionRepository implements services.CallerSessionRepository and
// services.SessionCreator for testing
type MockSessionRepository struct {
	ListForUserFunc   func(ctx context.Context, userID, currentID string) ([]models.SessionRecord, error)
	DeleteForUserFunc func(ctx context.Context, userID, sessionID string) error
	CreateFunc        func(ctx context.Context, s *models.Session) error
}

func (m *MockSessionRepository) ListForUser(ctx context.Context, userID, currentID string) ([]models.SessionRecord, error) {
	return m.ListForUserFunc(ctx, userID, currentID)
}

func (m *MockSessionRepository) DeleteForUser(ctx context.Context, userID, sessionID string) error {
	return m.DeleteForUserFunc(ctx, userID, sessionID)
}

func (m *MockSessionRepository) Create(ctx context.Context, s *models.Session) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, s)
	}
	return nil
}

// MockUserLookup implements services.UserLookup for testing
type MockUserLookup struct {
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
}

func (m *MockUserLookup) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

// MockDelayer records timing-delay calls instead of sleeping
type MockDelayer struct {
	mu        sync.Mutex
	successes []bool
}

func (m *MockDelayer) WaitFrom(_ time.Time, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes = append(m.successes, success)
}

// MockTokenIssuer implements services.TokenIssuer for testing
type MockTokenIssuer struct {
	IssueFunc func(user *models.User, sessionID string) (string, time.Time, error)
}

func (m *MockTokenIssuer) IssueSessionToken(user *models.User, sessionID string) (string, time.Time, error) {
	return m.IssueFunc(user, sessionID)
}
