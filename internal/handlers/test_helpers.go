package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sunvolt/loginguard/internal/auth"
	"github.com/sunvolt/loginguard/internal/captcha"
	"github.com/sunvolt/loginguard/internal/middleware"
	"github.com/sunvolt/loginguard/internal/models"
	"github.com/sunvolt/loginguard/internal/services"
	pkghttp "github.com/sunvolt/loginguard/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithClientID attaches a browser client id as the ClientID middleware would
func WithClientID(req *http.Request, clientID string) *http.Request {
	return req.WithContext(middleware.WithClientID(req.Context(), clientID))
}

// WithSessionContext adds session claims to the request context
func WithSessionContext(req *http.Request, userID, sessionID string) *http.Request {
	claims := &models.TokenClaims{Type: auth.TokenTypeSession, UserID: userID}
	claims.ID = sessionID
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockLoginFlow implements LoginFlow for testing
type MockLoginFlow struct {
	SubmitFunc func(ctx context.Context, creds services.Credentials) services.Outcome
	StatusFunc func(ctx context.Context) (services.LockoutStatus, error)
}

func (m *MockLoginFlow) Submit(ctx context.Context, creds services.Credentials) services.Outcome {
	if m.SubmitFunc == nil {
		return services.Outcome{Kind: services.OutcomeInvalid, AttemptsRemaining: 4, Err: models.ErrCredentialRejected}
	}
	return m.SubmitFunc(ctx, creds)
}

func (m *MockLoginFlow) Status(ctx context.Context) (services.LockoutStatus, error) {
	if m.StatusFunc == nil {
		return services.LockoutStatus{AttemptsRemaining: 5}, nil
	}
	return m.StatusFunc(ctx)
}

// MockCaptchaChallenge implements CaptchaChallenge for testing
type MockCaptchaChallenge struct {
	RefreshFunc  func()
	AttemptFunc  func(input string) captcha.Result
	WritePNGFunc func(w io.Writer) error
}

func (m *MockCaptchaChallenge) Refresh() {
	if m.RefreshFunc != nil {
		m.RefreshFunc()
	}
}

func (m *MockCaptchaChallenge) Attempt(input string) captcha.Result {
	if m.AttemptFunc == nil {
		return captcha.Result{}
	}
	return m.AttemptFunc(input)
}

func (m *MockCaptchaChallenge) WritePNG(w io.Writer) error {
	if m.WritePNGFunc == nil {
		_, err := w.Write([]byte("\x89PNG"))
		return err
	}
	return m.WritePNGFunc(w)
}

// MockClientStates implements ClientStateProvider, handing every client the
// same flow and challenge and recording the ids it was asked for
type MockClientStates struct {
	Flow      *MockLoginFlow
	Captcha   *MockCaptchaChallenge
	ClientIDs []string
}

func (m *MockClientStates) LoginFlow(clientID string) LoginFlow {
	m.ClientIDs = append(m.ClientIDs, clientID)
	if m.Flow == nil {
		m.Flow = &MockLoginFlow{}
	}
	return m.Flow
}

func (m *MockClientStates) Challenge(clientID string) CaptchaChallenge {
	m.ClientIDs = append(m.ClientIDs, clientID)
	if m.Captcha == nil {
		m.Captcha = &MockCaptchaChallenge{}
	}
	return m.Captcha
}

// MockSignOuter implements services.SignOuter for testing
type MockSignOuter struct {
	SignOutFunc func(ctx context.Context, redirectTarget string) error
}

func (m *MockSignOuter) SignOut(ctx context.Context, redirectTarget string) error {
	if m.SignOutFunc == nil {
		return nil
	}
	return m.SignOutFunc(ctx, redirectTarget)
}

// MockSessionRegistry implements SessionRegistryInterface for testing
type MockSessionRegistry struct {
	ListFunc       func(ctx context.Context) ([]models.SessionRecord, error)
	EndSessionFunc func(ctx context.Context, id string, nav services.Navigator) services.EndResult
}

func (m *MockSessionRegistry) List(ctx context.Context) ([]models.SessionRecord, error) {
	if m.ListFunc == nil {
		return nil, nil
	}
	return m.ListFunc(ctx)
}

func (m *MockSessionRegistry) EndSession(ctx context.Context, id string, nav services.Navigator) services.EndResult {
	if m.EndSessionFunc == nil {
		return services.EndResult{Err: models.ErrNotFound}
	}
	return m.EndSessionFunc(ctx, id, nav)
}

// MockPolicyService implements PolicyServiceInterface for testing
type MockPolicyService struct {
	CurrentFunc func() models.SecurityPolicy
	UpdateFunc  func(ctx context.Context, next models.SecurityPolicy) (models.SecurityPolicy, error)
}

func (m *MockPolicyService) Current() models.SecurityPolicy {
	if m.CurrentFunc == nil {
		return models.DefaultSecurityPolicy()
	}
	return m.CurrentFunc()
}

func (m *MockPolicyService) Update(ctx context.Context, next models.SecurityPolicy) (models.SecurityPolicy, error) {
	if m.UpdateFunc == nil {
		return next, nil
	}
	return m.UpdateFunc(ctx, next)
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(context.Context) error {
	return m.Err
}
