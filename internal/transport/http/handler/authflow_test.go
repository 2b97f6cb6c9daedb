package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ynodev/empowerpwd-api/internal/domain"
	"github.com/ynodev/empowerpwd-api/internal/metrics"
)

// --- mocks ---

type mockOtpSvc struct{ mock.Mock }

func (m *mockOtpSvc) Send(ctx context.Context, s *domain.WizardSession) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockOtpSvc) Resend(ctx context.Context, s *domain.WizardSession) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockOtpSvc) Verify(ctx context.Context, s *domain.WizardSession) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockOtpSvc) Discard(ctx context.Context, s *domain.WizardSession) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockOtpSvc) IssueCode(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockOtpSvc) CheckCode(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

type mockEmailChecker struct{ mock.Mock }

func (m *mockEmailChecker) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func postJSON(t *testing.T, h http.HandlerFunc, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, r)
	return w
}

// --- tests ---

func TestCheckEmail(t *testing.T) {
	otpSvc := new(mockOtpSvc)
	emails := new(mockEmailChecker)
	h := NewAuthFlowHandler(otpSvc, emails, testMetrics())

	emails.On("EmailExists", mock.Anything, "juan@example.com").Return(true, nil)

	w := postJSON(t, h.CheckEmail, "/api/auth/check-email", map[string]string{"email": "juan@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)

	var env ExistsEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Exists)
}

func TestCheckEmailRejectsMalformedAddress(t *testing.T) {
	h := NewAuthFlowHandler(new(mockOtpSvc), new(mockEmailChecker), testMetrics())

	w := postJSON(t, h.CheckEmail, "/api/auth/check-email", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendOtp(t *testing.T) {
	otpSvc := new(mockOtpSvc)
	h := NewAuthFlowHandler(otpSvc, new(mockEmailChecker), testMetrics())

	otpSvc.On("IssueCode", mock.Anything, "juan@example.com").Return(nil)

	w := postJSON(t, h.SendOtp, "/api/auth/send-otp", map[string]string{"email": "juan@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	otpSvc.AssertCalled(t, "IssueCode", mock.Anything, "juan@example.com")
}

func TestVerifyOtp(t *testing.T) {
	tests := []struct {
		name     string
		checkErr error
		want     int
	}{
		{"accepted", nil, http.StatusOK},
		{"wrong code", fmt.Errorf("incorrect verification code: %w", domain.ErrUnauthorized), http.StatusUnauthorized},
		{"no record", fmt.Errorf("no verification code on record: %w", domain.ErrNotFound), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			otpSvc := new(mockOtpSvc)
			h := NewAuthFlowHandler(otpSvc, new(mockEmailChecker), testMetrics())
			otpSvc.On("CheckCode", mock.Anything, "juan@example.com", "123456").Return(tt.checkErr)

			w := postJSON(t, h.VerifyOtp, "/api/auth/verify-otp",
				map[string]string{"email": "juan@example.com", "otp": "123456"})
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestVerifyOtpRejectsShortCode(t *testing.T) {
	h := NewAuthFlowHandler(new(mockOtpSvc), new(mockEmailChecker), testMetrics())

	w := postJSON(t, h.VerifyOtp, "/api/auth/verify-otp",
		map[string]string{"email": "juan@example.com", "otp": "123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
