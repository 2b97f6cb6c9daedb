package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ynodev/empowerpwd-api/internal/application/staging"
	"github.com/ynodev/empowerpwd-api/internal/domain"
	"github.com/ynodev/empowerpwd-api/internal/geo"
	"github.com/ynodev/empowerpwd-api/internal/rules"
)

// --- mocks ---

type mockStagingSvc struct{ mock.Mock }

func (m *mockStagingSvc) Stage(ctx context.Context, s *domain.WizardSession, in staging.StageInput) (*domain.StagedDocument, []string, error) {
	args := m.Called(ctx, s, in)
	d, _ := args.Get(0).(*domain.StagedDocument)
	reasons, _ := args.Get(1).([]string)
	return d, reasons, args.Error(2)
}

func (m *mockStagingSvc) Unstage(ctx context.Context, s *domain.WizardSession, docType string, index int) error {
	return m.Called(ctx, s, docType, index).Error(0)
}

func (m *mockStagingSvc) Clear(ctx context.Context, s *domain.WizardSession) error {
	return m.Called(ctx, s).Error(0)
}

type mockAssemblerSvc struct{ mock.Mock }

func (m *mockAssemblerSvc) Submit(ctx context.Context, s *domain.WizardSession) (*domain.Account, string, error) {
	args := m.Called(ctx, s)
	a, _ := args.Get(0).(*domain.Account)
	return a, args.String(1), args.Error(2)
}

// --- helpers ---

type registerFixture struct {
	staging   *mockStagingSvc
	assembler *mockAssemblerSvc
	otp       *mockOtpSvc
	router    http.Handler
}

func newRegisterFixture(t *testing.T) *registerFixture {
	t.Helper()
	resolver, err := geo.NewResolver()
	require.NoError(t, err)

	f := &registerFixture{
		staging:   new(mockStagingSvc),
		assembler: new(mockAssemblerSvc),
		otp:       new(mockOtpSvc),
	}
	h := NewRegisterHandler(f.staging, f.assembler, f.otp, rules.NewEngine(resolver, nil), testMetrics())
	r := chi.NewRouter()
	r.Post("/{flow:jobseekers|employers|assistants}/register", h.Register)
	f.router = r
	return f
}

// stageAccepts records the permit on the ephemeral session the way the real
// staging service would.
func (f *registerFixture) stageAccepts() {
	f.staging.On("Stage", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sess := args.Get(1).(*domain.WizardSession)
			sess.Documents = append(sess.Documents, domain.StagedDocument{
				Type: domain.DocCompanyPermit,
				Key:  "staging/x/companyPermit/permit.pdf",
			})
		}).Return(&domain.StagedDocument{Type: domain.DocCompanyPermit}, nil, nil)
}

// employerForm builds a complete employer registration form plus a permit
// file. overrides replaces base fields; an empty value removes the field.
func employerForm(t *testing.T, overrides map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	base := map[string]string{
		"email":           "hr@acme.ph",
		"password":        "Abcdef1!",
		"confirmPassword": "Abcdef1!",
		"companyName":     "Acme Staffing",
		"firstName":       "Ana",
		"lastName":        "Reyes",
		"phone":           "09285551234",
		"region":          "National Capital Region (NCR)",
		"province":        "Metro Manila",
		"city":            "Quezon City",
		"barangay":        "Commonwealth",
		"postalCode":      "1121",
		"street":          "12 Commonwealth Ave",
		"acceptedTerms":   "true",
	}
	for k, v := range overrides {
		if v == "" {
			delete(base, k)
			continue
		}
		base[k] = v
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range base {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("companyPermit", "permit.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 permit"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (f *registerFixture) post(t *testing.T, overrides map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	buf, ctype := employerForm(t, overrides)
	r := httptest.NewRequest(http.MethodPost, "/employers/register", buf)
	r.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

// --- tests ---

func TestRegisterOneShot(t *testing.T) {
	f := newRegisterFixture(t)
	f.stageAccepts()
	f.otp.On("CheckCode", mock.Anything, "hr@acme.ph", "123456").Return(nil)
	f.assembler.On("Submit", mock.Anything, mock.Anything).
		Return(&domain.Account{AccountID: "acc1"}, "bearer-token", nil)

	w := f.post(t, map[string]string{"otp": "123456"})

	assert.Equal(t, http.StatusCreated, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "acc1", body["account_id"])
	assert.Equal(t, "bearer-token", body["bearer"])
}

// The one-shot path has no verification sub-step, so the code issued through
// /api/auth/send-otp must accompany the form; without it a direct POST would
// mint a confirmed account for a never-verified address.
func TestRegisterRequiresVerificationCode(t *testing.T) {
	f := newRegisterFixture(t)
	f.stageAccepts()
	f.staging.On("Clear", mock.Anything, mock.Anything).Return(nil)

	w := f.post(t, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.otp.AssertNotCalled(t, "CheckCode", mock.Anything, mock.Anything, mock.Anything)
	f.assembler.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	f.staging.AssertCalled(t, "Clear", mock.Anything, mock.Anything)
}

func TestRegisterRejectsWrongCode(t *testing.T) {
	f := newRegisterFixture(t)
	f.stageAccepts()
	f.staging.On("Clear", mock.Anything, mock.Anything).Return(nil)
	f.otp.On("CheckCode", mock.Anything, "hr@acme.ph", "000000").
		Return(fmt.Errorf("incorrect verification code: %w", domain.ErrUnauthorized))

	w := f.post(t, map[string]string{"otp": "000000"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	f.assembler.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestRegisterValidationFailureIs422(t *testing.T) {
	f := newRegisterFixture(t)
	f.stageAccepts()
	f.staging.On("Clear", mock.Anything, mock.Anything).Return(nil)

	w := f.post(t, map[string]string{"acceptedTerms": "", "otp": "123456"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var env SessionEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Session)
	assert.Equal(t, "You must accept the terms and conditions", env.Session.Errors["acceptedTerms"])
	f.otp.AssertNotCalled(t, "CheckCode", mock.Anything, mock.Anything, mock.Anything)
	f.assembler.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}
