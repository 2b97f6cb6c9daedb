package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ynodev/empowerpwd-api/internal/domain"
)

// --- mocks ---

type mockVerificationStore struct{ mock.Mock }

func (m *mockVerificationStore) Put(ctx context.Context, v *domain.Verification) error {
	return m.Called(ctx, v).Error(0)
}

func (m *mockVerificationStore) Get(ctx context.Context, email, purpose string) (*domain.Verification, error) {
	args := m.Called(ctx, email, purpose)
	if v, _ := args.Get(0).(*domain.Verification); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockVerificationStore) Delete(ctx context.Context, email, purpose string) error {
	return m.Called(ctx, email, purpose).Error(0)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

// --- helpers ---

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func newTestService(store *mockVerificationStore, mailer *mockMailer, now time.Time) Service {
	return NewService(ServiceDeps{
		Verifications: store,
		Mailer:        mailer,
		CodeTTL:       15 * time.Minute,
		Now:           func() time.Time { return now },
	})
}

func sessionOn(email string) *domain.WizardSession {
	return &domain.WizardSession{
		SessionID: "sess1",
		Flow:      domain.FlowJobSeeker,
		Answers:   map[string]string{"email": email},
		Errors:    map[string]string{},
	}
}

// --- tests ---

func TestIssueCodeStoresAndMails(t *testing.T) {
	store := new(mockVerificationStore)
	mailer := new(mockMailer)
	svc := newTestService(store, mailer, testNow)

	var stored *domain.Verification
	store.On("Put", mock.Anything, mock.AnythingOfType("*domain.Verification")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.Verification) }).
		Return(nil)
	mailer.On("SendEmail", "juan@example.com", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, svc.IssueCode(context.Background(), "juan@example.com"))

	require.NotNil(t, stored)
	assert.Len(t, stored.Code, 6)
	assert.Equal(t, domain.VerificationPurposeRegistration, stored.Purpose)
	assert.Equal(t, testNow.Add(15*time.Minute).Unix(), stored.ExpiresAt)
	mailer.AssertCalled(t, "SendEmail", "juan@example.com", mock.Anything, mock.Anything)
}

func TestSendStartsChallenge(t *testing.T) {
	store := new(mockVerificationStore)
	mailer := new(mockMailer)
	svc := newTestService(store, mailer, testNow)

	store.On("Put", mock.Anything, mock.Anything).Return(nil)
	mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	sess := sessionOn("juan@example.com")
	require.NoError(t, svc.Send(context.Background(), sess))

	require.NotNil(t, sess.Otp)
	assert.Equal(t, domain.OtpAwaitingInput, sess.Otp.AttemptState)
	assert.Equal(t, "juan@example.com", sess.Otp.TargetEmail)
	assert.Equal(t, testNow, sess.Otp.SentAt)
	assert.False(t, sess.Otp.Complete())
}

func TestSendWithoutEmailRejected(t *testing.T) {
	svc := newTestService(new(mockVerificationStore), new(mockMailer), testNow)
	err := svc.Send(context.Background(), sessionOn(""))
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestSendDeliveryFailureRestoresState(t *testing.T) {
	store := new(mockVerificationStore)
	mailer := new(mockMailer)
	svc := newTestService(store, mailer, testNow)

	store.On("Put", mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	sess := sessionOn("juan@example.com")
	err := svc.Send(context.Background(), sess)
	require.Error(t, err)
	require.NotNil(t, sess.Otp)
	assert.Equal(t, domain.OtpIdle, sess.Otp.AttemptState)
	assert.True(t, sess.Otp.SentAt.IsZero())
}

func TestResendRejectedDuringCooldown(t *testing.T) {
	store := new(mockVerificationStore)
	mailer := new(mockMailer)
	svc := newTestService(store, mailer, testNow)

	sess := sessionOn("juan@example.com")
	sess.Otp = domain.NewOtpChallenge("juan@example.com")
	sess.Otp.AttemptState = domain.OtpAwaitingInput
	sess.Otp.SentAt = testNow.Add(-30 * time.Second)

	err := svc.Resend(context.Background(), sess)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.Contains(t, err.Error(), "30 seconds")
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestResendAfterCooldownClearsCells(t *testing.T) {
	store := new(mockVerificationStore)
	mailer := new(mockMailer)
	svc := newTestService(store, mailer, testNow)

	store.On("Put", mock.Anything, mock.Anything).Return(nil)
	mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	sess := sessionOn("juan@example.com")
	sess.Otp = domain.NewOtpChallenge("juan@example.com")
	sess.Otp.AttemptState = domain.OtpAwaitingInput
	sess.Otp.SentAt = testNow.Add(-61 * time.Second)
	sess.Otp.Paste("123456")
	sess.Otp.FailureMessage = "incorrect verification code"

	require.NoError(t, svc.Resend(context.Background(), sess))
	assert.False(t, sess.Otp.Complete())
	assert.Empty(t, sess.Otp.FailureMessage)
	assert.Equal(t, testNow, sess.Otp.SentAt)
}

func TestVerifyIncompleteCode(t *testing.T) {
	svc := newTestService(new(mockVerificationStore), new(mockMailer), testNow)

	sess := sessionOn("juan@example.com")
	sess.Otp = domain.NewOtpChallenge("juan@example.com")
	sess.Otp.EnterDigit('1')

	err := svc.Verify(context.Background(), sess)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.Equal(t, "Please enter the complete 6-digit code", sess.Otp.FailureMessage)
}

func TestVerifyWrongCodeReturnsToAwaitingInput(t *testing.T) {
	store := new(mockVerificationStore)
	svc := newTestService(store, new(mockMailer), testNow)

	store.On("Get", mock.Anything, "juan@example.com", domain.VerificationPurposeRegistration).
		Return(&domain.Verification{
			Email:     "juan@example.com",
			Purpose:   domain.VerificationPurposeRegistration,
			Code:      "654321",
			ExpiresAt: testNow.Add(10 * time.Minute).Unix(),
		}, nil)

	sess := sessionOn("juan@example.com")
	sess.Otp = domain.NewOtpChallenge("juan@example.com")
	sess.Otp.Paste("123456")

	err := svc.Verify(context.Background(), sess)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, domain.OtpAwaitingInput, sess.Otp.AttemptState)
	// The rejection message is surfaced verbatim on the challenge.
	assert.Contains(t, sess.Otp.FailureMessage, "incorrect verification code")
}

func TestVerifyExpiredCode(t *testing.T) {
	store := new(mockVerificationStore)
	svc := newTestService(store, new(mockMailer), testNow)

	store.On("Get", mock.Anything, "juan@example.com", domain.VerificationPurposeRegistration).
		Return(&domain.Verification{
			Email:     "juan@example.com",
			Code:      "123456",
			ExpiresAt: testNow.Add(-time.Minute).Unix(),
		}, nil)

	sess := sessionOn("juan@example.com")
	sess.Otp = domain.NewOtpChallenge("juan@example.com")
	sess.Otp.Paste("123456")

	err := svc.Verify(context.Background(), sess)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Contains(t, sess.Otp.FailureMessage, "expired")
}

func TestVerifySuccessDeletesRecord(t *testing.T) {
	store := new(mockVerificationStore)
	svc := newTestService(store, new(mockMailer), testNow)

	store.On("Get", mock.Anything, "juan@example.com", domain.VerificationPurposeRegistration).
		Return(&domain.Verification{
			Email:     "juan@example.com",
			Code:      "123456",
			ExpiresAt: testNow.Add(10 * time.Minute).Unix(),
		}, nil)
	store.On("Delete", mock.Anything, "juan@example.com", domain.VerificationPurposeRegistration).Return(nil)

	sess := sessionOn("juan@example.com")
	sess.Otp = domain.NewOtpChallenge("juan@example.com")
	sess.Otp.Paste("123456")

	require.NoError(t, svc.Verify(context.Background(), sess))
	assert.Equal(t, domain.OtpVerified, sess.Otp.AttemptState)
	assert.Empty(t, sess.Otp.FailureMessage)
	store.AssertCalled(t, "Delete", mock.Anything, "juan@example.com", domain.VerificationPurposeRegistration)
}

func TestDiscardDropsChallengeAndRecord(t *testing.T) {
	store := new(mockVerificationStore)
	svc := newTestService(store, new(mockMailer), testNow)

	store.On("Delete", mock.Anything, "juan@example.com", domain.VerificationPurposeRegistration).Return(nil)

	sess := sessionOn("juan@example.com")
	sess.Otp = domain.NewOtpChallenge("juan@example.com")

	require.NoError(t, svc.Discard(context.Background(), sess))
	assert.Nil(t, sess.Otp)
	store.AssertCalled(t, "Delete", mock.Anything, "juan@example.com", domain.VerificationPurposeRegistration)

	// Discarding with no challenge is a no-op.
	require.NoError(t, svc.Discard(context.Background(), sess))
}
