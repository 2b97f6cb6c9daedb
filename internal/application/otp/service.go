// Package otp coordinates the email verification challenge: issuing codes,
// the resend cooldown, and verification against the stored record.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ynodev/empowerpwd-api/internal/domain"
)

// VerificationStore persists issued codes with a TTL.
type VerificationStore interface {
	Put(ctx context.Context, v *domain.Verification) error
	Get(ctx context.Context, email, purpose string) (*domain.Verification, error)
	Delete(ctx context.Context, email, purpose string) error
}

// Mailer delivers the code to the registrant.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// Service drives the challenge state machine:
// Idle → Sending → AwaitingInput → Verifying → {Verified | Failed}.
// Failed returns the challenge to AwaitingInput so the registrant can retry
// entry; only Verified is terminal.
type Service interface {
	// Send starts (or restarts) the challenge for the session's email answer.
	Send(ctx context.Context, s *domain.WizardSession) error
	// Resend re-issues the code; rejected while the cooldown is running.
	Resend(ctx context.Context, s *domain.WizardSession) error
	// Verify checks the joined cells against the stored code. On success the
	// challenge is discarded and the caller may advance the session.
	Verify(ctx context.Context, s *domain.WizardSession) error
	// Discard drops the challenge and its stored code, e.g. when the
	// registrant retreats out of the sub-step.
	Discard(ctx context.Context, s *domain.WizardSession) error

	// IssueCode and CheckCode are the session-less primitives behind the
	// /api/auth/{send,resend,verify}-otp routes.
	IssueCode(ctx context.Context, email string) error
	CheckCode(ctx context.Context, email, code string) error
}

// ServiceDeps carries the service's collaborators.
type ServiceDeps struct {
	Verifications VerificationStore
	Mailer        Mailer
	CodeTTL       time.Duration
	Now           func() time.Time
}

type service struct {
	verifications VerificationStore
	mailer        Mailer
	codeTTL       time.Duration
	now           func() time.Time
}

func NewService(deps ServiceDeps) Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &service{
		verifications: deps.Verifications,
		mailer:        deps.Mailer,
		codeTTL:       deps.CodeTTL,
		now:           deps.Now,
	}
}

func (s *service) IssueCode(ctx context.Context, email string) error {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	v := &domain.Verification{
		Email:     email,
		Purpose:   domain.VerificationPurposeRegistration,
		Code:      code,
		ExpiresAt: s.now().Add(s.codeTTL).Unix(),
	}
	if err := s.verifications.Put(ctx, v); err != nil {
		return err
	}
	return s.mailer.SendEmail(email, "Your EmpowerPWD verification code",
		"Your verification code is "+code+". It expires in "+fmt.Sprintf("%d", int(s.codeTTL.Minutes()))+" minutes.")
}

func (s *service) CheckCode(ctx context.Context, email, code string) error {
	v, err := s.verifications.Get(ctx, email, domain.VerificationPurposeRegistration)
	if err != nil {
		return fmt.Errorf("no verification code on record: %w", domain.ErrNotFound)
	}
	if v.ExpiresAt < s.now().Unix() {
		return fmt.Errorf("verification code has expired: %w", domain.ErrUnauthorized)
	}
	if v.Code != code {
		return fmt.Errorf("incorrect verification code: %w", domain.ErrUnauthorized)
	}
	if err := s.verifications.Delete(ctx, email, domain.VerificationPurposeRegistration); err != nil {
		slog.Warn("failed to delete verification record", "email", email, "err", err)
	}
	return nil
}

func (s *service) Send(ctx context.Context, sess *domain.WizardSession) error {
	email := sess.Answer("email")
	if email == "" {
		return fmt.Errorf("no email to verify: %w", domain.ErrBadRequest)
	}
	if sess.Otp == nil || sess.Otp.TargetEmail != email {
		sess.Otp = domain.NewOtpChallenge(email)
	}
	return s.deliver(ctx, sess.Otp)
}

func (s *service) Resend(ctx context.Context, sess *domain.WizardSession) error {
	if sess.Otp == nil {
		return fmt.Errorf("no active challenge: %w", domain.ErrBadRequest)
	}
	if remaining := sess.Otp.CooldownRemaining(s.now()); remaining > 0 {
		return fmt.Errorf("resend available in %d seconds: %w", remaining, domain.ErrBadRequest)
	}
	return s.deliver(ctx, sess.Otp)
}

// deliver issues a fresh code and moves the challenge to AwaitingInput with
// cleared cells and a restarted cooldown. A delivery failure leaves the
// previous cooldown untouched so the registrant may simply retry.
func (s *service) deliver(ctx context.Context, c *domain.OtpChallenge) error {
	prev := c.AttemptState
	c.AttemptState = domain.OtpSending
	if err := s.IssueCode(ctx, c.TargetEmail); err != nil {
		c.AttemptState = prev
		return fmt.Errorf("send verification code: %w", err)
	}
	c.ClearCells()
	c.FailureMessage = ""
	c.SentAt = s.now()
	c.AttemptState = domain.OtpAwaitingInput
	return nil
}

func (s *service) Verify(ctx context.Context, sess *domain.WizardSession) error {
	c := sess.Otp
	if c == nil {
		return fmt.Errorf("no active challenge: %w", domain.ErrBadRequest)
	}
	if !c.Complete() {
		c.FailureMessage = "Please enter the complete 6-digit code"
		return fmt.Errorf("incomplete code: %w", domain.ErrBadRequest)
	}
	c.AttemptState = domain.OtpVerifying
	if err := s.CheckCode(ctx, c.TargetEmail, c.Code()); err != nil {
		// Failed is transient: the challenge returns to AwaitingInput so the
		// registrant can correct the cells, with the message surfaced verbatim.
		c.AttemptState = domain.OtpAwaitingInput
		c.FailureMessage = err.Error()
		return fmt.Errorf("verify code: %w", err)
	}
	c.AttemptState = domain.OtpVerified
	c.FailureMessage = ""
	return nil
}

func (s *service) Discard(ctx context.Context, sess *domain.WizardSession) error {
	if sess.Otp == nil {
		return nil
	}
	email := sess.Otp.TargetEmail
	sess.Otp = nil
	if err := s.verifications.Delete(ctx, email, domain.VerificationPurposeRegistration); err != nil {
		slog.Warn("failed to delete verification record on discard", "email", email, "err", err)
	}
	return nil
}
