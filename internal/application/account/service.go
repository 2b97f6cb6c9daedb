// Package account assembles a validated wizard session into one account
// record. Submission is atomic from the caller's perspective: until the
// account item is written nothing user-visible changes, and any error leaves
// the session intact for retry.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ynodev/empowerpwd-api/internal/application/staging"
	"github.com/ynodev/empowerpwd-api/internal/domain"
	"github.com/ynodev/empowerpwd-api/internal/pkg/id"
	"github.com/ynodev/empowerpwd-api/internal/rules"
	"golang.org/x/crypto/bcrypt"
)

// AccountStore persists created accounts.
type AccountStore interface {
	Put(ctx context.Context, a *domain.Account) error
	EmailExists(ctx context.Context, email string) (bool, error)
}

// SessionStore marks the session submitted.
type SessionStore interface {
	Update(ctx context.Context, sessionID string, updates map[string]interface{}) error
}

// ObjectStore promotes staged documents and clears the staging prefix.
type ObjectStore interface {
	Copy(ctx context.Context, srcKey, dstKey string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Mailer sends the welcome email.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// SMSSender sends the optional submission SMS.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// TokenSigner issues the post-registration bearer token.
type TokenSigner interface {
	SignAccount(accountID, flow string) (string, error)
}

// Service is the submission assembler.
type Service interface {
	// Submit creates the account from the session's accumulated answers and
	// staged documents. On success the session is marked submitted and is
	// never accepted again; the returned bearer lets the fresh account sign
	// in immediately (empty when no signer is configured).
	Submit(ctx context.Context, s *domain.WizardSession) (*domain.Account, string, error)
}

// ServiceDeps carries the assembler's collaborators. SMS and Signer are
// optional; the rest are required.
type ServiceDeps struct {
	Accounts AccountStore
	Sessions SessionStore
	Objects  ObjectStore
	Mailer   Mailer
	SMS      SMSSender
	Signer   TokenSigner
	Now      func() time.Time
}

type service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &service{deps: deps}
}

func (s *service) Submit(ctx context.Context, sess *domain.WizardSession) (*domain.Account, string, error) {
	if sess.Submitted {
		return nil, "", fmt.Errorf("session already submitted: %w", domain.ErrConflict)
	}
	if !sess.AcceptedTerms {
		return nil, "", fmt.Errorf("terms must be accepted: %w", domain.ErrBadRequest)
	}

	email := sess.Answer("email")
	exists, err := s.deps.Accounts.EmailExists(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, "", fmt.Errorf("email is already registered: %w", domain.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(sess.Answer("password")), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	phone := sess.Answer("phone")
	if normalized, msg := rules.NormalizePhone(phone); msg == "" {
		phone = normalized
	}

	now := s.deps.Now().UTC()
	acc := &domain.Account{
		AccountID:       id.New(),
		Flow:            sess.Flow,
		Email:           email,
		PasswordHash:    string(hash),
		Phone:           phone,
		FirstName:       sess.Answer("firstName"),
		LastName:        sess.Answer("lastName"),
		DateOfBirth:     sess.Answer("dateOfBirth"),
		CompanyName:     sess.Answer("companyName"),
		Region:          sess.Answer("region"),
		Province:        sess.Answer("province"),
		City:            sess.Answer("city"),
		Barangay:        sess.Answer("barangay"),
		PostalCode:      sess.Answer("postalCode"),
		Street:          sess.Answer("street"),
		Skills:          sess.ListAnswers["skills"],
		DisabilityTypes: sess.ListAnswers["disabilityTypes"],
		Industries:      sess.ListAnswers["industries"],
		JobTitles:       sess.ListAnswers["jobTitles"],
		DocumentKeys:    map[string][]string{},
		EmailConfirmed:  true,
		Enable:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Promote staged documents to their permanent keys before the account
	// write; a failure here aborts the whole submission with nothing created.
	for _, doc := range sess.Documents {
		dst := fmt.Sprintf("documents/%s/%s/%s", acc.AccountID, doc.Type, doc.Name)
		if err := s.deps.Objects.Copy(ctx, doc.Key, dst); err != nil {
			return nil, "", fmt.Errorf("promote document %s: %w", doc.Type, err)
		}
		acc.DocumentKeys[string(doc.Type)] = append(acc.DocumentKeys[string(doc.Type)], dst)
	}

	if err := s.deps.Accounts.Put(ctx, acc); err != nil {
		return nil, "", fmt.Errorf("create account: %w", err)
	}

	sess.Submitted = true
	sess.AccountID = acc.AccountID
	if err := s.deps.Sessions.Update(ctx, sess.SessionID, map[string]interface{}{
		"submitted":  true,
		"account_id": acc.AccountID,
	}); err != nil {
		// The account exists; the session flag is advisory at this point.
		slog.Warn("failed to mark session submitted", "session_id", sess.SessionID, "err", err)
	}

	if err := s.deps.Objects.DeletePrefix(ctx, staging.StagingPrefix(sess.SessionID)); err != nil {
		slog.Warn("failed to clear staging prefix", "session_id", sess.SessionID, "err", err)
	}

	if err := s.deps.Mailer.SendEmail(acc.Email, "Welcome to EmpowerPWD",
		"Your registration has been received. You can now sign in with your email address."); err != nil {
		slog.Warn("failed to send welcome email", "email", acc.Email, "err", err)
	}
	if s.deps.SMS != nil && acc.Phone != "" {
		if err := s.deps.SMS.SendSMS(ctx, acc.Phone, "Your EmpowerPWD registration has been received."); err != nil {
			slog.Warn("failed to send submission SMS", "err", err)
		}
	}

	var bearer string
	if s.deps.Signer != nil {
		if bearer, err = s.deps.Signer.SignAccount(acc.AccountID, string(acc.Flow)); err != nil {
			slog.Warn("failed to sign bearer token", "err", err)
			bearer = ""
		}
	}
	return acc, bearer, nil
}
