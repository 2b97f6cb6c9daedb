// Package wizard owns the registration step machine: the ordered step list,
// the current position, and the gates on every forward transition.
package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ynodev/empowerpwd-api/internal/application/account"
	"github.com/ynodev/empowerpwd-api/internal/application/otp"
	"github.com/ynodev/empowerpwd-api/internal/application/staging"
	"github.com/ynodev/empowerpwd-api/internal/domain"
	"github.com/ynodev/empowerpwd-api/internal/geo"
	"github.com/ynodev/empowerpwd-api/internal/metrics"
	"github.com/ynodev/empowerpwd-api/internal/pkg/id"
	"github.com/ynodev/empowerpwd-api/internal/rules"
)

// SessionStore persists wizard sessions.
type SessionStore interface {
	Put(ctx context.Context, s *domain.WizardSession) error
	Get(ctx context.Context, sessionID string) (*domain.WizardSession, error)
	Delete(ctx context.Context, sessionID string) error
}

// HandoffStore holds read-once cross-navigation slots.
type HandoffStore interface {
	Put(ctx context.Context, h *domain.Handoff) error
	Consume(ctx context.Context, handoffID string) (*domain.Handoff, error)
}

// EmailChecker answers the asynchronous email-uniqueness check.
type EmailChecker interface {
	EmailExists(ctx context.Context, email string) (bool, error)
}

// HandoffSigner signs and verifies the tokens that name handoff slots.
type HandoffSigner interface {
	SignHandoff(handoffID string) (string, error)
	VerifyHandoff(token string) (string, error)
}

// CellAction is one code-entry event on the OTP cells.
type CellAction struct {
	Action string // "digit" | "backspace" | "paste"
	Value  string
}

// Service is the wizard step controller.
type Service interface {
	Start(ctx context.Context, flow, handoffToken string) (*domain.WizardSession, error)
	Get(ctx context.Context, sessionID string) (*domain.WizardSession, error)
	// SetAnswers merges field edits into the session. A location parent
	// change clears every descendant selection; errors for edited fields are
	// cleared so the registrant sees stale messages disappear as they type.
	SetAnswers(ctx context.Context, sessionID string, scalars map[string]string, lists map[string][]string) (*domain.WizardSession, error)
	// Advance re-validates the current step and moves forward only when the
	// error map comes back empty. On the terminal step it submits instead and
	// returns the bearer token for the fresh account.
	Advance(ctx context.Context, sessionID string) (*domain.WizardSession, string, error)
	// Retreat steps back to the previous ordinal step without re-validating.
	// Leaving the OTP sub-step forfeits the in-flight code, so it requires
	// confirm=true and discards the challenge.
	Retreat(ctx context.Context, sessionID string, confirm bool) (*domain.WizardSession, error)
	// ResendOtp re-issues the code, subject to the cooldown.
	ResendOtp(ctx context.Context, sessionID string) (*domain.WizardSession, error)
	// OtpCells applies a code-entry event to the challenge cells.
	OtpCells(ctx context.Context, sessionID string, action CellAction) (*domain.WizardSession, error)
	// StageDocument and UnstageDocument manage the staging area.
	StageDocument(ctx context.Context, sessionID string, in staging.StageInput) (*domain.WizardSession, []string, error)
	UnstageDocument(ctx context.Context, sessionID, docType string, index int) (*domain.WizardSession, error)
	// Abandon tears the session down after the leave-page confirmation.
	Abandon(ctx context.Context, sessionID string) error
	// CreateHandoff stashes answers for a cross-navigation edit flow and
	// returns the token that names the slot.
	CreateHandoff(ctx context.Context, flow string, answers map[string]string) (string, error)
}

// ServiceDeps carries the controller's collaborators.
type ServiceDeps struct {
	Sessions   SessionStore
	Handoffs   HandoffStore
	Emails     EmailChecker
	Otp        otp.Service
	Staging    staging.Service
	Assembler  account.Service
	Engine     *rules.Engine
	Signer     HandoffSigner
	Metrics    *metrics.Metrics
	SessionTTL time.Duration
	// HandoffTTL must match the signed token's lifetime, or a valid token
	// can name an already-expired slot.
	HandoffTTL time.Duration
	Now        func() time.Time
}

type service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.HandoffTTL == 0 {
		deps.HandoffTTL = 10 * time.Minute
	}
	return &service{deps: deps}
}

func (s *service) Start(ctx context.Context, flow, handoffToken string) (*domain.WizardSession, error) {
	if !domain.ValidFlow(flow) {
		return nil, fmt.Errorf("unknown flow %q: %w", flow, domain.ErrBadRequest)
	}
	now := s.deps.Now().UTC()
	sess := &domain.WizardSession{
		SessionID:   id.New(),
		Flow:        domain.FlowKind(flow),
		Answers:     map[string]string{},
		ListAnswers: map[string][]string{},
		Errors:      map[string]string{},
		ExpiresAt:   now.Add(s.deps.SessionTTL).Unix(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The handoff slot is read-once: consumed here, gone afterwards.
	if handoffToken != "" && s.deps.Signer != nil {
		handoffID, err := s.deps.Signer.VerifyHandoff(handoffToken)
		if err != nil {
			return nil, fmt.Errorf("invalid handoff token: %w", domain.ErrBadRequest)
		}
		h, err := s.deps.Handoffs.Consume(ctx, handoffID)
		if err != nil {
			return nil, fmt.Errorf("handoff slot unavailable: %w", err)
		}
		for k, v := range h.Answers {
			sess.Answers[k] = v
		}
	}

	if err := s.deps.Sessions.Put(ctx, sess); err != nil {
		return nil, err
	}
	s.deps.Metrics.SessionsStarted.WithLabelValues(flow).Inc()
	return sess, nil
}

func (s *service) Get(ctx context.Context, sessionID string) (*domain.WizardSession, error) {
	return s.deps.Sessions.Get(ctx, sessionID)
}

// load fetches a live (not yet submitted) session.
func (s *service) load(ctx context.Context, sessionID string) (*domain.WizardSession, error) {
	sess, err := s.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Submitted {
		return nil, fmt.Errorf("session already submitted: %w", domain.ErrConflict)
	}
	return sess, nil
}

func (s *service) save(ctx context.Context, sess *domain.WizardSession) (*domain.WizardSession, error) {
	sess.UpdatedAt = s.deps.Now().UTC()
	if err := s.deps.Sessions.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// locationLevels maps answer fields to cascade levels, in hierarchy order.
var locationLevels = []struct {
	field string
	level geo.Level
}{
	{"region", geo.LevelRegion},
	{"province", geo.LevelProvince},
	{"city", geo.LevelCity},
	{"barangay", geo.LevelBarangay},
}

func (s *service) SetAnswers(ctx context.Context, sessionID string, scalars map[string]string, lists map[string][]string) (*domain.WizardSession, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	for field, value := range scalars {
		if field == "acceptedTerms" {
			sess.AcceptedTerms = value == "true"
			delete(sess.Errors, field)
			continue
		}
		changed := sess.Answers[field] != value
		sess.Answers[field] = value
		delete(sess.Errors, field)

		// A parent-level location change invalidates every descendant: no
		// stale selection may survive the parent moving out from under it.
		if changed {
			for i, ll := range locationLevels {
				if ll.field != field {
					continue
				}
				for _, desc := range locationLevels[i+1:] {
					sess.Answers[desc.field] = ""
					delete(sess.Errors, desc.field)
				}
				break
			}
		}
	}
	for field, values := range lists {
		sess.ListAnswers[field] = values
		delete(sess.Errors, field)
	}

	return s.save(ctx, sess)
}

func (s *service) Advance(ctx context.Context, sessionID string) (*domain.WizardSession, string, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}

	step := sess.Step()
	errs := s.deps.Engine.Validate(step, sess)

	// The email-uniqueness check is asynchronous with respect to the rule
	// set but merges into the same error map under the same field.
	if step == domain.StepAccountInfo && errs["email"] == "" {
		exists, err := s.deps.Emails.EmailExists(ctx, sess.Answer("email"))
		if err != nil {
			return nil, "", fmt.Errorf("check email: %w", err)
		}
		if exists {
			errs["email"] = "This email is already registered"
		}
	}

	sess.Errors = errs
	if len(errs) > 0 {
		sess, err = s.save(ctx, sess)
		return sess, "", err
	}

	switch {
	case step == domain.StepOtpVerification:
		if err := s.deps.Otp.Verify(ctx, sess); err != nil {
			s.deps.Metrics.OtpVerifications.WithLabelValues("failed").Inc()
			// The failure message rides on the challenge; persist and let
			// the registrant retry from the same step.
			if _, serr := s.save(ctx, sess); serr != nil {
				slog.Warn("failed to persist failed verification", "session_id", sessionID, "err", serr)
			}
			return sess, "", err
		}
		s.deps.Metrics.OtpVerifications.WithLabelValues("verified").Inc()
		// Verified is terminal for the challenge: discard it and move on.
		sess.Otp = nil

	case sess.OnTerminalStep():
		acc, bearer, err := s.deps.Assembler.Submit(ctx, sess)
		if err != nil {
			s.deps.Metrics.Submissions.WithLabelValues(string(sess.Flow), "error").Inc()
			return sess, "", err
		}
		s.deps.Metrics.Submissions.WithLabelValues(string(sess.Flow), "success").Inc()
		slog.Info("registration submitted", "session_id", sess.SessionID, "account_id", acc.AccountID, "flow", sess.Flow)
		sess, err = s.save(ctx, sess)
		return sess, bearer, err

	case step == domain.StepAccountInfo:
		// Entering the OTP sub-step: send the first code before moving. A
		// delivery failure keeps the session on account info for retry.
		if err := s.deps.Otp.Send(ctx, sess); err != nil {
			return sess, "", err
		}
		s.deps.Metrics.OtpSends.Inc()
	}

	sess.StepIndex++
	s.deps.Metrics.StepsAdvanced.WithLabelValues(string(sess.Step())).Inc()
	sess, err = s.save(ctx, sess)
	return sess, "", err
}

func (s *service) Retreat(ctx context.Context, sessionID string, confirm bool) (*domain.WizardSession, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.StepIndex == 0 {
		return sess, nil
	}

	if sess.Step() == domain.StepOtpVerification {
		if !confirm {
			return nil, fmt.Errorf("leaving verification forfeits the code; confirmation required: %w", domain.ErrBadRequest)
		}
		if err := s.deps.Otp.Discard(ctx, sess); err != nil {
			return nil, err
		}
	}

	sess.StepIndex--
	// Back-navigation lands on ordinal steps only: the spliced OTP sub-step
	// is skipped over, discarding any challenge left on it.
	if sess.Step() == domain.StepOtpVerification {
		if err := s.deps.Otp.Discard(ctx, sess); err != nil {
			return nil, err
		}
		sess.StepIndex--
	}
	return s.save(ctx, sess)
}

func (s *service) ResendOtp(ctx context.Context, sessionID string) (*domain.WizardSession, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Step() != domain.StepOtpVerification {
		return nil, fmt.Errorf("not on the verification step: %w", domain.ErrBadRequest)
	}
	if err := s.deps.Otp.Resend(ctx, sess); err != nil {
		return nil, err
	}
	s.deps.Metrics.OtpSends.Inc()
	return s.save(ctx, sess)
}

func (s *service) OtpCells(ctx context.Context, sessionID string, action CellAction) (*domain.WizardSession, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Otp == nil {
		return nil, fmt.Errorf("no active challenge: %w", domain.ErrBadRequest)
	}
	switch action.Action {
	case "digit":
		for _, r := range action.Value {
			sess.Otp.EnterDigit(r)
			break
		}
	case "backspace":
		sess.Otp.Backspace()
	case "paste":
		sess.Otp.Paste(action.Value)
	default:
		return nil, fmt.Errorf("unknown cell action %q: %w", action.Action, domain.ErrBadRequest)
	}
	// New input clears the previous failure message.
	sess.Otp.FailureMessage = ""
	return s.save(ctx, sess)
}

func (s *service) StageDocument(ctx context.Context, sessionID string, in staging.StageInput) (*domain.WizardSession, []string, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	_, reasons, err := s.deps.Staging.Stage(ctx, sess, in)
	if err != nil {
		s.deps.Metrics.DocumentsStaged.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	if len(reasons) > 0 {
		s.deps.Metrics.DocumentsStaged.WithLabelValues("rejected").Inc()
	} else {
		s.deps.Metrics.DocumentsStaged.WithLabelValues("accepted").Inc()
	}
	sess, err = s.save(ctx, sess)
	return sess, reasons, err
}

func (s *service) UnstageDocument(ctx context.Context, sessionID, docType string, index int) (*domain.WizardSession, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Staging.Unstage(ctx, sess, docType, index); err != nil {
		return nil, err
	}
	return s.save(ctx, sess)
}

func (s *service) Abandon(ctx context.Context, sessionID string) error {
	sess, err := s.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.Submitted {
		if err := s.deps.Otp.Discard(ctx, sess); err != nil {
			slog.Warn("failed to discard challenge on abandon", "session_id", sessionID, "err", err)
		}
		if err := s.deps.Staging.Clear(ctx, sess); err != nil {
			slog.Warn("failed to clear staging on abandon", "session_id", sessionID, "err", err)
		}
	}
	return s.deps.Sessions.Delete(ctx, sessionID)
}

func (s *service) CreateHandoff(ctx context.Context, flow string, answers map[string]string) (string, error) {
	if !domain.ValidFlow(flow) {
		return "", fmt.Errorf("unknown flow %q: %w", flow, domain.ErrBadRequest)
	}
	if s.deps.Signer == nil {
		return "", fmt.Errorf("handoff signing not configured: %w", domain.ErrBadRequest)
	}
	h := &domain.Handoff{
		HandoffID: id.New(),
		Flow:      domain.FlowKind(flow),
		Answers:   answers,
		ExpiresAt: s.deps.Now().Add(s.deps.HandoffTTL).Unix(),
	}
	if err := s.deps.Handoffs.Put(ctx, h); err != nil {
		return "", err
	}
	return s.deps.Signer.SignHandoff(h.HandoffID)
}
