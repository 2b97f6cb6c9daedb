package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ynodev/empowerpwd-api/internal/application/account"
	"github.com/ynodev/empowerpwd-api/internal/application/otp"
	"github.com/ynodev/empowerpwd-api/internal/application/staging"
	"github.com/ynodev/empowerpwd-api/internal/domain"
	"github.com/ynodev/empowerpwd-api/internal/metrics"
	"github.com/ynodev/empowerpwd-api/internal/pkg/id"
	"github.com/ynodev/empowerpwd-api/internal/rules"
)

// listFields are multipart fields collected as multi-value answers.
var listFields = map[string]bool{
	"skills":          true,
	"disabilityTypes": true,
	"industries":      true,
	"jobTitles":       true,
}

// routeFlows maps the plural route segment to its flow.
var routeFlows = map[string]domain.FlowKind{
	"jobseekers": domain.FlowJobSeeker,
	"assistants": domain.FlowAssistant,
	"employers":  domain.FlowEmployer,
}

// RegisterHandler serves the one-shot registration routes. It runs the same
// rule set as the step-by-step wizard over an ephemeral session, so a caller
// skipping the wizard cannot skip its validation.
type RegisterHandler struct {
	staging   staging.Service
	assembler account.Service
	otp       otp.Service
	engine    *rules.Engine
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewRegisterHandler(stagingSvc staging.Service, assembler account.Service, otpSvc otp.Service, engine *rules.Engine, m *metrics.Metrics) *RegisterHandler {
	return &RegisterHandler{
		staging:   stagingSvc,
		assembler: assembler,
		otp:       otpSvc,
		engine:    engine,
		metrics:   m,
		now:       time.Now,
	}
}

func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
	flow, ok := routeFlows[chi.URLParam(r, "flow")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown registration flow")
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	now := h.now().UTC()
	sess := &domain.WizardSession{
		SessionID:   id.New(),
		Flow:        flow,
		Answers:     map[string]string{},
		ListAnswers: map[string][]string{},
		Errors:      map[string]string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for field, values := range r.MultipartForm.Value {
		if len(values) == 0 {
			continue
		}
		switch {
		case field == "acceptedTerms":
			sess.AcceptedTerms = values[0] == "true"
		case listFields[field]:
			sess.ListAnswers[field] = values
		default:
			sess.Answers[field] = values[0]
		}
	}

	// Stage every attached document under the ephemeral session so the
	// assembler promotes them exactly as it would for a wizard session.
	for field, headers := range r.MultipartForm.File {
		for _, header := range headers {
			f, err := header.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "unreadable file "+header.Filename)
				return
			}
			_, reasons, err := h.staging.Stage(r.Context(), sess, staging.StageInput{
				Type:     field,
				Filename: header.Filename,
				Size:     header.Size,
				Reader:   f,
			})
			f.Close()
			if err != nil {
				h.cleanup(r, sess)
				httpError(w, err)
				return
			}
			if len(reasons) > 0 {
				h.cleanup(r, sess)
				writeJSON(w, http.StatusUnprocessableEntity, SessionEnvelope{Session: sess, Rejections: reasons})
				return
			}
		}
	}

	// Every ordinal step must pass; the OTP sub-step has no screen here, so
	// the code issued through /api/auth/send-otp must ride on the form.
	errs := map[string]string{}
	for _, step := range domain.StepsFor(flow) {
		if step == domain.StepOtpVerification {
			continue
		}
		for field, msg := range h.engine.Validate(step, sess) {
			if _, taken := errs[field]; !taken {
				errs[field] = msg
			}
		}
	}
	if len(errs) > 0 {
		sess.Errors = errs
		h.cleanup(r, sess)
		writeJSON(w, http.StatusUnprocessableEntity, SessionEnvelope{Session: sess})
		return
	}

	code := r.FormValue("otp")
	if code == "" {
		h.cleanup(r, sess)
		writeError(w, http.StatusBadRequest, "verification code is required")
		return
	}
	if err := h.otp.CheckCode(r.Context(), sess.Answer("email"), code); err != nil {
		h.metrics.OtpVerifications.WithLabelValues("failed").Inc()
		h.cleanup(r, sess)
		httpError(w, err)
		return
	}
	h.metrics.OtpVerifications.WithLabelValues("verified").Inc()

	acc, bearer, err := h.assembler.Submit(r.Context(), sess)
	if err != nil {
		h.metrics.Submissions.WithLabelValues(string(flow), "error").Inc()
		h.cleanup(r, sess)
		httpError(w, err)
		return
	}
	h.metrics.Submissions.WithLabelValues(string(flow), "success").Inc()
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"account_id": acc.AccountID,
		"bearer":     bearer,
	})
}

// cleanup drops whatever this request staged; the session never persisted.
func (h *RegisterHandler) cleanup(r *http.Request, sess *domain.WizardSession) {
	if len(sess.Documents) > 0 {
		_ = h.staging.Clear(r.Context(), sess)
	}
}
