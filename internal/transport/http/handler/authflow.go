package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ynodev/empowerpwd-api/internal/application/otp"
	"github.com/ynodev/empowerpwd-api/internal/metrics"
	"github.com/ynodev/empowerpwd-api/internal/pkg/validate"
)

// EmailChecker answers the email-uniqueness check.
type EmailChecker interface {
	EmailExists(ctx context.Context, email string) (bool, error)
}

// AuthFlowHandler serves the session-less identity endpoints: the email
// uniqueness check and the standalone OTP issue/verify aliases.
type AuthFlowHandler struct {
	otp     otp.Service
	emails  EmailChecker
	metrics *metrics.Metrics
}

func NewAuthFlowHandler(otpSvc otp.Service, emails EmailChecker, m *metrics.Metrics) *AuthFlowHandler {
	return &AuthFlowHandler{otp: otpSvc, emails: emails, metrics: m}
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyOtpRequest struct {
	Email string `json:"email" validate:"required,email"`
	Otp   string `json:"otp" validate:"required,len=6,numeric"`
}

func (h *AuthFlowHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	var body emailRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	exists, err := h.emails.EmailExists(r.Context(), body.Email)
	if err != nil {
		httpError(w, err)
		return
	}
	h.metrics.EmailChecks.Inc()
	writeJSON(w, http.StatusOK, ExistsEnvelope{Exists: exists})
}

func (h *AuthFlowHandler) SendOtp(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, "verification code sent")
}

func (h *AuthFlowHandler) ResendOtp(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, "verification code resent")
}

func (h *AuthFlowHandler) issue(w http.ResponseWriter, r *http.Request, msg string) {
	var body emailRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.otp.IssueCode(r.Context(), body.Email); err != nil {
		httpError(w, err)
		return
	}
	h.metrics.OtpSends.Inc()
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: msg})
}

func (h *AuthFlowHandler) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	var body verifyOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.otp.CheckCode(r.Context(), body.Email, body.Otp); err != nil {
		h.metrics.OtpVerifications.WithLabelValues("failed").Inc()
		httpError(w, err)
		return
	}
	h.metrics.OtpVerifications.WithLabelValues("verified").Inc()
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "email verified"})
}
