package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ynodev/empowerpwd-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SessionEnvelope wraps wizard session snapshots. Bearer is set only on the
// response that completes a submission. Rejections carries per-file reasons
// from a document staging attempt.
type SessionEnvelope struct {
	Session    *domain.WizardSession `json:"session,omitempty"`
	Bearer     string                `json:"bearer,omitempty"`
	Rejections []string              `json:"rejections,omitempty"`
	Message    string                `json:"message,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// ExistsEnvelope wraps the email-uniqueness check.
type ExistsEnvelope struct {
	Exists bool `json:"exists"`
}

// HandoffEnvelope wraps a freshly minted handoff token.
type HandoffEnvelope struct {
	Token string `json:"token"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps wrapped domain sentinels onto status codes.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
