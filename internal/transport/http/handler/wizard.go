package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ynodev/empowerpwd-api/internal/application/wizard"
	"github.com/ynodev/empowerpwd-api/internal/domain"
	"github.com/ynodev/empowerpwd-api/internal/pkg/validate"
)

// WizardHandler serves the wizard session lifecycle.
type WizardHandler struct {
	svc wizard.Service
}

func NewWizardHandler(svc wizard.Service) *WizardHandler { return &WizardHandler{svc: svc} }

type startSessionRequest struct {
	Flow         string `json:"flow" validate:"required,oneof=jobseeker assistant employer"`
	HandoffToken string `json:"handoff_token"`
}

func (h *WizardHandler) Start(w http.ResponseWriter, r *http.Request) {
	var body startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := h.svc.Start(r.Context(), body.Flow, body.HandoffToken)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionEnvelope{Session: sess})
}

func (h *WizardHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: sess})
}

type answersRequest struct {
	Answers     map[string]string   `json:"answers"`
	ListAnswers map[string][]string `json:"list_answers"`
}

func (h *WizardHandler) PatchAnswers(w http.ResponseWriter, r *http.Request) {
	var body answersRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := h.svc.SetAnswers(r.Context(), chi.URLParam(r, "id"), body.Answers, body.ListAnswers)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: sess})
}

func (h *WizardHandler) Advance(w http.ResponseWriter, r *http.Request) {
	sess, bearer, err := h.svc.Advance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		// Verification failures carry the updated session so the client can
		// render the surfaced message without another round trip.
		if sess != nil && errors.Is(err, domain.ErrUnauthorized) {
			writeJSON(w, http.StatusUnauthorized, SessionEnvelope{Session: sess, Error: err.Error()})
			return
		}
		if sess != nil && errors.Is(err, domain.ErrBadRequest) {
			writeJSON(w, http.StatusBadRequest, SessionEnvelope{Session: sess, Error: err.Error()})
			return
		}
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: sess, Bearer: bearer})
}

type retreatRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *WizardHandler) Retreat(w http.ResponseWriter, r *http.Request) {
	var body retreatRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	sess, err := h.svc.Retreat(r.Context(), chi.URLParam(r, "id"), body.Confirm)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: sess})
}

type cellsRequest struct {
	Action string `json:"action" validate:"required,oneof=digit backspace paste"`
	Value  string `json:"value"`
}

func (h *WizardHandler) OtpCells(w http.ResponseWriter, r *http.Request) {
	var body cellsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := h.svc.OtpCells(r.Context(), chi.URLParam(r, "id"), wizard.CellAction{
		Action: body.Action,
		Value:  body.Value,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: sess})
}

func (h *WizardHandler) ResendOtp(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.ResendOtp(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: sess, Message: "verification code resent"})
}

func (h *WizardHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Abandon(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "session abandoned"})
}

type handoffRequest struct {
	Flow    string            `json:"flow" validate:"required,oneof=jobseeker assistant employer"`
	Answers map[string]string `json:"answers"`
}

func (h *WizardHandler) CreateHandoff(w http.ResponseWriter, r *http.Request) {
	var body handoffRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token, err := h.svc.CreateHandoff(r.Context(), body.Flow, body.Answers)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, HandoffEnvelope{Token: token})
}
