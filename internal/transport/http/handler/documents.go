package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ynodev/empowerpwd-api/internal/application/staging"
	"github.com/ynodev/empowerpwd-api/internal/application/wizard"
)

// DocumentHandler serves the wizard session's document staging routes.
type DocumentHandler struct {
	svc wizard.Service
}

func NewDocumentHandler(svc wizard.Service) *DocumentHandler { return &DocumentHandler{svc: svc} }

func (h *DocumentHandler) Stage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer f.Close()

	sess, reasons, err := h.svc.StageDocument(r.Context(), chi.URLParam(r, "id"), staging.StageInput{
		Type:     r.FormValue("type"),
		Filename: header.Filename,
		Size:     header.Size,
		Reader:   f,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	if len(reasons) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, SessionEnvelope{Session: sess, Rejections: reasons})
		return
	}
	writeJSON(w, http.StatusCreated, SessionEnvelope{Session: sess})
}

func (h *DocumentHandler) Unstage(w http.ResponseWriter, r *http.Request) {
	index := 0
	if raw := r.URL.Query().Get("index"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid index")
			return
		}
		index = n
	}
	sess, err := h.svc.UnstageDocument(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "type"), index)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: sess})
}
