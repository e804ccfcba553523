package importer

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/session"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Subjects handles GET /api/admin/import/subjects
func (h *Handler) Subjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.svc.Subjects()
	if err != nil {
		h.writeErr(w, "list subjects", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{
		"language": h.svc.Language(),
		"subjects": subjects,
	})
}

// Search handles POST /api/admin/import/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var f Filters
	if err := utilities.DecodeJSON(r, &f); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	owner := session.FromContext(r.Context()).AccountID
	out, err := h.svc.Search(r.Context(), owner, f)
	if err != nil {
		h.writeErr(w, "search", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, out)
}

// Import handles POST /api/admin/import/works/{key}
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	owner := session.FromContext(r.Context()).AccountID
	it, err := h.svc.Import(r.Context(), owner, r.PathValue("key"))
	if err != nil {
		h.writeErr(w, "import", err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, map[string]any{
		"item":       it,
		"candidates": h.svc.Candidates(owner),
	})
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	if fe, ok := utilities.AsFieldErrors(err); ok {
		utilities.WriteValidation(w, fe)
		return
	}
	switch {
	case errors.Is(err, ErrUnknownCandidate):
		utilities.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidWorkKey):
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUpstream):
		h.logger.Warnw(op+" upstream failure", "err", err)
		utilities.WriteError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Errorw(op+" failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, op+" failed")
	}
}
