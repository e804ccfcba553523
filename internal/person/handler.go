package person

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

// Handler exposes the administrator's people roster.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /api/admin/users?q=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	people, err := h.svc.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Errorw("list people failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "list users failed")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, people)
}

// pathID reads the {id} wildcard. Person ids are account UUIDs.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !utilities.IsUUID(id) {
		utilities.WriteError(w, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return id, true
}

// Update handles PUT /api/admin/users/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req AdminUpdate
	if err := utilities.DecodeJSON(r, &req); err != nil {
		h.logger.Debugw("invalid user payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		h.writeErr(w, "update user", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, p)
}

// ToggleAdmin handles POST /api/admin/users/{id}/admin
func (h *Handler) ToggleAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.ToggleAdmin(r.Context(), id)
	if err != nil {
		h.writeErr(w, "toggle admin", err)
		return
	}
	h.logger.Infow("role changed", "person", p.ID, "is_admin", p.IsAdmin)
	utilities.WriteJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /api/admin/users/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeErr(w, "delete user", err)
		return
	}
	h.logger.Infow("person deleted", "person", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	if fe, ok := utilities.AsFieldErrors(err); ok {
		utilities.WriteValidation(w, fe)
		return
	}
	if errors.Is(err, ErrNotFound) {
		utilities.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	h.logger.Errorw(op+" failed", "err", err)
	utilities.WriteError(w, http.StatusInternalServerError, op+" failed")
}
