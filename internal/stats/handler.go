package stats

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Stats handles GET /api/admin/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		h.logger.Errorw("stats snapshot failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, snap)
}

// Dashboard handles GET /api/admin/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.logger.Errorw("dashboard failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "dashboard unavailable")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, d)
}
