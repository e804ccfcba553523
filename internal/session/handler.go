package session

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/account"
	"github.com/ovaphlow/pitchfork/service-library/internal/person"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

// Handler exposes HTTP endpoints for sign-in and the current session.
type Handler struct {
	gate   *Gate
	logger *zap.SugaredLogger
}

func NewHandler(gate *Gate, logger *zap.SugaredLogger) *Handler {
	return &Handler{gate: gate, logger: logger}
}

// Register handles POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	res, err := h.gate.Register(r.Context(), req)
	if err != nil {
		h.writeErr(w, "register", err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, res)
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	res, err := h.gate.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeErr(w, "login", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, res)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /api/auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := utilities.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		utilities.WriteError(w, http.StatusBadRequest, "refresh_token required")
		return
	}
	res, err := h.gate.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeErr(w, "refresh", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, res)
}

// Logout handles POST /api/auth/logout behind RequireSession.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := utilities.DecodeJSON(r, &req); err != nil {
			utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
			return
		}
	}
	s, err := h.gate.SignOut(r.Context(), FromContext(r.Context()), req.RefreshToken)
	if err != nil {
		h.writeErr(w, "logout", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"session": s, "landing": Landing(s.State)})
}

// SSOStart handles GET /api/auth/sso/start
func (h *Handler) SSOStart(w http.ResponseWriter, r *http.Request) {
	url, err := h.gate.SSOStart()
	if err != nil {
		h.writeErr(w, "sso start", err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// SSOCallback handles GET /api/auth/sso/callback?code=&state=
func (h *Handler) SSOCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.logger.Infow("sso denied by provider", "error", e)
		utilities.WriteError(w, http.StatusUnauthorized, "sign in cancelled")
		return
	}
	res, err := h.gate.SSOCallback(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		h.writeErr(w, "sso callback", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, res)
}

// Current handles GET /api/session behind RequireSession.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	s := FromContext(r.Context())
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"session": s, "landing": Landing(s.State)})
}

// CompleteProfile handles PUT /api/profile behind RequireSession.
func (h *Handler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	var prof person.Profile
	if err := utilities.DecodeJSON(r, &prof); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	s, err := h.gate.CompleteProfile(r.Context(), FromContext(r.Context()), prof)
	if err != nil {
		h.writeErr(w, "complete profile", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"session": s, "landing": Landing(s.State)})
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	if fe, ok := utilities.AsFieldErrors(err); ok {
		utilities.WriteValidation(w, fe)
		return
	}
	switch {
	case errors.Is(err, account.ErrBadCredentials), errors.Is(err, ErrUnauthenticated):
		utilities.WriteError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, account.ErrLocked):
		utilities.WriteError(w, http.StatusForbidden, "account locked")
	case errors.Is(err, account.ErrDisabled):
		utilities.WriteError(w, http.StatusForbidden, "account disabled")
	case errors.Is(err, account.ErrEmailTaken):
		utilities.WriteError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, person.ErrNotFound):
		utilities.WriteError(w, http.StatusNotFound, "profile not found")
	case errors.Is(err, ErrSSODisabled):
		utilities.WriteError(w, http.StatusNotFound, "single sign-on not configured")
	case errors.Is(err, ErrBadState):
		utilities.WriteError(w, http.StatusBadRequest, "invalid sign-in state")
	case errors.Is(err, ErrProvisionFailed):
		utilities.WriteError(w, http.StatusServiceUnavailable, "profile provisioning failed")
	default:
		h.logger.Errorw(op+" failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, op+" failed")
	}
}
