package translate

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

// Handler is the browser-facing translation proxy. It keeps the DeepL key on
// the server and answers CORS preflights.
type Handler struct {
	tr          Translator
	logger      *zap.SugaredLogger
	allowOrigin string
}

func NewHandler(tr Translator, logger *zap.SugaredLogger, allowOrigin string) *Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return &Handler{tr: tr, logger: logger, allowOrigin: allowOrigin}
}

type request struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

// ServeHTTP handles POST and OPTIONS /functions/v1/translate
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", h.allowOrigin)
	w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	case http.MethodPost:
	default:
		utilities.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req request
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		utilities.WriteError(w, http.StatusBadRequest, "Text parameter is required")
		return
	}
	if req.TargetLang == "" {
		req.TargetLang = DefaultTarget
	}

	res, err := h.tr.Translate(r.Context(), req.Text, req.TargetLang)
	if err != nil {
		var up *UpstreamError
		switch {
		case errors.Is(err, ErrNoCredential):
			utilities.WriteError(w, http.StatusInternalServerError, err.Error())
		case errors.As(err, &up):
			h.logger.Warnw("translation upstream error", "status", up.Status, "body", up.Body)
			utilities.WriteError(w, up.Status, up.Error())
		default:
			h.logger.Errorw("translation failed", "err", err)
			utilities.WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	utilities.WriteJSON(w, http.StatusOK, res)
}
