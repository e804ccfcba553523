package loan

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/catalog"
	"github.com/ovaphlow/pitchfork/service-library/internal/session"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

// Handler exposes patron and administrator loan endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Request handles POST /api/books/{id}/loans for the signed-in patron.
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	itemID, ok := catalog.ParseID(r)
	if !ok {
		utilities.WriteError(w, http.StatusBadRequest, "invalid id")
		return
	}
	s := session.FromContext(r.Context())
	l, err := h.svc.Request(r.Context(), s.AccountID, itemID)
	if err != nil {
		h.writeErr(w, "request loan", err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, l)
}

// Mine handles GET /api/loans/mine
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.ListMine(r.Context(), session.FromContext(r.Context()).AccountID)
	if err != nil {
		h.writeErr(w, "list loans", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, m)
}

// ReturnMine handles POST /api/loans/{id}/return
func (h *Handler) ReturnMine(w http.ResponseWriter, r *http.Request) {
	id, ok := catalog.ParseID(r)
	if !ok {
		utilities.WriteError(w, http.StatusBadRequest, "invalid id")
		return
	}
	l, err := h.svc.ReturnOwn(r.Context(), session.FromContext(r.Context()).AccountID, id)
	if err != nil {
		h.writeErr(w, "return loan", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, l)
}

// List handles GET /api/admin/loans?q=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListAll(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeErr(w, "list loans", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, views)
}

// Create handles POST /api/admin/loans
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in NewLoan
	if err := utilities.DecodeJSON(r, &in); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	l, err := h.svc.AdminCreate(r.Context(), in)
	if err != nil {
		h.writeErr(w, "create loan", err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, l)
}

// AvailableItems handles GET /api/admin/loans/available-books
func (h *Handler) AvailableItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.AvailableItems(r.Context())
	if err != nil {
		h.writeErr(w, "list available books", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, items)
}

// Return handles POST /api/admin/loans/{id}/return
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := catalog.ParseID(r)
	if !ok {
		utilities.WriteError(w, http.StatusBadRequest, "invalid id")
		return
	}
	l, err := h.svc.Return(r.Context(), id)
	if err != nil {
		h.writeErr(w, "return loan", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	if fe, ok := utilities.AsFieldErrors(err); ok {
		utilities.WriteValidation(w, fe)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		utilities.WriteError(w, http.StatusNotFound, "loan not found")
	case errors.Is(err, catalog.ErrNotFound):
		utilities.WriteError(w, http.StatusNotFound, "book not found")
	case errors.Is(err, ErrUnknownPerson):
		utilities.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrAlreadyReturned), errors.Is(err, ErrBeforeStart):
		utilities.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Errorw(op+" failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, op+" failed")
	}
}
