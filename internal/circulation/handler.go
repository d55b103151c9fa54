// internal/circulation/handler.go
package circulation

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"libracirc/internal/catalog"
	"libracirc/internal/httpx"
	"libracirc/internal/identity"
	"libracirc/internal/membership"
	"libracirc/internal/requests"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	claims := membership.ClaimsFrom(r.Context())
	if claims == nil {
		httpx.Error(w, http.StatusUnauthorized, "unauthenticated", "not authenticated")
		return
	}

	var req struct {
		BookID string `json:"book_id"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	bookID := identity.Parse(req.BookID)
	if bookID.IsZero() {
		httpx.Error(w, http.StatusBadRequest, "validation_error", "book_id is required")
		return
	}

	record, err := h.service.Borrow(r.Context(), identity.Parse(claims.MemberID), claims.Name, bookID)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrBookNotFound):
			httpx.Error(w, http.StatusNotFound, "not_found", "book not found")
		case errors.Is(err, catalog.ErrOutOfStock):
			httpx.Error(w, http.StatusConflict, "out_of_stock", err.Error())
		case errors.Is(err, ErrQuotaExceeded):
			httpx.Error(w, http.StatusConflict, "quota_exceeded", err.Error())
		case errors.Is(err, ErrLoanExists):
			httpx.Error(w, http.StatusConflict, "loan_exists", err.Error())
		default:
			httpx.Error(w, http.StatusInternalServerError, "internal", err.Error())
		}
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, record)
}

func (h *Handler) HandleListLoans(w http.ResponseWriter, r *http.Request) {
	claims := membership.ClaimsFrom(r.Context())
	if claims == nil {
		httpx.Error(w, http.StatusUnauthorized, "unauthenticated", "not authenticated")
		return
	}

	records, err := h.service.ListActiveLoans(r.Context(), identity.Parse(claims.MemberID))
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if records == nil {
		records = []*BorrowRecord{}
	}

	httpx.RespondJSON(w, http.StatusOK, records)
}

func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	var req struct {
		Outcome string `json:"outcome"`
		Reason  string `json:"reason"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	var (
		decided *requests.BorrowRequest
		err     error
	)
	switch req.Outcome {
	case "approve":
		decided, err = h.service.Approve(r.Context(), requestID)
	case "reject":
		decided, err = h.service.Reject(r.Context(), requestID, req.Reason)
	default:
		httpx.Error(w, http.StatusBadRequest, "validation_error", ErrInvalidOutcome.Error())
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, requests.ErrRequestNotFound):
			httpx.Error(w, http.StatusNotFound, "not_found", "request not found")
		case errors.Is(err, requests.ErrAlreadyHandled):
			httpx.Error(w, http.StatusConflict, "already_handled", err.Error())
		case errors.Is(err, ErrReasonRequired):
			httpx.Error(w, http.StatusBadRequest, "validation_error", err.Error())
		default:
			httpx.Error(w, http.StatusInternalServerError, "internal", err.Error())
		}
		return
	}

	httpx.RespondJSON(w, http.StatusOK, decided)
}
