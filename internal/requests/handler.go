// internal/requests/handler.go
package requests

import (
	"errors"
	"net/http"

	"libracirc/internal/httpx"
	"libracirc/internal/identity"
	"libracirc/internal/membership"
)

// myRequestsLimit caps how many of the reader's own requests are listed.
const myRequestsLimit = 5

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	claims := membership.ClaimsFrom(r.Context())
	if claims == nil {
		httpx.Error(w, http.StatusUnauthorized, "unauthenticated", "not authenticated")
		return
	}

	var req struct {
		Type       string `json:"type"`
		BookID     string `json:"book_id"`
		BookTitle  string `json:"book_title"`
		BookAuthor string `json:"book_author"`
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

	request, err := h.service.Submit(r.Context(), SubmitParams{
		UserID:     identity.Parse(claims.MemberID),
		UserName:   claims.Name,
		BookID:     bookID,
		BookTitle:  req.BookTitle,
		BookAuthor: req.BookAuthor,
		Type:       Type(req.Type),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidType):
			httpx.Error(w, http.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, ErrDuplicatePending):
			httpx.Error(w, http.StatusConflict, "duplicate_pending", err.Error())
		default:
			httpx.Error(w, http.StatusInternalServerError, "internal", err.Error())
		}
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, request)
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	claims := membership.ClaimsFrom(r.Context())
	if claims == nil {
		httpx.Error(w, http.StatusUnauthorized, "unauthenticated", "not authenticated")
		return
	}

	list, err := h.service.ListByUser(r.Context(), identity.Parse(claims.MemberID), myRequestsLimit)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if list == nil {
		list = []*BorrowRequest{}
	}

	httpx.RespondJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListAll(r.Context())
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if list == nil {
		list = []*BorrowRequest{}
	}

	httpx.RespondJSON(w, http.StatusOK, list)
}
