// internal/history/handler.go
package history

import (
	"net/http"

	"libracirc/internal/httpx"
	"libracirc/internal/identity"
	"libracirc/internal/membership"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// HandleListMine returns the authenticated reader's audit trail, optionally
// narrowed to one book via ?book_id=.
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	claims := membership.ClaimsFrom(r.Context())
	if claims == nil {
		httpx.Error(w, http.StatusUnauthorized, "unauthenticated", "not authenticated")
		return
	}

	userID := identity.Parse(claims.MemberID)

	var (
		entries []*Entry
		err     error
	)
	if bookParam := r.URL.Query().Get("book_id"); bookParam != "" {
		entries, err = h.service.ListByUserAndBook(r.Context(), userID, identity.Parse(bookParam))
	} else {
		entries, err = h.service.ListByUser(r.Context(), userID)
	}
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}

	httpx.RespondJSON(w, http.StatusOK, entries)
}
