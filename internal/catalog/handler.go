// internal/catalog/handler.go
package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"libracirc/internal/httpx"
	"libracirc/internal/identity"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleAddBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Author      string `json:"author"`
		Category    string `json:"category"`
		TotalCopies int    `json:"total_copies"`
	}

	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	book, err := h.service.AddBook(r.Context(), req.Title, req.Author, req.Category, req.TotalCopies)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, book)
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id := identity.Parse(chi.URLParam(r, "id"))
	if id.IsZero() {
		httpx.Error(w, http.StatusBadRequest, "validation_error", "invalid book ID")
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrBookNotFound) {
			httpx.Error(w, http.StatusNotFound, "not_found", "book not found")
			return
		}
		httpx.Error(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	httpx.RespondJSON(w, http.StatusOK, book)
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	books, err := h.service.Search(r.Context(), query)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if books == nil {
		books = []*Book{}
	}

	httpx.RespondJSON(w, http.StatusOK, books)
}
