// internal/membership/handler.go
package membership

import (
	"errors"
	"net/http"

	"libracirc/internal/httpx"
)

type Handler struct {
	service   Service
	jwtSecret string
}

func NewHandler(service Service, jwtSecret string) *Handler {
	return &Handler{service: service, jwtSecret: jwtSecret}
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}

	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	member, err := h.service.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			httpx.Error(w, http.StatusConflict, "email_taken", err.Error())
		case errors.Is(err, ErrRateLimited):
			httpx.Error(w, http.StatusTooManyRequests, "rate_limited", err.Error())
		default:
			httpx.Error(w, http.StatusBadRequest, "validation_error", err.Error())
		}
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, member)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	member, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrRateLimited):
			httpx.Error(w, http.StatusTooManyRequests, "rate_limited", err.Error())
		default:
			httpx.Error(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		}
		return
	}

	token, err := GenerateToken(h.jwtSecret, member)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]any{
		"token":  token,
		"member": member,
	})
}
