package handler

import (
	"net/http"

	"github.com/lungbuddy/lungbuddy/internal/api/response"
	"github.com/lungbuddy/lungbuddy/internal/auth"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *auth.Service
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// CreateGuest handles POST /v1/auth/guest - issue a guest access token.
// An empty body is accepted and yields the default display name.
func (h *AuthHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req auth.GuestRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	tokenResp, err := h.authService.CreateGuest(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, tokenResp)
}

// Me handles GET /v1/auth/me - return the authenticated principal.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, p)
}
