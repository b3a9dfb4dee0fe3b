package handlers

import (
	"net/http"

	"github.com/shipperhq/productpage-api/internal/platform/httpx"
	"github.com/shipperhq/productpage-api/internal/services"
)

// AdminHandlers serves the operational endpoints.
type AdminHandlers struct {
	tokens *services.TokenService
}

// NewAdminHandlers constructs the admin route handlers.
func NewAdminHandlers(tokens *services.TokenService) *AdminHandlers {
	return &AdminHandlers{tokens: tokens}
}

// postRefreshTokens re-fetches secret tokens for every scope with credentials
// and reports the accounting.
func (h *AdminHandlers) postRefreshTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tokens == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "token service is unavailable", http.StatusServiceUnavailable))
		return
	}

	summary, err := h.tokens.RefreshAllTokens(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "token refresh failed", http.StatusInternalServerError))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, summary)
}
