// Package handlers exposes the HTTP surface of the product page API.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/shipperhq/productpage-api/internal/platform/httpx"
	"github.com/shipperhq/productpage-api/internal/platform/observability"
	"github.com/shipperhq/productpage-api/internal/services"
)

const defaultTimeout = 60 * time.Second

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Logger   *zap.Logger
	Resolver *services.ScopeResolver
	Options  *services.ProductOptionsService
	Tokens   *services.TokenService
}

// NewRouter constructs the chi router with shared middleware and all routes.
func NewRouter(deps RouterDeps) chi.Router {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(defaultTimeout))
	r.Use(observability.TraceMiddleware(deps.Logger))
	r.Use(observability.RequestLogger())

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", health)

	products := NewProductHandlers(deps.Resolver, deps.Options)
	r.Route("/v1/products/{productID}", func(r chi.Router) {
		r.Post("/options", products.postOptions)
		r.Get("/settings", products.getSettings)
	})

	admin := NewAdminHandlers(deps.Tokens)
	r.Post("/v1/admin/tokens/refresh", admin.postRefreshTokens)

	return r
}
