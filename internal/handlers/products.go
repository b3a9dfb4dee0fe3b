package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shipperhq/productpage-api/internal/platform/httpx"
	"github.com/shipperhq/productpage-api/internal/services"
)

const maxOptionsBodySize = 64 * 1024

// ProductHandlers serves the product page payloads: the options preview cart
// and the bootstrap settings blob.
type ProductHandlers struct {
	resolver *services.ScopeResolver
	options  *services.ProductOptionsService
}

// NewProductHandlers constructs the product route handlers.
func NewProductHandlers(resolver *services.ScopeResolver, options *services.ProductOptionsService) *ProductHandlers {
	return &ProductHandlers{resolver: resolver, options: options}
}

type optionsRequestBody struct {
	StoreID    int64          `json:"storeId"`
	Variant    string         `json:"variant"`
	BuyRequest map[string]any `json:"buyRequest"`
}

func (h *ProductHandlers) postOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.options == nil || h.resolver == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "product options service is unavailable", http.StatusServiceUnavailable))
		return
	}

	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}

	var body optionsRequestBody
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxOptionsBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
		return
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
			return
		}
	}

	scope, ok := h.resolveScope(w, r, body.StoreID)
	if !ok {
		return
	}

	out, err := h.options.Options(ctx, scope, services.OptionsRequest{
		ProductID:  productID,
		StoreID:    body.StoreID,
		Variant:    services.OptionsVariant(body.Variant),
		BuyRequest: body.BuyRequest,
	})
	if err != nil {
		if errors.Is(err, services.ErrOptionsInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to build product options", http.StatusInternalServerError))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *ProductHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.options == nil || h.resolver == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "product options service is unavailable", http.StatusServiceUnavailable))
		return
	}

	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}
	scope, ok := h.resolveScope(w, r, 0)
	if !ok {
		return
	}

	settings, err := h.options.Settings(ctx, scope, productID)
	if err != nil {
		if errors.Is(err, services.ErrOptionsInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to build page settings", http.StatusInternalServerError))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, settings)
}

// resolveScope resolves the evaluation scope from the website/store query
// parameters. A store id in the request body doubles as the scope store when
// no explicit parameter names one.
func (h *ProductHandlers) resolveScope(w http.ResponseWriter, r *http.Request, bodyStoreID int64) (services.Scope, bool) {
	ctx := r.Context()

	websiteID, ok := parseScopeParam(w, r, "website")
	if !ok {
		return services.Scope{}, false
	}
	storeID, ok := parseScopeParam(w, r, "store")
	if !ok {
		return services.Scope{}, false
	}
	if storeID == 0 {
		storeID = bodyStoreID
	}

	scope, err := h.resolver.Resolve(ctx, websiteID, storeID)
	if err != nil {
		if errors.Is(err, services.ErrScopeInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_scope", err.Error(), http.StatusBadRequest))
			return services.Scope{}, false
		}
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to resolve scope", http.StatusInternalServerError))
		return services.Scope{}, false
	}
	return scope, true
}

func parseProductID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "productID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "product id must be a positive integer", http.StatusBadRequest))
		return 0, false
	}
	return id, true
}

func parseScopeParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_scope", name+" must be a non-negative integer", http.StatusBadRequest))
		return 0, false
	}
	return id, true
}
