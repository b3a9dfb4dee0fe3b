package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	domain "github.com/shipperhq/productpage-api/internal/domain"
	"github.com/shipperhq/productpage-api/internal/repositories"
)

// Platform-equivalent messages surfaced when option resolution fails.
const (
	msgChooseOptions = "You need to choose options for your item."
	msgSpecifyQty    = "Please specify the quantity of product(s)."
)

// Catalog is an in-memory product catalog doubling as the product repository,
// customer-group directory and cart-candidate resolver for local runs and
// tests. Composite products reference their children through Product.Associated.
type Catalog struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
	groups   map[int64]string
}

// NewCatalog builds a catalog from the given products and customer groups.
func NewCatalog(products []domain.Product, groups map[int64]string) *Catalog {
	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	if groups == nil {
		groups = map[int64]string{0: "NOT LOGGED IN"}
	}
	return &Catalog{products: byID, groups: groups}
}

// ByID returns the product with the given id. The store id is accepted for
// interface parity; the in-memory catalog holds one price set per product.
func (c *Catalog) ByID(_ context.Context, productID, _ int64) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	product, ok := c.products[productID]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %d", repositories.ErrNoSuchProduct, productID)
	}
	return product, nil
}

// GroupCode resolves a customer group id to its code, defaulting to the
// not-logged-in group for unknown ids.
func (c *Catalog) GroupCode(_ context.Context, groupID int64) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if code, ok := c.groups[groupID]; ok {
		return code, nil
	}
	return c.groups[0], nil
}

// InStockAssociatedProducts returns the in-stock, visible children of a
// grouped product.
func (c *Catalog) InStockAssociatedProducts(_ context.Context, product domain.Product) ([]domain.Product, error) {
	var out []domain.Product
	for _, child := range product.Associated {
		if child.InStock && child.Visible {
			out = append(out, child)
		}
	}
	return out, nil
}

// PrepareForCart resolves a product plus its buy-request selection state into
// cart candidates, mimicking the platform's add-to-cart preparation. A
// *domain.CartResolutionError reports user-facing selection problems.
func (c *Catalog) PrepareForCart(_ context.Context, product domain.Product, buyRequest map[string]any) ([]domain.CartCandidate, error) {
	qty := requestQty(buyRequest)
	if qty <= 0 {
		return nil, &domain.CartResolutionError{Reason: msgSpecifyQty}
	}

	switch product.TypeID {
	case domain.ProductTypeConfigurable:
		selected, ok := buyRequest["super_attribute"]
		if !ok || selected == nil {
			return nil, &domain.CartResolutionError{Reason: msgChooseOptions}
		}
		variant, ok := firstSaleable(product.Associated)
		if !ok {
			return nil, &domain.CartResolutionError{Reason: msgChooseOptions}
		}
		parent := candidateFor(product, qty)
		child := candidateFor(variant, qty)
		child.ParentProductID = product.ID
		return []domain.CartCandidate{parent, child}, nil

	case domain.ProductTypeBundle:
		if _, ok := buyRequest["bundle_option"]; !ok {
			return nil, &domain.CartResolutionError{Reason: msgChooseOptions}
		}
		candidates := []domain.CartCandidate{candidateFor(product, qty)}
		for _, child := range product.Associated {
			if !child.InStock {
				continue
			}
			cc := candidateFor(child, qty)
			cc.ParentProductID = product.ID
			candidates = append(candidates, cc)
		}
		return candidates, nil

	case domain.ProductTypeGrouped:
		selections, _ := buyRequest["super_group"].(map[string]any)
		var candidates []domain.CartCandidate
		for _, child := range product.Associated {
			childQty := groupedQty(selections, child.ID)
			if childQty <= 0 {
				continue
			}
			candidates = append(candidates, candidateFor(child, childQty))
		}
		if len(candidates) == 0 {
			return nil, &domain.CartResolutionError{Reason: msgSpecifyQty}
		}
		return candidates, nil

	default:
		return []domain.CartCandidate{candidateFor(product, qty)}, nil
	}
}

func candidateFor(product domain.Product, qty float64) domain.CartCandidate {
	return domain.CartCandidate{
		Item: domain.LineItem{
			ID:           product.ID,
			SKU:          product.SKU,
			Name:         product.Name,
			ProductType:  product.TypeID,
			Qty:          qty,
			Price:        product.Price,
			BasePrice:    product.Price,
			PriceInclTax: product.Price,
			Weight:       product.Weight,
			Product:      product,
		},
	}
}

func firstSaleable(products []domain.Product) (domain.Product, bool) {
	for _, p := range products {
		if p.InStock {
			return p, true
		}
	}
	return domain.Product{}, false
}

func requestQty(buyRequest map[string]any) float64 {
	raw, ok := buyRequest["qty"]
	if !ok {
		return 1
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func groupedQty(selections map[string]any, productID int64) float64 {
	if selections == nil {
		return 0
	}
	raw, ok := selections[strconv.FormatInt(productID, 10)]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
