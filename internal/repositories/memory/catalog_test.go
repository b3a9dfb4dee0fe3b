package memory

import (
	"context"
	"errors"
	"testing"

	domain "github.com/shipperhq/productpage-api/internal/domain"
	"github.com/shipperhq/productpage-api/internal/repositories"
)

func testProducts() []domain.Product {
	variant := domain.Product{
		ID: 101, SKU: "SHIRT-RED-M", Name: "Shirt Red M", TypeID: domain.ProductTypeSimple,
		Price: 19.99, Weight: 0.3, InStock: true, Visible: false,
	}
	return []domain.Product{
		{
			ID: 1, SKU: "SHIRT", Name: "Shirt", TypeID: domain.ProductTypeConfigurable,
			Price: 19.99, Weight: 0.3, InStock: true, Visible: true,
			Associated: []domain.Product{variant},
		},
		{
			ID: 2, SKU: "MUG", Name: "Mug", TypeID: domain.ProductTypeSimple,
			Price: 7.50, Weight: 0.4, InStock: true, Visible: true,
		},
		{
			ID: 3, SKU: "SET", Name: "Dinner Set", TypeID: domain.ProductTypeGrouped,
			InStock: true, Visible: true,
			Associated: []domain.Product{
				{ID: 31, SKU: "PLATE", Name: "Plate", TypeID: domain.ProductTypeSimple, Price: 4, Weight: 0.7, InStock: true, Visible: true},
				{ID: 32, SKU: "BOWL", Name: "Bowl", TypeID: domain.ProductTypeSimple, Price: 3, Weight: 0.5, InStock: false, Visible: true},
			},
		},
		{
			ID: 4, SKU: "KIT", Name: "Camera Kit", TypeID: domain.ProductTypeBundle,
			Price: 250, Weight: 1.2, InStock: true, Visible: true,
			Associated: []domain.Product{
				{ID: 41, SKU: "BODY", Name: "Body", TypeID: domain.ProductTypeSimple, Price: 200, Weight: 0.9, InStock: true, Visible: true},
				{ID: 42, SKU: "LENS", Name: "Lens", TypeID: domain.ProductTypeSimple, Price: 50, Weight: 0.3, InStock: false, Visible: true},
			},
		},
	}
}

func TestCatalogByID(t *testing.T) {
	catalog := NewCatalog(testProducts(), nil)

	p, err := catalog.ByID(context.Background(), 2, 1)
	if err != nil || p.SKU != "MUG" {
		t.Fatalf("ByID(2) = %q (%v)", p.SKU, err)
	}

	if _, err := catalog.ByID(context.Background(), 99, 1); !errors.Is(err, repositories.ErrNoSuchProduct) {
		t.Fatalf("ByID(99): err = %v, want ErrNoSuchProduct", err)
	}
}

func TestCatalogGroupCode(t *testing.T) {
	catalog := NewCatalog(nil, map[int64]string{0: "NOT LOGGED IN", 2: "Wholesale"})

	code, err := catalog.GroupCode(context.Background(), 2)
	if err != nil || code != "Wholesale" {
		t.Fatalf("GroupCode(2) = %q (%v)", code, err)
	}
	code, err = catalog.GroupCode(context.Background(), 7)
	if err != nil || code != "NOT LOGGED IN" {
		t.Fatalf("GroupCode(7) = %q (%v), want not-logged-in fallback", code, err)
	}
}

func TestCatalogInStockAssociated(t *testing.T) {
	catalog := NewCatalog(testProducts(), nil)
	grouped, _ := catalog.ByID(context.Background(), 3, 1)

	children, err := catalog.InStockAssociatedProducts(context.Background(), grouped)
	if err != nil {
		t.Fatalf("InStockAssociatedProducts returned error: %v", err)
	}
	if len(children) != 1 || children[0].SKU != "PLATE" {
		t.Fatalf("children = %#v, want only the in-stock visible plate", children)
	}
}

func TestPrepareForCartSimple(t *testing.T) {
	catalog := NewCatalog(testProducts(), nil)
	mug, _ := catalog.ByID(context.Background(), 2, 1)

	candidates, err := catalog.PrepareForCart(context.Background(), mug, map[string]any{"qty": 3})
	if err != nil {
		t.Fatalf("PrepareForCart returned error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Item.Qty != 3 || candidates[0].Item.SKU != "MUG" {
		t.Fatalf("candidates = %#v", candidates)
	}
}

func TestPrepareForCartQtyErrors(t *testing.T) {
	catalog := NewCatalog(testProducts(), nil)
	mug, _ := catalog.ByID(context.Background(), 2, 1)

	for _, buyRequest := range []map[string]any{
		{"qty": 0},
		{"qty": "-1"},
		{"qty": "abc"},
	} {
		_, err := catalog.PrepareForCart(context.Background(), mug, buyRequest)
		var resolution *domain.CartResolutionError
		if !errors.As(err, &resolution) {
			t.Fatalf("buyRequest %v: err = %v, want CartResolutionError", buyRequest, err)
		}
		if resolution.Reason != "Please specify the quantity of product(s)." {
			t.Fatalf("reason = %q", resolution.Reason)
		}
	}
}

func TestPrepareForCartConfigurable(t *testing.T) {
	catalog := NewCatalog(testProducts(), nil)
	shirt, _ := catalog.ByID(context.Background(), 1, 1)

	_, err := catalog.PrepareForCart(context.Background(), shirt, map[string]any{"qty": 1})
	var resolution *domain.CartResolutionError
	if !errors.As(err, &resolution) || resolution.Reason != "You need to choose options for your item." {
		t.Fatalf("missing super_attribute: err = %v", err)
	}

	candidates, err := catalog.PrepareForCart(context.Background(), shirt, map[string]any{
		"qty":             2,
		"super_attribute": map[string]any{"93": "52"},
	})
	if err != nil {
		t.Fatalf("PrepareForCart returned error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want parent plus variant", len(candidates))
	}
	if candidates[0].ParentProductID != 0 || candidates[1].ParentProductID != shirt.ID {
		t.Fatalf("parent linkage wrong: %#v", candidates)
	}
	if candidates[1].Item.SKU != "SHIRT-RED-M" {
		t.Fatalf("variant = %q", candidates[1].Item.SKU)
	}
}

func TestPrepareForCartGrouped(t *testing.T) {
	catalog := NewCatalog(testProducts(), nil)
	set, _ := catalog.ByID(context.Background(), 3, 1)

	candidates, err := catalog.PrepareForCart(context.Background(), set, map[string]any{
		"qty":         1,
		"super_group": map[string]any{"31": "4", "32": 0},
	})
	if err != nil {
		t.Fatalf("PrepareForCart returned error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Item.SKU != "PLATE" || candidates[0].Item.Qty != 4 {
		t.Fatalf("candidates = %#v", candidates)
	}

	_, err = catalog.PrepareForCart(context.Background(), set, map[string]any{"qty": 1})
	var resolution *domain.CartResolutionError
	if !errors.As(err, &resolution) || resolution.Reason != "Please specify the quantity of product(s)." {
		t.Fatalf("no selections: err = %v", err)
	}
}

func TestPrepareForCartBundle(t *testing.T) {
	catalog := NewCatalog(testProducts(), nil)
	kit, _ := catalog.ByID(context.Background(), 4, 1)

	_, err := catalog.PrepareForCart(context.Background(), kit, map[string]any{"qty": 1})
	var resolution *domain.CartResolutionError
	if !errors.As(err, &resolution) || resolution.Reason != "You need to choose options for your item." {
		t.Fatalf("missing bundle_option: err = %v", err)
	}

	candidates, err := catalog.PrepareForCart(context.Background(), kit, map[string]any{
		"qty":           1,
		"bundle_option": map[string]any{"1": "4"},
	})
	if err != nil {
		t.Fatalf("PrepareForCart returned error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want bundle parent plus in-stock body", len(candidates))
	}
	if candidates[1].Item.SKU != "BODY" || candidates[1].ParentProductID != kit.ID {
		t.Fatalf("child = %#v", candidates[1])
	}
}
