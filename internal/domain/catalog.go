package domain

import "fmt"

// Product type tags as reported by the platform catalog.
const (
	ProductTypeSimple       = "simple"
	ProductTypeConfigurable = "configurable"
	ProductTypeBundle       = "bundle"
	ProductTypeGrouped      = "grouped"
)

// ProductAttribute is one catalog attribute as loaded from the platform.
// For select/multiselect attributes RawValue holds the comma-joined option ids
// and OptionLabels maps option id to its admin-scope label.
type ProductAttribute struct {
	Code          string
	FrontendInput string
	RawValue      string
	OptionLabels  map[string]string
}

// Product is the platform-side product representation the mapper consumes.
type Product struct {
	ID             int64
	SKU            string
	Name           string
	TypeID         string
	StoreID        int64
	Price          float64
	Weight         float64
	PriceTypeFixed bool
	WeightIsFixed  bool
	InStock        bool
	Visible        bool
	Attributes     []ProductAttribute

	// Associated carries the in-stock associated products pre-populated for
	// grouped products before cart-candidate resolution.
	Associated []Product
}

// Attribute returns the attribute with the given code, if present.
func (p Product) Attribute(code string) (ProductAttribute, bool) {
	for _, a := range p.Attributes {
		if a.Code == code {
			return a, true
		}
	}
	return ProductAttribute{}, false
}

// LineItem is one cart/quote line as supplied by the platform, prior to
// normalisation into the RMS schema. A zero ParentID marks a top-level line.
type LineItem struct {
	ID               int64
	ParentID         int64
	SKU              string
	Name             string
	ProductType      string
	Qty              float64
	Price            float64
	BasePrice        float64
	PriceInclTax     float64
	BasePriceInclTax float64
	Weight           float64
	FreeShipping     bool

	DiscountAmount     float64
	BaseDiscountAmount float64
	DiscountPercent    float64
	TaxAmount          float64
	BaseTaxAmount      float64
	TaxPercent         float64

	// CustomerGroupID is the group of the quote owning this line.
	CustomerGroupID int64

	Product Product
}

// CartCandidate is one intermediate line produced by resolving a product's
// selected options, before normalisation. ParentProductID links children of
// composite products to the candidate that produced them.
type CartCandidate struct {
	Item            LineItem
	ParentProductID int64
}

// RateQuery is the platform-side rate request the full mapping consumes.
type RateQuery struct {
	Items                    []LineItem
	PackageValue             float64
	PackageValueWithDiscount float64
	FreeShipping             bool
	StoreID                  int64

	DestCountry  string
	DestRegion   string
	DestCity     string
	DestStreet   string
	DestPostcode string
}

// CartResolutionError carries the user-facing reason the platform refused to
// resolve a product's selected options into cart candidates. It replaces the
// original loose convention of substituting an error phrase for the cart
// payload, so callers cannot mistake the reason for serialised cart data.
type CartResolutionError struct {
	Reason string
}

func (e *CartResolutionError) Error() string {
	return fmt.Sprintf("cart resolution: %s", e.Reason)
}

// Country is one entry of the country/region reference list serialised into
// the full product options payload.
type Country struct {
	Code    string
	Name    string
	Regions []Region
}

// Region is one subdivision of a country.
type Region struct {
	Code string
	Name string
}
