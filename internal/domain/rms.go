package domain

// The RMS type family mirrors the request schema of the remote rating service.
// Destination fields are always serialised, even when empty: the remote schema
// requires present-but-empty strings rather than absent fields.

// RatingInfo is the top-level rate request sent to the rating service.
type RatingInfo struct {
	Cart        RMSCart        `json:"cart"`
	Destination RMSDestination `json:"destination"`
	Customer    RMSCustomer    `json:"customer"`
	Type        string         `json:"type"`
	SiteDetails RMSSiteDetails `json:"siteDetails"`
}

// RMSCart carries the normalised line items of a cart.
type RMSCart struct {
	Items        []RMSItem `json:"items"`
	PackageValue float64   `json:"packageValue"`
	FreeShipping bool      `json:"freeShipping"`
}

// RMSItem is one normalised cart line. Base-currency and discount fields are
// emitted only when applicable; child items of composite products nest under
// their parent's Items and never appear at the top level.
type RMSItem struct {
	ItemID       int64   `json:"itemId"`
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	StorePrice   float64 `json:"storePrice"`
	Weight       float64 `json:"weight"`
	Qty          float64 `json:"qty"`
	Type         string  `json:"type"`
	TaxInclPrice float64 `json:"taxInclStorePrice"`
	FreeShipping bool    `json:"freeShipping"`
	FixedPrice   bool    `json:"fixedPrice"`
	FixedWeight  bool    `json:"fixedWeight"`

	BasePrice        *float64 `json:"basePrice,omitempty"`
	TaxInclBasePrice *float64 `json:"taxInclBasePrice,omitempty"`

	DiscountPercent             *float64 `json:"discountPercent,omitempty"`
	DiscountedStorePrice        *float64 `json:"discountedStorePrice,omitempty"`
	DiscountedTaxInclStorePrice *float64 `json:"discountedTaxInclStorePrice,omitempty"`
	DiscountedBasePrice         *float64 `json:"discountedBasePrice,omitempty"`
	DiscountedTaxInclBasePrice  *float64 `json:"discountedTaxInclBasePrice,omitempty"`

	Items      []RMSItem      `json:"items,omitempty"`
	Attributes []RMSAttribute `json:"attributes,omitempty"`
}

// RMSAttribute is a named shipping attribute attached to an item.
type RMSAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RMSDestination is the normalised shipping destination.
type RMSDestination struct {
	Country  string `json:"country"`
	Region   string `json:"region"`
	City     string `json:"city"`
	Street   string `json:"street"`
	Street2  string `json:"street2"`
	Postcode string `json:"zipcode"`
}

// RMSCustomer identifies the buyer by customer group code only.
type RMSCustomer struct {
	CustomerGroup string `json:"customerGroup"`
}

// RMSSiteDetails describes the storefront placing the request.
type RMSSiteDetails struct {
	AppVersion       string `json:"appVersion"`
	EcommerceCart    string `json:"ecommerceCart"`
	EcommerceVersion string `json:"ecommerceVersion"`
	WebsiteURL       string `json:"websiteUrl"`
	IPAddress        string `json:"ipAddress"`
}
