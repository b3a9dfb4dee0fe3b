package domain

// ScopeType names a configuration inheritance level. Store scope inherits from
// its parent website, which inherits from the default scope.
type ScopeType string

const (
	ScopeDefault ScopeType = "default"
	ScopeWebsite ScopeType = "websites"
	ScopeStore   ScopeType = "stores"
)

// Website is one website entry from the store directory.
type Website struct {
	ID   int64
	Code string
	Name string
}

// Store is one store (storefront) entry from the store directory. Stores are
// children of websites and carry the storefront base URL and display currency.
type Store struct {
	ID           int64
	WebsiteID    int64
	Code         string
	BaseURL      string
	CurrencyCode string
}
