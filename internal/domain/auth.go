package domain

// TokenEnvelope is the result of a createSecretToken call against the remote
// auth endpoint: the signed secret token plus the raw request/response pair
// kept for (sanitised) logging.
type TokenEnvelope struct {
	Token string
	Debug AuthDebug
}

// AuthDebug holds the raw JSON request and response bodies of an auth call.
// Both contain credentials and must be sanitised before logging.
type AuthDebug struct {
	Request  string
	Response string
}

// ProductOptions is the payload assembled for the product-page script.
// Cart and CartError are mutually exclusive: a populated CartError signals a
// soft cart-resolution failure.
type ProductOptions struct {
	SessionID         string   `json:"sessionId"`
	PublicToken       string   `json:"publicToken"`
	Cart              *RMSCart `json:"cart,omitempty"`
	CartError         string   `json:"cartError,omitempty"`
	QuoteCurrencyCode string   `json:"quoteCurrencyCode"`
	Countries         string   `json:"countries,omitempty"`
	PostCodes         string   `json:"postCodes,omitempty"`
}
