package graphql

import (
	"encoding/json"

	domain "github.com/shipperhq/productpage-api/internal/domain"
)

const redacted = "SANITIZED"

// SanitizeDebug redacts the credential and token fields from a captured
// auth exchange so it can be logged. Bodies that fail to parse are passed
// through as raw strings.
func SanitizeDebug(d domain.AuthDebug) map[string]any {
	out := make(map[string]any, 2)
	out["request"] = sanitizeRequest(d.Request)
	out["response"] = sanitizeResponse(d.Response)
	return out
}

func sanitizeRequest(raw string) any {
	var body map[string]any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return raw
	}
	if vars, ok := body["variables"].(map[string]any); ok {
		if _, ok := vars["auth_code"]; ok {
			vars["auth_code"] = redacted
		}
	}
	return body
}

func sanitizeResponse(raw string) any {
	var body map[string]any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return raw
	}
	if data, ok := body["data"].(map[string]any); ok {
		if cst, ok := data["createSecretToken"].(map[string]any); ok {
			if _, ok := cst["token"]; ok {
				cst["token"] = redacted
			}
		}
	}
	return body
}
