package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/shipperhq/productpage-api/internal/domain"
)

func TestCreateSecretTokenSuccess(t *testing.T) {
	var captured gqlRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"createSecretToken":{"token":"tok-123"}}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client())
	env, err := client.CreateSecretToken(context.Background(), "key-1", "code-1", srv.URL, time.Second)
	if err != nil {
		t.Fatalf("CreateSecretToken returned error: %v", err)
	}
	if env.Token != "tok-123" {
		t.Fatalf("token = %q, want tok-123", env.Token)
	}
	if captured.Variables["api_key"] != "key-1" || captured.Variables["auth_code"] != "code-1" {
		t.Fatalf("unexpected variables: %#v", captured.Variables)
	}
	if !strings.Contains(env.Debug.Request, "auth_code") {
		t.Fatalf("debug request missing body: %q", env.Debug.Request)
	}
	if !strings.Contains(env.Debug.Response, "tok-123") {
		t.Fatalf("debug response missing body: %q", env.Debug.Response)
	}
}

func TestCreateSecretTokenGraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"invalid credentials"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client())
	_, err := client.CreateSecretToken(context.Background(), "key", "code", srv.URL, time.Second)
	if err == nil {
		t.Fatal("expected error for graphql errors payload")
	}
	if !strings.Contains(err.Error(), "invalid credentials") {
		t.Fatalf("error = %v, want message surfaced", err)
	}
}

func TestCreateSecretTokenHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.Client())
	_, err := client.CreateSecretToken(context.Background(), "key", "code", srv.URL, time.Second)
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestCreateSecretTokenMissingEndpoint(t *testing.T) {
	client := NewClient(nil)
	_, err := client.CreateSecretToken(context.Background(), "key", "code", "  ", time.Second)
	if err == nil {
		t.Fatal("expected error for blank endpoint")
	}
}

func TestSanitizeDebug(t *testing.T) {
	d := domain.AuthDebug{
		Request:  `{"query":"mutation","variables":{"api_key":"k","auth_code":"topsecret"}}`,
		Response: `{"data":{"createSecretToken":{"token":"tok-abc"}}}`,
	}
	out := SanitizeDebug(d)

	req, ok := out["request"].(map[string]any)
	if !ok {
		t.Fatalf("request not parsed: %#v", out["request"])
	}
	vars := req["variables"].(map[string]any)
	if vars["auth_code"] != redacted {
		t.Fatalf("auth_code = %v, want redacted", vars["auth_code"])
	}
	if vars["api_key"] != "k" {
		t.Fatalf("api_key should be preserved, got %v", vars["api_key"])
	}

	resp, ok := out["response"].(map[string]any)
	if !ok {
		t.Fatalf("response not parsed: %#v", out["response"])
	}
	token := resp["data"].(map[string]any)["createSecretToken"].(map[string]any)["token"]
	if token != redacted {
		t.Fatalf("token = %v, want redacted", token)
	}
}

func TestSanitizeDebugPassthroughOnInvalidJSON(t *testing.T) {
	out := SanitizeDebug(domain.AuthDebug{Request: "not-json", Response: "<html>"})
	if out["request"] != "not-json" || out["response"] != "<html>" {
		t.Fatalf("invalid bodies should pass through raw: %#v", out)
	}
}
