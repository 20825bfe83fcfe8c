package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"finai.app/internal/auth"
	"finai.app/internal/ledger"
	"finai.app/internal/stream"
)

func newSecuredAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("FINAI_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	api := New(ReadyProbe{}, Options{
		Ledger:     ledger.NewInMemory(),
		Stream:     stream.New(),
		Version:    "test",
		RateBurst:  1000,
		RatePerSec: 1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{baseURL: srv.URL, client: srv.Client(), t: t}
}

func TestAuthGateRejectsMissingToken(t *testing.T) {
	api := newSecuredAPI(t)

	resp := api.get("/v1/transactions")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAuthGateAcceptsIssuedToken(t *testing.T) {
	api := newSecuredAPI(t)

	resp := api.post("/v1/auth/token", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token: status %d", resp.StatusCode)
	}
	payload := decode[tokenResponse](t, resp)
	if payload.Token == "" {
		t.Fatal("empty token issued")
	}

	resp = api.do(http.MethodGet, "/v1/transactions", nil, map[string]string{
		"Authorization": "Bearer " + payload.Token,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
}

func TestAuthGateLeavesHealthPublic(t *testing.T) {
	api := newSecuredAPI(t)

	resp := api.get("/healthz")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestExtractBearerToken(t *testing.T) {
	if _, err := extractBearerToken(""); err == nil {
		t.Fatal("expected error for empty header")
	}
	if _, err := extractBearerToken("Basic abc"); err == nil {
		t.Fatal("expected error for wrong scheme")
	}
	token, err := extractBearerToken("Bearer abc.def.ghi")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if token != "abc.def.ghi" {
		t.Fatalf("token = %q", token)
	}
}
