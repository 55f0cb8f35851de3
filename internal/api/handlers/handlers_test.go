package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/finexbank/ledger/internal/api/handlers"
	"github.com/finexbank/ledger/internal/categorizer"
	"github.com/finexbank/ledger/internal/kvstore"
	"github.com/finexbank/ledger/internal/ledger"
	"github.com/finexbank/ledger/internal/ledger/inmemory"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine := ledger.NewEngine(inmemory.NewStore(), categorizer.NewDefault(), zerolog.Nop())
	mux := http.NewServeMux()
	handlers.NewLedgerHandler(engine, kvstore.NewMemory(), zerolog.Nop()).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, userID int64, body string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set("X-User-ID", fmt.Sprint(userID))
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var fields map[string]json.RawMessage
	dec := json.NewDecoder(resp.Body)
	// List endpoints return arrays; callers of those ignore fields.
	_ = dec.Decode(&fields)
	return resp, fields
}

// createUser enrolls a user through the API and returns the new id.
func createUser(t *testing.T, srv *httptest.Server, name, email string) int64 {
	t.Helper()
	resp, fields := doJSON(t, srv, http.MethodPost, "/api/users", 0,
		fmt.Sprintf(`{"name":%q,"email":%q}`, name, email))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user status = %d", resp.StatusCode)
	}
	var user struct {
		ID int64 `json:"ID"`
	}
	if err := json.Unmarshal(fields["user"], &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("user id missing from response")
	}
	return user.ID
}

func TestCreateUserEndpointSeedsAccount(t *testing.T) {
	srv := newTestServer(t)

	resp, fields := doJSON(t, srv, http.MethodPost, "/api/users", 0,
		`{"name":"Alice","email":"alice@example.com"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if _, ok := fields["account"]; !ok {
		t.Fatal("response has no seeded account")
	}
	if !strings.Contains(string(fields["account"]), "Finex Bank") {
		t.Errorf("seeded account = %s", fields["account"])
	}
}

func TestCreateUserEndpointRejectsMissingFields(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodPost, "/api/users", 0, `{"name":"Alice"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTransferEndpoint(t *testing.T) {
	srv := newTestServer(t)
	alice := createUser(t, srv, "Alice", "alice@example.com")
	createUser(t, srv, "Bob", "bob@example.com")

	resp, fields := doJSON(t, srv, http.MethodPost, "/api/transactions/send", alice,
		`{"recipient_email":"bob@example.com","amount":"150.00"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(fields["Description"]), "Transfer to Bob") {
		t.Errorf("entry description = %s", fields["Description"])
	}
}

func TestTransferEndpointErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	alice := createUser(t, srv, "Alice", "alice@example.com")
	createUser(t, srv, "Bob", "bob@example.com")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"insufficient funds", `{"recipient_email":"bob@example.com","amount":"5000.00"}`, http.StatusBadRequest},
		{"unknown recipient", `{"recipient_email":"nobody@example.com","amount":"10.00"}`, http.StatusNotFound},
		{"self transfer", `{"recipient_email":"alice@example.com","amount":"10.00"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doJSON(t, srv, http.MethodPost, "/api/transactions/send", alice, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestEndpointsRequireUserHeader(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/accounts", "/api/transactions", "/api/bills", "/api/alerts"} {
		resp, _ := doJSON(t, srv, http.MethodGet, path, 0, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET %s without X-User-ID: status = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestBillLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	alice := createUser(t, srv, "Alice", "alice@example.com")

	resp, fields := doJSON(t, srv, http.MethodPost, "/api/bills", alice,
		`{"biller_name":"Netflix","due_date":"2025-06-15","amount_due":"499.00"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create bill status = %d", resp.StatusCode)
	}
	var billID int64
	if err := json.Unmarshal(fields["ID"], &billID); err != nil {
		t.Fatalf("decode bill id: %v", err)
	}

	resp, fields = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/bills/%d/pay", billID), alice, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pay bill status = %d", resp.StatusCode)
	}
	if string(fields["Status"]) != `"paid"` {
		t.Errorf("status = %s, want paid", fields["Status"])
	}

	// Seed balance 1000.00 minus 499.00.
	resp, fields = doJSON(t, srv, http.MethodGet, "/api/accounts/summary", alice, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status = %d", resp.StatusCode)
	}
	if string(fields["net_worth"]) != `"501"` {
		t.Errorf("net worth = %s, want 501", fields["net_worth"])
	}

	resp, fields = doJSON(t, srv, http.MethodGet, "/api/rewards/balance", alice, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reward balance status = %d", resp.StatusCode)
	}
	if string(fields["points_balance"]) != "49" {
		t.Errorf("points = %s, want 49", fields["points_balance"])
	}
}

func TestExchangeRateEndpointCachesQuote(t *testing.T) {
	srv := newTestServer(t)

	fetch := func() string {
		t.Helper()
		resp, err := srv.Client().Get(srv.URL + "/api/rewards/exchange-rate")
		if err != nil {
			t.Fatalf("GET exchange-rate: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			t.Fatalf("read body: %v", err)
		}
		return buf.String()
	}

	// Within the cache TTL every caller sees the same quote, even
	// though the underlying rate fluctuates per computation.
	first := fetch()
	for i := 0; i < 5; i++ {
		if got := fetch(); got != first {
			t.Fatalf("quote changed within TTL: %s vs %s", got, first)
		}
	}
}

func TestRedeemEndpointRejectsWithoutPoints(t *testing.T) {
	srv := newTestServer(t)
	alice := createUser(t, srv, "Alice", "alice@example.com")

	resp, _ := doJSON(t, srv, http.MethodPost, "/api/rewards/redeem", alice,
		`{"item_id":"cb-1","item_name":"Statement Credit","cost":500,"type":"cashback"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (no rewards account yet)", resp.StatusCode)
	}
}
