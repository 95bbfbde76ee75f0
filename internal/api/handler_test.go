package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/punchamoorthee/bizfin/internal/domain"
	"github.com/punchamoorthee/bizfin/internal/models"
	"github.com/punchamoorthee/bizfin/internal/recurring"
	"github.com/punchamoorthee/bizfin/internal/service"
	"github.com/punchamoorthee/bizfin/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type testServer struct {
	store   *store.MemoryStore
	router  http.Handler
	company uuid.UUID
	a, b    *domain.BankAccount
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	company := uuid.New()

	a := &domain.BankAccount{CompanyID: company, BankName: "First Bank", CurrentBalance: decimal.NewFromInt(500)}
	b := &domain.BankAccount{CompanyID: company, BankName: "Second Bank"}
	for _, acc := range []*domain.BankAccount{a, b} {
		if err := s.CreateAccount(ctx, acc); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
	}

	now := func() time.Time { return time.Date(2024, time.April, 15, 12, 0, 0, 0, time.UTC) }
	gen := recurring.NewGenerator(s, s, zerolog.Nop(), recurring.WithClock(now))
	transfers := service.NewTransferService(s, zerolog.Nop(), time.UTC)
	h := NewHandler(gen, transfers, s, zerolog.Nop())

	return &testServer{store: s, router: NewRouter(h), company: company, a: a, b: b}
}

func (ts *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) transferBody(amount string) string {
	return fmt.Sprintf(`{"source_account_id":%q,"destination_account_id":%q,"amount":%q,"description":"rent","company_id":%q}`,
		ts.a.ID, ts.b.ID, amount, ts.company)
}

func TestCreateTransfer_Created(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("POST", "/api/v1/transfers", ts.transferBody("100"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.TransferResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.SourceBalance.Equal(decimal.NewFromInt(400)) || !resp.DestinationBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected balances %s / %s", resp.SourceBalance, resp.DestinationBalance)
	}
	if resp.Outflow.Status != domain.StatusTransferred || resp.Inflow.Status != domain.StatusTransferred {
		t.Fatalf("expected transferred legs, got %q and %q", resp.Outflow.Status, resp.Inflow.Status)
	}
}

func TestCreateTransfer_ReplayReturnsOK(t *testing.T) {
	ts := newTestServer(t)
	headers := map[string]string{"Idempotency-Key": "abc-123"}

	if rec := ts.do("POST", "/api/v1/transfers", ts.transferBody("100"), headers); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	rec := ts.do("POST", "/api/v1/transfers", ts.transferBody("100"), headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", rec.Code)
	}
	if rec := ts.do("POST", "/api/v1/transfers", ts.transferBody("75"), headers); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on key reuse, got %d", rec.Code)
	}

	acc, _ := ts.store.GetAccount(context.Background(), ts.a.ID)
	if !acc.CurrentBalance.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected a single debit, balance is %s", acc.CurrentBalance)
	}
}

func TestCreateTransfer_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     func(ts *testServer) string
		wantCode int
	}{
		{"invalid json", func(ts *testServer) string { return `{"amount":` }, http.StatusBadRequest},
		{"invalid uuid", func(ts *testServer) string { return `{"source_account_id":"nope"}` }, http.StatusBadRequest},
		{"non-positive amount", func(ts *testServer) string { return ts.transferBody("0") }, http.StatusUnprocessableEntity},
		{"insufficient funds", func(ts *testServer) string { return ts.transferBody("600") }, http.StatusUnprocessableEntity},
		{
			"same account",
			func(ts *testServer) string {
				return fmt.Sprintf(`{"source_account_id":%q,"destination_account_id":%q,"amount":"10","company_id":%q}`,
					ts.a.ID, ts.a.ID, ts.company)
			},
			http.StatusUnprocessableEntity,
		},
		{
			"unknown account",
			func(ts *testServer) string {
				return fmt.Sprintf(`{"source_account_id":%q,"destination_account_id":%q,"amount":"10","company_id":%q}`,
					ts.a.ID, uuid.New(), ts.company)
			},
			http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do("POST", "/api/v1/transfers", tt.body(ts), nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if n := len(ts.store.Transactions()); n != 0 {
				t.Fatalf("expected no transactions, got %d", n)
			}
		})
	}
}

func TestGetAccount(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("GET", "/api/v1/accounts/"+ts.a.ID.String(), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var acc models.Account
	if err := json.NewDecoder(rec.Body).Decode(&acc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if acc.ID != ts.a.ID || !acc.CurrentBalance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected account %+v", acc)
	}

	if rec := ts.do("GET", "/api/v1/accounts/"+uuid.NewString(), "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := ts.do("GET", "/api/v1/accounts/42", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRunRecurring(t *testing.T) {
	ts := newTestServer(t)
	tmpl := &domain.RecurringTemplate{
		CompanyID:       ts.company,
		TransactionType: domain.TypeOutflow,
		Description:     "Office rent",
		Amount:          decimal.NewFromInt(1200),
		Frequency:       domain.FrequencyMonthly,
		Interval:        1,
		StartDate:       civil.Date{Year: 2024, Month: time.January, Day: 1},
	}
	if err := ts.store.CreateTemplate(context.Background(), tmpl); err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}

	rec := ts.do("POST", "/api/v1/recurring/run", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp models.RunResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Generated != 3 || resp.Templates != 1 {
		t.Fatalf("expected 3 generated from 1 template, got %+v", resp)
	}

	rec = ts.do("POST", "/api/v1/recurring/"+tmpl.ID.String()+"/run", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp = models.RunResponse{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Generated != 0 {
		t.Fatalf("expected rerun to generate nothing, got %d", resp.Generated)
	}
}

func TestRunTemplate_NotFound(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.do("POST", "/api/v1/recurring/"+uuid.NewString()+"/run", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := ts.do("POST", "/api/v1/recurring/not-a-uuid/run", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do("GET", "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated request id")
	}

	rec = ts.do("GET", "/health", "", map[string]string{"X-Request-ID": "req-1"})
	if got := rec.Header().Get("X-Request-ID"); got != "req-1" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}
