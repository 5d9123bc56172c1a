package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ledgerd/internal/auth"
	"ledgerd/internal/services"
	"ledgerd/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() unexpected error: %v", err)
	}

	tokens := auth.NewTokenIssuer("test-secret-at-least-16-chars", time.Hour)
	srv := NewServer("127.0.0.1:0",
		services.NewAuthService(repo, tokens),
		services.NewCategoryService(repo),
		services.NewTransactionService(repo, nil),
		services.NewSummaryService(repo),
		tokens,
		repo.Ping,
	)
	t.Cleanup(func() {
		srv.rateLimiter.stop()
		repo.Close()
	})
	return srv
}

type testEnvelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *pagination     `json:"pagination"`
	Summary    *summaryDTO     `json:"summary"`
}

// doRequest runs one request through the full middleware chain and decodes
// the response envelope.
func doRequest(t *testing.T, srv *Server, method, path, token, body string) (int, testEnvelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	var envelope testEnvelope
	if len(rec.Body.Bytes()) > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, envelope
}

func registerTestUser(t *testing.T, srv *Server, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":"Ada","email":%q,"password":"hunter2secret"}`, email)
	status, env := doRequest(t, srv, http.MethodPost, "/api/auth/register", "", body)
	if status != http.StatusCreated {
		t.Fatalf("register returned %d: %s", status, env.Message)
	}
	var resp authResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode register data: %v", err)
	}
	return resp.Token
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	status, _ := doRequest(t, srv, http.MethodGet, "/healthz", "", "")
	if status != http.StatusOK {
		t.Errorf("/healthz = %d, want 200", status)
	}
	status, _ = doRequest(t, srv, http.MethodGet, "/readyz", "", "")
	if status != http.StatusOK {
		t.Errorf("/readyz = %d, want 200", status)
	}
}

func TestRegisterLoginMe(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "ada@example.com")

	t.Run("me with fresh token", func(t *testing.T) {
		status, env := doRequest(t, srv, http.MethodGet, "/api/auth/me", token, "")
		if status != http.StatusOK {
			t.Fatalf("me returned %d: %s", status, env.Message)
		}
		var user userDTO
		if err := json.Unmarshal(env.Data, &user); err != nil {
			t.Fatalf("decode user: %v", err)
		}
		if user.Email != "ada@example.com" || user.Name != "Ada" {
			t.Errorf("user = %+v", user)
		}
	})

	t.Run("login issues a usable token", func(t *testing.T) {
		status, env := doRequest(t, srv, http.MethodPost, "/api/auth/login", "",
			`{"email":"ada@example.com","password":"hunter2secret"}`)
		if status != http.StatusOK {
			t.Fatalf("login returned %d: %s", status, env.Message)
		}
		var resp authResponse
		if err := json.Unmarshal(env.Data, &resp); err != nil {
			t.Fatalf("decode login data: %v", err)
		}
		if status, _ := doRequest(t, srv, http.MethodGet, "/api/auth/me", resp.Token, ""); status != http.StatusOK {
			t.Errorf("me with login token = %d, want 200", status)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		status, env := doRequest(t, srv, http.MethodPost, "/api/auth/login", "",
			`{"email":"ada@example.com","password":"wrong-password"}`)
		if status != http.StatusUnauthorized {
			t.Errorf("login returned %d, want 401", status)
		}
		if env.Success {
			t.Error("envelope reports success on failed login")
		}
	})

	t.Run("missing and garbage tokens", func(t *testing.T) {
		if status, _ := doRequest(t, srv, http.MethodGet, "/api/auth/me", "", ""); status != http.StatusUnauthorized {
			t.Errorf("me without token = %d, want 401", status)
		}
		if status, _ := doRequest(t, srv, http.MethodGet, "/api/auth/me", "not.a.jwt", ""); status != http.StatusUnauthorized {
			t.Errorf("me with garbage token = %d, want 401", status)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		status, _ := doRequest(t, srv, http.MethodPost, "/api/auth/register", "",
			`{"name":"Imposter","email":"ada@example.com","password":"hunter2secret"}`)
		if status != http.StatusBadRequest {
			t.Errorf("duplicate register = %d, want 400", status)
		}
	})

	t.Run("short password", func(t *testing.T) {
		status, _ := doRequest(t, srv, http.MethodPost, "/api/auth/register", "",
			`{"name":"Bob","email":"bob@example.com","password":"short"}`)
		if status != http.StatusBadRequest {
			t.Errorf("short password register = %d, want 400", status)
		}
	})
}

func createTestCategory(t *testing.T, srv *Server, token, name, catType string) categoryDTO {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"type":%q}`, name, catType)
	status, env := doRequest(t, srv, http.MethodPost, "/api/categories", token, body)
	if status != http.StatusCreated {
		t.Fatalf("create category returned %d: %s", status, env.Message)
	}
	var cat categoryDTO
	if err := json.Unmarshal(env.Data, &cat); err != nil {
		t.Fatalf("decode category: %v", err)
	}
	return cat
}

func TestCategoryEndpoints(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "ada@example.com")

	cat := createTestCategory(t, srv, token, "Food", "expense")
	if cat.Color == "" || cat.Icon == "" || !cat.IsActive {
		t.Errorf("created category missing defaults: %+v", cat)
	}

	t.Run("get reports transaction count", func(t *testing.T) {
		status, env := doRequest(t, srv, http.MethodGet, "/api/categories/"+cat.ID, token, "")
		if status != http.StatusOK {
			t.Fatalf("get category returned %d: %s", status, env.Message)
		}
		var detail categoryDetail
		if err := json.Unmarshal(env.Data, &detail); err != nil {
			t.Fatalf("decode category detail: %v", err)
		}
		if detail.Name != "Food" || detail.TransactionCount != 0 {
			t.Errorf("detail = %+v", detail)
		}
	})

	t.Run("update", func(t *testing.T) {
		status, env := doRequest(t, srv, http.MethodPut, "/api/categories/"+cat.ID, token,
			`{"name":"Dining","isActive":false}`)
		if status != http.StatusOK {
			t.Fatalf("update category returned %d: %s", status, env.Message)
		}
		var updated categoryDTO
		if err := json.Unmarshal(env.Data, &updated); err != nil {
			t.Fatalf("decode updated category: %v", err)
		}
		if updated.Name != "Dining" || updated.IsActive {
			t.Errorf("updated = %+v", updated)
		}
	})

	t.Run("invalid color rejected", func(t *testing.T) {
		status, _ := doRequest(t, srv, http.MethodPost, "/api/categories", token,
			`{"name":"Travel","type":"expense","color":"blue"}`)
		if status != http.StatusBadRequest {
			t.Errorf("invalid color = %d, want 400", status)
		}
	})

	t.Run("delete then 404", func(t *testing.T) {
		status, _ := doRequest(t, srv, http.MethodDelete, "/api/categories/"+cat.ID, token, "")
		if status != http.StatusOK {
			t.Fatalf("delete category = %d, want 200", status)
		}
		status, _ = doRequest(t, srv, http.MethodGet, "/api/categories/"+cat.ID, token, "")
		if status != http.StatusNotFound {
			t.Errorf("get deleted category = %d, want 404", status)
		}
	})

	t.Run("other user's category invisible", func(t *testing.T) {
		otherToken := registerTestUser(t, srv, "bob@example.com")
		mine := createTestCategory(t, srv, token, "Rent", "expense")
		status, _ := doRequest(t, srv, http.MethodGet, "/api/categories/"+mine.ID, otherToken, "")
		if status != http.StatusNotFound {
			t.Errorf("cross-user get = %d, want 404", status)
		}
	})
}

func TestCategoryActiveFilter(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "ada@example.com")

	active := createTestCategory(t, srv, token, "Food", "expense")
	retired := createTestCategory(t, srv, token, "Old Hobby", "expense")
	if status, env := doRequest(t, srv, http.MethodPut, "/api/categories/"+retired.ID, token,
		`{"isActive":false}`); status != http.StatusOK {
		t.Fatalf("deactivate returned %d: %s", status, env.Message)
	}

	// "active" is the contract name, "isActive" the alias.
	for _, q := range []string{"active=false", "isActive=false"} {
		status, env := doRequest(t, srv, http.MethodGet, "/api/categories?"+q, token, "")
		if status != http.StatusOK {
			t.Fatalf("list %q returned %d: %s", q, status, env.Message)
		}
		var cats []categoryDTO
		if err := json.Unmarshal(env.Data, &cats); err != nil {
			t.Fatalf("decode categories: %v", err)
		}
		if len(cats) != 1 || cats[0].ID != retired.ID {
			t.Errorf("filter %q returned %v, want only %q", q, cats, retired.ID)
		}
	}

	status, env := doRequest(t, srv, http.MethodGet, "/api/categories?active=true", token, "")
	if status != http.StatusOK {
		t.Fatalf("list active returned %d: %s", status, env.Message)
	}
	var cats []categoryDTO
	if err := json.Unmarshal(env.Data, &cats); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	if len(cats) != 1 || cats[0].ID != active.ID {
		t.Errorf("active=true returned %v, want only %q", cats, active.ID)
	}
}

func createTestTransaction(t *testing.T, srv *Server, token, body string) transactionDTO {
	t.Helper()
	status, env := doRequest(t, srv, http.MethodPost, "/api/transactions", token, body)
	if status != http.StatusCreated {
		t.Fatalf("create transaction returned %d: %s", status, env.Message)
	}
	var txn transactionDTO
	if err := json.Unmarshal(env.Data, &txn); err != nil {
		t.Fatalf("decode transaction: %v", err)
	}
	return txn
}

func TestTransactionEndpoints(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "ada@example.com")
	salary := createTestCategory(t, srv, token, "Salary", "income")
	food := createTestCategory(t, srv, token, "Food", "expense")

	t.Run("amount as string", func(t *testing.T) {
		txn := createTestTransaction(t, srv, token, fmt.Sprintf(
			`{"description":"Salary","amount":"1000","type":"income","categoryId":%q}`, salary.ID))
		if txn.Amount != "1000.00" {
			t.Errorf("Amount = %q, want %q", txn.Amount, "1000.00")
		}
		if txn.PaymentMethod != "cash" {
			t.Errorf("PaymentMethod = %q, want default cash", txn.PaymentMethod)
		}
	})

	t.Run("amount as number", func(t *testing.T) {
		txn := createTestTransaction(t, srv, token, fmt.Sprintf(
			`{"description":"Groceries","amount":12.5,"type":"expense","categoryId":%q,"date":"2026-03-10"}`, food.ID))
		if txn.Amount != "12.50" {
			t.Errorf("Amount = %q, want %q", txn.Amount, "12.50")
		}
	})

	t.Run("category reference under either name", func(t *testing.T) {
		byCategory := createTestTransaction(t, srv, token, fmt.Sprintf(
			`{"description":"Pay","amount":1000,"type":"income","category":%q}`, salary.ID))
		if byCategory.CategoryID != salary.ID {
			t.Errorf("CategoryID = %q, want %q", byCategory.CategoryID, salary.ID)
		}

		status, env := doRequest(t, srv, http.MethodPut, "/api/transactions/"+byCategory.ID, token,
			fmt.Sprintf(`{"type":"expense","category":%q}`, food.ID))
		if status != http.StatusOK {
			t.Fatalf("update via category field returned %d: %s", status, env.Message)
		}
		var moved transactionDTO
		if err := json.Unmarshal(env.Data, &moved); err != nil {
			t.Fatalf("decode transaction: %v", err)
		}
		if moved.CategoryID != food.ID {
			t.Errorf("CategoryID after update = %q, want %q", moved.CategoryID, food.ID)
		}
	})

	t.Run("type mismatch", func(t *testing.T) {
		status, _ := doRequest(t, srv, http.MethodPost, "/api/transactions", token, fmt.Sprintf(
			`{"description":"Oops","amount":"5","type":"expense","categoryId":%q}`, salary.ID))
		if status != http.StatusBadRequest {
			t.Errorf("mismatched type = %d, want 400", status)
		}
	})

	t.Run("missing amount", func(t *testing.T) {
		status, _ := doRequest(t, srv, http.MethodPost, "/api/transactions", token, fmt.Sprintf(
			`{"description":"No amount","type":"expense","categoryId":%q}`, food.ID))
		if status != http.StatusBadRequest {
			t.Errorf("missing amount = %d, want 400", status)
		}
	})

	t.Run("unknown body field", func(t *testing.T) {
		status, _ := doRequest(t, srv, http.MethodPost, "/api/transactions", token, fmt.Sprintf(
			`{"description":"X","amount":"5","type":"expense","categoryId":%q,"bogus":1}`, food.ID))
		if status != http.StatusBadRequest {
			t.Errorf("unknown field = %d, want 400", status)
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		txn := createTestTransaction(t, srv, token, fmt.Sprintf(
			`{"description":"Lunch","amount":"8.90","type":"expense","categoryId":%q}`, food.ID))

		status, env := doRequest(t, srv, http.MethodPut, "/api/transactions/"+txn.ID, token,
			`{"description":"Team lunch","amount":"15.00"}`)
		if status != http.StatusOK {
			t.Fatalf("update transaction returned %d: %s", status, env.Message)
		}
		var updated transactionDTO
		if err := json.Unmarshal(env.Data, &updated); err != nil {
			t.Fatalf("decode updated transaction: %v", err)
		}
		if updated.Description != "Team lunch" || updated.Amount != "15.00" {
			t.Errorf("updated = %+v", updated)
		}

		if status, _ := doRequest(t, srv, http.MethodDelete, "/api/transactions/"+txn.ID, token, ""); status != http.StatusOK {
			t.Errorf("delete transaction = %d, want 200", status)
		}
		if status, _ := doRequest(t, srv, http.MethodGet, "/api/transactions/"+txn.ID, token, ""); status != http.StatusNotFound {
			t.Errorf("get deleted transaction = %d, want 404", status)
		}
	})
}

func TestListTransactionsEnvelope(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "ada@example.com")
	salary := createTestCategory(t, srv, token, "Salary", "income")
	food := createTestCategory(t, srv, token, "Food", "expense")

	createTestTransaction(t, srv, token, fmt.Sprintf(
		`{"description":"Salary","amount":"1000","type":"income","categoryId":%q,"date":"2026-03-01"}`, salary.ID))
	createTestTransaction(t, srv, token, fmt.Sprintf(
		`{"description":"Groceries","amount":"45","type":"expense","categoryId":%q,"date":"2026-03-02"}`, food.ID))
	createTestTransaction(t, srv, token, fmt.Sprintf(
		`{"description":"Restaurant","amount":"65","type":"expense","categoryId":%q,"date":"2026-03-03"}`, food.ID))

	status, env := doRequest(t, srv, http.MethodGet, "/api/transactions?limit=2&page=1", token, "")
	if status != http.StatusOK {
		t.Fatalf("list returned %d: %s", status, env.Message)
	}

	var txns []transactionDTO
	if err := json.Unmarshal(env.Data, &txns); err != nil {
		t.Fatalf("decode transactions: %v", err)
	}
	if len(txns) != 2 || txns[0].Description != "Restaurant" {
		t.Errorf("page 1 = %v", txns)
	}

	if env.Pagination == nil {
		t.Fatal("missing pagination block")
	}
	if env.Pagination.CurrentPage != 1 || env.Pagination.TotalPages != 2 ||
		env.Pagination.TotalTransactions != 3 || !env.Pagination.HasNext || env.Pagination.HasPrev {
		t.Errorf("pagination = %+v", env.Pagination)
	}

	// Totals cover the whole filtered set, not just the page.
	if env.Summary == nil {
		t.Fatal("missing summary block")
	}
	if env.Summary.TotalIncome != "1000.00" || env.Summary.TotalExpense != "110.00" || env.Summary.Balance != "890.00" {
		t.Errorf("summary = %+v", env.Summary)
	}

	t.Run("type filter", func(t *testing.T) {
		status, env := doRequest(t, srv, http.MethodGet, "/api/transactions?type=expense", token, "")
		if status != http.StatusOK {
			t.Fatalf("list returned %d: %s", status, env.Message)
		}
		if env.Pagination.TotalTransactions != 2 {
			t.Errorf("expense total = %d, want 2", env.Pagination.TotalTransactions)
		}
	})

	t.Run("date window under either name", func(t *testing.T) {
		for _, q := range []string{
			"startDate=2026-03-02&endDate=2026-03-02",
			"dateFrom=2026-03-02&dateTo=2026-03-02",
		} {
			status, env := doRequest(t, srv, http.MethodGet, "/api/transactions?"+q, token, "")
			if status != http.StatusOK {
				t.Fatalf("list %q returned %d: %s", q, status, env.Message)
			}
			if env.Pagination.TotalTransactions != 1 {
				t.Errorf("window %q matched %d transactions, want 1", q, env.Pagination.TotalTransactions)
			}
		}
	})

	t.Run("bad type rejected", func(t *testing.T) {
		status, _ := doRequest(t, srv, http.MethodGet, "/api/transactions?type=loan", token, "")
		if status != http.StatusBadRequest {
			t.Errorf("bad type filter = %d, want 400", status)
		}
	})
}

func TestSummaryEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "ada@example.com")
	salary := createTestCategory(t, srv, token, "Salary", "income")
	food := createTestCategory(t, srv, token, "Food", "expense")

	createTestTransaction(t, srv, token, fmt.Sprintf(
		`{"description":"Salary","amount":"1000","type":"income","categoryId":%q,"date":"2026-03-01"}`, salary.ID))
	createTestTransaction(t, srv, token, fmt.Sprintf(
		`{"description":"Groceries","amount":"45","type":"expense","categoryId":%q,"date":"2026-03-02"}`, food.ID))

	status, env := doRequest(t, srv, http.MethodGet, "/api/transactions/stats/summary", token, "")
	if status != http.StatusOK {
		t.Fatalf("summary returned %d: %s", status, env.Message)
	}

	// The payload nests totals under "summary" with the breakdown beside it.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &keys); err != nil {
		t.Fatalf("decode summary keys: %v", err)
	}
	for _, key := range []string{"summary", "categoryBreakdown"} {
		if _, ok := keys[key]; !ok {
			t.Errorf("response is missing the %q key", key)
		}
	}

	var resp summaryResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if resp.Summary.TotalIncome != "1000.00" || resp.Summary.TotalExpense != "45.00" || resp.Summary.Balance != "955.00" {
		t.Errorf("summary totals = %+v", resp.Summary)
	}
	if resp.Summary.Count != 2 || len(resp.CategoryBreakdown) != 2 {
		t.Errorf("summary counts = %+v", resp)
	}
	if resp.CategoryBreakdown[0].Name != "Salary" || resp.CategoryBreakdown[0].Total != "1000.00" {
		t.Errorf("breakdown[0] = %+v", resp.CategoryBreakdown[0])
	}

	t.Run("unknown period", func(t *testing.T) {
		status, _ := doRequest(t, srv, http.MethodGet, "/api/transactions/stats/summary?period=decade", token, "")
		if status != http.StatusBadRequest {
			t.Errorf("unknown period = %d, want 400", status)
		}
	})

	t.Run("date window", func(t *testing.T) {
		for _, q := range []string{
			"startDate=2026-03-02&endDate=2026-03-02",
			"dateFrom=2026-03-02&dateTo=2026-03-02",
		} {
			status, env := doRequest(t, srv,
				http.MethodGet, "/api/transactions/stats/summary?"+q, token, "")
			if status != http.StatusOK {
				t.Fatalf("summary %q returned %d: %s", q, status, env.Message)
			}
			var resp summaryResponse
			if err := json.Unmarshal(env.Data, &resp); err != nil {
				t.Fatalf("decode summary: %v", err)
			}
			if resp.Summary.Count != 1 || resp.Summary.TotalExpense != "45.00" {
				t.Errorf("windowed summary for %q = %+v", q, resp)
			}
		}
	})
}

func TestRateLimitExceeded(t *testing.T) {
	srv := newTestServer(t)

	var lastStatus int
	for i := 0; i < 61; i++ {
		lastStatus, _ = doRequest(t, srv, http.MethodPost, "/api/auth/login", "",
			`{"email":"ada@example.com","password":"wrong"}`)
	}
	if lastStatus != http.StatusTooManyRequests {
		t.Errorf("request 61 = %d, want 429", lastStatus)
	}
}
