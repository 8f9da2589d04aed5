package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/api/middleware"
	"github.com/dvloznov/budget-bot/internal/categorize"
	"github.com/dvloznov/budget-bot/internal/categorymemory"
	cminmem "github.com/dvloznov/budget-bot/internal/categorymemory/inmemory"
	"github.com/dvloznov/budget-bot/internal/domain"
	jobsinmem "github.com/dvloznov/budget-bot/internal/jobs/inmemory"
	"github.com/dvloznov/budget-bot/internal/ledger"
	"github.com/dvloznov/budget-bot/internal/txparse"
)

const testAPIKey = "secret"

type memoryRepo struct {
	mu     sync.Mutex
	txs    []*domain.Transaction
	cats   []domain.Category
	limits []domain.Limit
}

func (m *memoryRepo) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, txs...)
	return nil
}

func (m *memoryRepo) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Transaction
	for _, tx := range m.txs {
		if tx.UserID == filter.UserID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Category
	for _, c := range m.cats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryRepo) InsertCategory(ctx context.Context, cat domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cats = append(m.cats, cat)
	return nil
}

func (m *memoryRepo) ListLimits(ctx context.Context, userID string) ([]domain.Limit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Limit
	for _, l := range m.limits {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memoryRepo) InsertLimit(ctx context.Context, limit domain.Limit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = append(m.limits, limit)
	return nil
}

func (m *memoryRepo) DeleteLimit(ctx context.Context, userID, limitID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.limits {
		if l.UserID == userID && l.ID == limitID {
			m.limits = append(m.limits[:i], m.limits[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fakeUploader struct{}

func (fakeUploader) UploadReceipt(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	return "gs://bucket/receipts/" + userID + "/photo.jpg", nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	log := zerolog.Nop()
	repo := &memoryRepo{}

	matcher := categorymemory.NewMatcher(cminmem.NewStore(), nil, categorymemory.DefaultParams(), log)
	chain := categorize.NewDefaultChain(categorize.Options{Memory: matcher, Patterns: matcher}, log)
	parser := txparse.New(txparse.DefaultCurrencyTable(), "EUR")
	svc := ledger.NewService(parser, chain, matcher, repo, repo, "Прочее", log).WithLimits(repo)

	store := jobsinmem.NewStore()
	queue := jobsinmem.NewQueue(10, 1, store, log)
	t.Cleanup(func() { _ = queue.Close() })

	return NewHandler(Deps{
		Ledger:    svc,
		Memory:    matcher,
		Uploader:  fakeUploader{},
		Publisher: queue,
		JobStore:  store,
		APIKey:    testAPIKey,
		Log:       log,
	})
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set(middleware.APIKeyHeader, testAPIKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func jsonBody(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHealthAndAuth(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health without key: status %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/parse", bytes.NewReader([]byte(`{"text":"5 кофе"}`))))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("parse without key: status %d, want 401", rec.Code)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/parse", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/parse: status %d, want 405", rec.Code)
	}
}

func TestParseEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec, out := do(t, h, http.MethodPost, "/api/parse", jsonBody(t, map[string]string{"text": "+2000 USD зарплата"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if out["amount"] != "2000" || out["currency"] != "USD" || out["description"] != "зарплата" || out["is_income"] != true {
		t.Errorf("unexpected parse result %v", out)
	}

	rec, out = do(t, h, http.MethodPost, "/api/parse", jsonBody(t, map[string]string{"text": "просто текст"}))
	if rec.Code != http.StatusUnprocessableEntity || out["error"] == "" {
		t.Errorf("unparseable: status %d body %v", rec.Code, out)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/parse", []byte("{"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status %d", rec.Code)
	}
}

func TestTransactionsRememberAndSuggest(t *testing.T) {
	h := newTestServer(t)

	rec, out := do(t, h, http.MethodPost, "/api/transactions", jsonBody(t, map[string]string{"user_id": "u1", "text": "12.5 продукты"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("record: status %d: %s", rec.Code, rec.Body)
	}
	tx := out["transaction"].(map[string]interface{})
	if tx["category_name"] != "Продукты" || tx["amount"] != "12.5" {
		t.Fatalf("unexpected transaction %v", tx)
	}
	categoryID := tx["category_id"].(string)

	// the exact-name match was auto-applied and remembered
	rec, out = do(t, h, http.MethodPost, "/api/suggest", jsonBody(t, map[string]string{"user_id": "u1", "description": "Продукты"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("suggest: status %d", rec.Code)
	}
	suggestion, ok := out["suggestion"].(map[string]interface{})
	if !ok || suggestion["category_id"] != categoryID {
		t.Fatalf("suggestion = %v, want category %s", out["suggestion"], categoryID)
	}

	rec, out = do(t, h, http.MethodPost, "/api/suggest", jsonBody(t, map[string]string{"user_id": "u2", "description": "Продукты"}))
	if rec.Code != http.StatusOK || out["suggestion"] != nil {
		t.Errorf("other user: status %d, suggestion %v", rec.Code, out["suggestion"])
	}

	rec, _ = do(t, h, http.MethodPost, "/api/remember", jsonBody(t, map[string]interface{}{
		"user_id": "u1", "description": "netflix подписка", "category_id": categoryID, "confidence": 0.8,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("remember: status %d: %s", rec.Code, rec.Body)
	}

	rec, out = do(t, h, http.MethodGet, "/api/patterns?user_id=u1", nil)
	if rec.Code != http.StatusOK || out["count"] != float64(2) {
		t.Errorf("patterns: status %d, body %v", rec.Code, out)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/remember", jsonBody(t, map[string]interface{}{"user_id": "u1", "description": "x"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("remember without category: status %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodPost, "/api/remember", jsonBody(t, map[string]interface{}{
		"user_id": "u1", "description": "x", "category_id": categoryID, "confidence": 3,
	}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("remember with confidence 3: status %d", rec.Code)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/transactions?user_id=u1&from=2000-01-01", nil)
	var list []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Errorf("list: status %d, %d transactions, err %v", rec.Code, len(list), err)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/transactions?user_id=u1&from=yesterday", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date: status %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodGet, "/api/transactions?user_id=u1&from=2024-02-01&to=2024-01-01", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reversed range: status %d", rec.Code)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/transactions", jsonBody(t, map[string]string{"user_id": "u1", "text": "без суммы"}))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unparseable transaction: status %d", rec.Code)
	}
}

func TestLimitsAndSummary(t *testing.T) {
	h := newTestServer(t)

	rec, out := do(t, h, http.MethodGet, "/api/categories?user_id=u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("categories: status %d", rec.Code)
	}
	var foodID string
	for _, c := range out["categories"].([]interface{}) {
		cat := c.(map[string]interface{})
		if cat["name"] == "Продукты" {
			foodID = cat["id"].(string)
		}
	}
	if foodID == "" {
		t.Fatal("no Продукты category")
	}

	rec, out = do(t, h, http.MethodPost, "/api/limits", jsonBody(t, map[string]string{"user_id": "u1", "category_id": foodID, "amount": "20 eur"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("set limit: status %d: %s", rec.Code, rec.Body)
	}
	limitID := out["limit"].(map[string]interface{})["id"].(string)

	rec, _ = do(t, h, http.MethodPost, "/api/limits", jsonBody(t, map[string]string{"user_id": "u1", "category_id": foodID, "amount": "50 eur"}))
	if rec.Code != http.StatusConflict {
		t.Errorf("second limit: status %d, want 409", rec.Code)
	}

	rec, out = do(t, h, http.MethodPost, "/api/transactions", jsonBody(t, map[string]string{"user_id": "u1", "text": "12.5 продукты"}))
	if rec.Code != http.StatusCreated || out["limit_warnings"] != nil {
		t.Fatalf("record under limit: status %d, warnings %v", rec.Code, out["limit_warnings"])
	}

	rec, out = do(t, h, http.MethodPost, "/api/transactions", jsonBody(t, map[string]string{"user_id": "u1", "text": "10 продукты"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("record over limit: status %d", rec.Code)
	}
	warnings, _ := out["limit_warnings"].([]interface{})
	if len(warnings) != 1 || warnings[0].(map[string]interface{})["state"] != "exceeded" {
		t.Errorf("limit_warnings = %v", out["limit_warnings"])
	}

	rec, out = do(t, h, http.MethodGet, "/api/summary?user_id=u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: status %d", rec.Code)
	}
	currencies := out["currencies"].([]interface{})
	if len(currencies) != 1 || currencies[0].(map[string]interface{})["expense"] != "22.5" {
		t.Errorf("summary currencies = %v", currencies)
	}

	rec, _ = do(t, h, http.MethodDelete, "/api/limits/"+limitID+"?user_id=u1", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete limit: status %d", rec.Code)
	}
	rec, out = do(t, h, http.MethodGet, "/api/limits?user_id=u1", nil)
	if rec.Code != http.StatusOK || out["count"] != float64(0) {
		t.Errorf("limits after delete: status %d, body %v", rec.Code, out)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec, out := do(t, h, http.MethodGet, "/api/categories?user_id=u9", nil)
	if rec.Code != http.StatusOK || out["count"] != float64(len(domain.DefaultCategoryNames)) {
		t.Errorf("categories: status %d, body %v", rec.Code, out)
	}

	rec, out = do(t, h, http.MethodPost, "/api/categorize", jsonBody(t, map[string]string{"user_id": "u9", "description": "такси домой"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("categorize: status %d", rec.Code)
	}
	res := out["result"].(map[string]interface{})
	if res["category_name"] != "Транспорт" {
		t.Errorf("categorize result %v", res)
	}
}

func TestJobEndpoints(t *testing.T) {
	h := newTestServer(t)

	rec, out := do(t, h, http.MethodPost, "/api/cleanup", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("cleanup: status %d: %s", rec.Code, rec.Body)
	}
	jobID := out["job_id"].(string)

	rec, out = do(t, h, http.MethodGet, "/api/jobs/"+jobID, nil)
	if rec.Code != http.StatusOK || out["type"] != "cleanup_memory" {
		t.Errorf("get job: status %d, body %v", rec.Code, out)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/jobs/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job: status %d", rec.Code)
	}

	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	rec, out = do(t, h, http.MethodPost, "/api/receipts?user_id=u1", jpeg)
	if rec.Code != http.StatusAccepted || out["gcs_uri"] != "gs://bucket/receipts/u1/photo.jpg" {
		t.Errorf("receipt: status %d, body %v", rec.Code, out)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/receipts?user_id=u1", []byte("plain text"))
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("text receipt: status %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodPost, "/api/receipts", jpeg)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("receipt without user: status %d", rec.Code)
	}

	rec, out = do(t, h, http.MethodGet, "/api/jobs?type=process_receipt&user_id=u1", nil)
	if rec.Code != http.StatusOK || out["count"] != float64(1) {
		t.Errorf("list jobs: status %d, body %v", rec.Code, out)
	}
}
