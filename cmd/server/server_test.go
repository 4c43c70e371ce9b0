package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Simplici0/molduraria/internal/db"
	"github.com/Simplici0/molduraria/internal/idempotency"
	"github.com/Simplici0/molduraria/internal/migrations"
	"github.com/Simplici0/molduraria/internal/seed"
)

func newTestServer(t *testing.T) *server {
	t.Helper()

	s, _ := newTestServerWithDB(t)
	return s
}

func newTestServerWithDB(t *testing.T) (*server, *sql.DB) {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "server-test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := migrations.Up(ctx, database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if _, err := seed.Run(ctx, database, seed.StarterCatalog()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	return newServer(database, serverOptions{
		Log:            zap.NewNop(),
		Dedup:          idempotency.NewMemoryStore(),
		DedupTTL:       time.Hour,
		MaxUploadBytes: 1 << 20,
	}), database
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t).routes()

	rr := doJSON(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Fatalf("unexpected health response: %d %q", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `framefactory_http_request_duration_seconds_count{method="GET",route="/health",status="200"} 1`) {
		t.Fatalf("expected health request in metrics, got: %s", rr.Body.String())
	}
}

func TestCalculatorEndpoint(t *testing.T) {
	h := newTestServer(t).routes()

	body := `{
		"height_cm": 50, "width_cm": 70, "quantity": 1,
		"moldura": {"use": true, "product_id": 1},
		"vidro": {"use": true, "product_id": 2},
		"use_acessorios": true, "acessorio_ids": [6]
	}`
	rr := doJSON(t, h, http.MethodPost, "/api/calculator", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var priced struct {
		Items []struct {
			Type         string `json:"type"`
			Quantity     string `json:"quantity"`
			SaleSubtotal string `json:"sale_subtotal"`
		} `json:"items"`
		TotalCost  string `json:"total_cost"`
		TotalSale  string `json:"total_sale"`
		FinalValue string `json:"final_value"`
	}
	decodeBody(t, rr, &priced)

	if len(priced.Items) != 3 {
		t.Fatalf("expected 3 line items, got %+v", priced.Items)
	}
	if priced.Items[0].Type != "moldura" || priced.Items[0].Quantity != "2.86" {
		t.Fatalf("unexpected frame line: %+v", priced.Items[0])
	}
	if priced.Items[1].Type != "vidro" || priced.Items[1].Quantity != "0.35" {
		t.Fatalf("unexpected glass line: %+v", priced.Items[1])
	}
	// 2.86*18.50 + 0.35*45 + 1.20 = 52.91 + 15.75 + 1.20
	if priced.TotalCost != "69.86" {
		t.Fatalf("expected total cost 69.86, got %s", priced.TotalCost)
	}
	if priced.FinalValue != priced.TotalSale {
		t.Fatalf("expected final value to equal total sale, got %s vs %s", priced.FinalValue, priced.TotalSale)
	}
}

func TestCalculatorEndpointErrors(t *testing.T) {
	h := newTestServer(t).routes()

	tests := []struct {
		name   string
		body   string
		status int
		code   string
		field  string
	}{
		{"zero height", `{"height_cm": 0, "width_cm": 70, "quantity": 1}`, http.StatusBadRequest, "validation_error", "height_cm"},
		{"unknown product", `{"height_cm": 50, "width_cm": 70, "quantity": 1, "vidro": {"use": true, "product_id": 999}}`, http.StatusUnprocessableEntity, "product_not_found", "vidro"},
		{"wrong family", `{"height_cm": 50, "width_cm": 70, "quantity": 1, "vidro": {"use": true, "product_id": 1}}`, http.StatusBadRequest, "validation_error", "vidro"},
		{"unknown field", `{"height": 50}`, http.StatusBadRequest, "invalid_request", ""},
		{"wrong type", `{"quantity": "two"}`, http.StatusBadRequest, "invalid_request", "quantity"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodPost, "/api/calculator", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			var resp errorResponse
			decodeBody(t, rr, &resp)
			if resp.Error.Code != tc.code {
				t.Fatalf("expected code %q, got %+v", tc.code, resp.Error)
			}
			if tc.field != "" && resp.Error.Field != tc.field {
				t.Fatalf("expected field %q, got %+v", tc.field, resp.Error)
			}
		})
	}
}

func TestProductEndpoints(t *testing.T) {
	h := newTestServer(t).routes()

	rr := doJSON(t, h, http.MethodPost, "/api/products", `{
		"reference": "mol-010", "description": "Moldura caixa natural", "family": "moldura",
		"cost": "22.40", "manufacturing_price": "56.00", "retail_price": "70.00",
		"bar_length_cm": 300, "bar_width_cm": 4
	}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Active    bool   `json:"active"`
	}
	decodeBody(t, rr, &created)
	if created.Reference != "MOL-010" || !created.Active {
		t.Fatalf("unexpected product: %+v", created)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/products", `{"reference": "MOL-010", "description": "x", "family": "moldura", "bar_length_cm": 1, "bar_width_cm": 1}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected duplicate reference conflict, got %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/products", `{"reference": "VID-9", "description": "Vidro", "family": "vidro", "bar_length_cm": 10}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected bar dimension validation error, got %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/products", `{"reference": "X", "description": "x", "family": "madeira"}`)
	var resp errorResponse
	decodeBody(t, rr, &resp)
	if rr.Code != http.StatusBadRequest || resp.Error.Field != "family" {
		t.Fatalf("expected family validation error, got %d %+v", rr.Code, resp.Error)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/products/1/active", `{"active": false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodGet, "/api/products?active=true&family=moldura", "")
	var list []struct {
		Reference string `json:"reference"`
	}
	decodeBody(t, rr, &list)
	if len(list) != 1 || list[0].Reference != "MOL-010" {
		t.Fatalf("expected only the new active frame, got %+v", list)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/products/999", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleProductGetUsesRouteParam(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/products/2", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "2")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rr := httptest.NewRecorder()
	srv.handleProductGet(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"reference":"VID-002"`) {
		t.Fatalf("expected VID-002, got %s", rr.Body.String())
	}
}

func TestOrderCreateCountsOnlyTheCalculation(t *testing.T) {
	s, database := newTestServerWithDB(t)
	h := s.routes()

	if _, err := database.Exec(`DROP TABLE orders`); err != nil {
		t.Fatalf("drop orders table: %v", err)
	}

	rr := doJSON(t, h, http.MethodPost, "/api/orders", `{
		"customer": "Ana",
		"request": {"height_cm": 50, "width_cm": 70, "quantity": 1, "moldura": {"use": true, "product_id": 1}}
	}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodGet, "/metrics", "")
	body := rr.Body.String()
	if !strings.Contains(body, `framefactory_calculations_total{result="ok"} 1`) {
		t.Fatalf("expected one successful calculation, got: %s", body)
	}
	if strings.Contains(body, `framefactory_calculations_total{result="error"}`) {
		t.Fatalf("store failure counted as a calculation error: %s", body)
	}
}

func TestOrderLifecycleBooksSale(t *testing.T) {
	h := newTestServer(t).routes()

	rr := doJSON(t, h, http.MethodPost, "/api/orders", `{
		"customer": "Ana", "due_date": "2024-05-10",
		"request": {"height_cm": 50, "width_cm": 70, "quantity": 1, "moldura": {"use": true, "product_id": 1}}
	}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var order struct {
		ID         int64  `json:"id"`
		Stage      string `json:"stage"`
		FinalValue string `json:"final_value"`
	}
	decodeBody(t, rr, &order)
	if order.Stage != "pendente" {
		t.Fatalf("expected pendente, got %s", order.Stage)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/orders/1/stage", `{"stage": "pronto"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected skipped stage to conflict, got %d", rr.Code)
	}

	for _, stage := range []string{"corte", "montagem", "acabamento", "pronto", "entregue"} {
		rr = doJSON(t, h, http.MethodPost, "/api/orders/1/stage", `{"stage": "`+stage+`"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("move to %s: expected 200, got %d: %s", stage, rr.Code, rr.Body.String())
		}
	}

	rr = doJSON(t, h, http.MethodGet, "/api/ledger?kind=venda", "")
	var entries []struct {
		Amount  string `json:"amount"`
		OrderID int64  `json:"order_id"`
	}
	decodeBody(t, rr, &entries)
	if len(entries) != 1 || entries[0].OrderID != order.ID || entries[0].Amount != order.FinalValue {
		t.Fatalf("expected one sale of %s for order %d, got %+v", order.FinalValue, order.ID, entries)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/board", "")
	var board []struct {
		Stage string `json:"stage"`
		Count int    `json:"count"`
	}
	decodeBody(t, rr, &board)
	if len(board) != 7 || board[5].Stage != "entregue" || board[5].Count != 1 {
		t.Fatalf("unexpected board: %+v", board)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/orders", `{"due_date": "10/05/2024", "request": {}}`)
	var resp errorResponse
	decodeBody(t, rr, &resp)
	if rr.Code != http.StatusBadRequest || resp.Error.Field != "due_date" {
		t.Fatalf("expected due_date validation error, got %d %+v", rr.Code, resp.Error)
	}
}

func TestLedgerEndpoints(t *testing.T) {
	h := newTestServer(t).routes()

	for _, body := range []string{
		`{"kind": "compra", "category": "vidros", "amount": "300.00", "occurred_on": "2024-03-02"}`,
		`{"kind": "receita", "category": "outros", "amount": "50", "occurred_on": "2024-03-03"}`,
	} {
		rr := doJSON(t, h, http.MethodPost, "/api/ledger", body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	}

	rr := doJSON(t, h, http.MethodPost, "/api/ledger", `{"kind": "venda", "amount": "-1", "occurred_on": "2024-03-03"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected negative amount rejected, got %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/ledger/summary?from=2024-03-01&to=2024-03-31", "")
	var summary struct {
		Income  string `json:"income"`
		Expense string `json:"expense"`
		Balance string `json:"balance"`
	}
	decodeBody(t, rr, &summary)
	if summary.Income != "50" || summary.Expense != "300" || summary.Balance != "-250" {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/ledger?from=2024-13-01", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected bad date rejected, got %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodDelete, "/api/ledger/1", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodDelete, "/api/ledger/1", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestImportEndpoint(t *testing.T) {
	h := newTestServer(t).routes()

	csv := "ID do pedido;Nome de usuário (comprador);Nome do Produto;Quantidade;Valor Total\n" +
		"240301ABC;ana;Quadro Moldura Preta 50x70;1;R$ 189,90\n" +
		"240302XYZ;bruno;Espelho Redondo;1;R$ 250,00\n"

	upload := func() *httptest.ResponseRecorder {
		body, contentType := multipartUpload(t, "pedidos.csv", csv)
		req := httptest.NewRequest(http.MethodPost, "/api/imports/shopee", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	rr := upload()
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var report struct {
		Imported int     `json:"imported"`
		OrderIDs []int64 `json:"order_ids"`
	}
	decodeBody(t, rr, &report)
	if report.Imported != 2 || len(report.OrderIDs) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	rr = upload()
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected duplicate file conflict, got %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/orders?source=shopee&sector=espelhos", "")
	var list []struct {
		ExternalRef string `json:"external_ref"`
	}
	decodeBody(t, rr, &list)
	if len(list) != 1 || list[0].ExternalRef != "240302XYZ" {
		t.Fatalf("unexpected orders: %+v", list)
	}

	body, contentType := multipartUpload(t, "pedidos.csv", csv)
	req := httptest.NewRequest(http.MethodPost, "/api/imports/amazon", body)
	req.Header.Set("Content-Type", contentType)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected unknown marketplace 404, got %d", rr.Code)
	}
}

func TestImportEndpointRejectsCorruptSpreadsheet(t *testing.T) {
	h := newTestServer(t).routes()

	for i := 0; i < 2; i++ {
		body, contentType := multipartUpload(t, "orders.xlsx", "this is not a zip archive")
		req := httptest.NewRequest(http.MethodPost, "/api/imports/shopee", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("upload %d: expected status 400, got %d: %s", i, rr.Code, rr.Body.String())
		}
		var resp errorResponse
		decodeBody(t, rr, &resp)
		if resp.Error.Code != "invalid_file" || resp.Error.Field != "file" {
			t.Fatalf("upload %d: unexpected error: %+v", i, resp.Error)
		}
	}
}

func TestMeliSyncDisabled(t *testing.T) {
	h := newTestServer(t).routes()

	rr := doJSON(t, h, http.MethodPost, "/api/imports/mercadolivre/sync", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
