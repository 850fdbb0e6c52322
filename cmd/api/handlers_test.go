package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiBinStock/internal/config"
	"github.com/nemonet1337/zaiBinStock/pkg/inventory"
	"github.com/nemonet1337/zaiBinStock/pkg/inventory/exchange"
)

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	cfg := config.Default()
	cfg.Inventory.SeedDemoData = true
	return newRouter(cfg, zap.NewNop())
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp testResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func decode[T any](t *testing.T, resp testResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	return v
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t)

	rec, resp := do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	data := decode[map[string]interface{}](t, resp)
	assert.Equal(t, "healthy", data["status"])
	assert.EqualValues(t, 10, data["products"])
}

func TestProductsCRUD(t *testing.T) {
	router := newTestRouter(t)

	_, resp := do(t, router, http.MethodGet, "/api/v1/products", "")
	assert.Len(t, decode[[]inventory.Product](t, resp), 10)

	rec, resp := do(t, router, http.MethodPost, "/api/v1/products",
		`{"name":"Soporte Monitor","unit_price":19.5,"item_number":"100200","bin_location":"A-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, resp.Error)
	created := decode[inventory.Product](t, resp)
	assert.Equal(t, int64(11), created.ID)
	assert.Equal(t, inventory.Code("A-01"), created.BinLocation)
	assert.Equal(t, int64(inventory.DefaultMaxStock), created.MaxStock)

	rec, _ = do(t, router, http.MethodPost, "/api/v1/products", `{"id":11,"name":"Otro"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/api/v1/products", `{"unit_price":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/api/v1/products", `{"name":"Caro","unit_price":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/api/v1/products", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = do(t, router, http.MethodPut, "/api/v1/products/3", `{"current_stock":20}`)
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)
	assert.Equal(t, int64(20), decode[inventory.Product](t, resp).CurrentStock)

	rec, _ = do(t, router, http.MethodPut, "/api/v1/products/3", `{"id":4}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodPut, "/api/v1/products/3", `{"min_stock":50}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodPut, "/api/v1/products/999", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, router, http.MethodDelete, "/api/v1/products/11", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/v1/products/11", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, router, http.MethodDelete, "/api/v1/products/11", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = do(t, router, http.MethodDelete, "/api/v1/products", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"removed": 10}, decode[map[string]int](t, resp))

	_, resp = do(t, router, http.MethodGet, "/api/v1/products", "")
	assert.Empty(t, decode[[]inventory.Product](t, resp))
}

func TestLookupAndItemStock(t *testing.T) {
	router := newTestRouter(t)

	for _, body := range []string{
		`{"id":20,"name":"Cable USB-C","item_number":"100012","bin_location":"A-01","current_stock":15}`,
		`{"id":21,"name":"Cable USB-C","item_number":"100012","bin_location":"B-07","current_stock":10}`,
	} {
		rec, resp := do(t, router, http.MethodPost, "/api/v1/products", body)
		require.Equal(t, http.StatusCreated, rec.Code, resp.Error)
	}

	_, resp := do(t, router, http.MethodGet, "/api/v1/products/lookup?item_number=100012&bin=B-07", "")
	found := decode[[]inventory.Product](t, resp)
	require.Len(t, found, 1)
	assert.Equal(t, int64(21), found[0].ID)

	_, resp = do(t, router, http.MethodGet, "/api/v1/products/lookup?item_number=100012", "")
	assert.Len(t, decode[[]inventory.Product](t, resp), 2)

	rec, _ := do(t, router, http.MethodGet, "/api/v1/products/lookup?item_number=100012&bin=Z-99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/v1/products/lookup?bin=A-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, resp = do(t, router, http.MethodGet, "/api/v1/items/stock?item_number=100012", "")
	stock := decode[map[string]interface{}](t, resp)
	assert.EqualValues(t, 25, stock["total_stock"])
	assert.Equal(t, map[string]interface{}{"A-01": 15.0, "B-07": 10.0}, stock["bins"])

	_, resp = do(t, router, http.MethodGet, "/api/v1/items/groups", "")
	groups := decode[[]ItemGroupResponse](t, resp)
	var total int64
	for _, g := range groups {
		if g.TotalStock == 25 && len(g.Products) == 2 {
			total = g.TotalStock
		}
	}
	assert.Equal(t, int64(25), total)
}

func TestMovements(t *testing.T) {
	router := newTestRouter(t)

	// Laptop: 在庫15, 最小5
	rec, resp := do(t, router, http.MethodPost, "/api/v1/movements/exit", `{"product_id":1,"quantity":11}`)
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)
	data := decode[map[string]json.RawMessage](t, resp)
	var p inventory.Product
	require.NoError(t, json.Unmarshal(data["product"], &p))
	assert.Equal(t, int64(4), p.CurrentStock)

	rec, resp = do(t, router, http.MethodPost, "/api/v1/movements/entry", `{"product_id":1,"quantity":6}`)
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)

	_, resp = do(t, router, http.MethodGet, "/api/v1/movements/history/1", "")
	history := decode[[]inventory.MovementRecord](t, resp)
	require.Len(t, history, 2)
	assert.Equal(t, inventory.MovementTypeEntry, history[0].Type)
	assert.Equal(t, int64(10), history[0].NewQuantity)

	_, resp = do(t, router, http.MethodGet, "/api/v1/movements/history/1?limit=1", "")
	assert.Len(t, decode[[]inventory.MovementRecord](t, resp), 1)

	rec, _ = do(t, router, http.MethodGet, "/api/v1/movements/history/1?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"数量ゼロ", "/api/v1/movements/entry", `{"product_id":2,"quantity":0}`, http.StatusBadRequest},
		{"存在しない商品", "/api/v1/movements/entry", `{"product_id":999,"quantity":1}`, http.StatusNotFound},
		{"容量超過", "/api/v1/movements/entry", `{"product_id":4,"quantity":19}`, http.StatusUnprocessableEntity},
		{"在庫不足", "/api/v1/movements/exit", `{"product_id":2,"quantity":46}`, http.StatusUnprocessableEntity},
		{"無効なJSON", "/api/v1/movements/exit", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestBatchMovements(t *testing.T) {
	router := newTestRouter(t)

	rec, resp := do(t, router, http.MethodPost, "/api/v1/movements/exit/batch",
		`{"movements":[{"product_id":2,"quantity":5},{"product_id":999,"quantity":1},{"product_id":3,"quantity":9}]}`)
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)

	result := decode[inventory.BatchResult](t, resp)
	assert.Equal(t, inventory.MovementTypeExit, result.Type)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 2, result.FailureCount)
	assert.Len(t, result.Messages, 3)

	rec, _ = do(t, router, http.MethodPost, "/api/v1/movements/entry/batch", `{"movements":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalytics(t *testing.T) {
	router := newTestRouter(t)

	_, resp := do(t, router, http.MethodGet, "/api/v1/analytics/statistics", "")
	stats := decode[inventory.Statistics](t, resp)
	assert.Equal(t, 10, stats.TotalProducts)
	assert.Equal(t, 2, stats.AlertCount)

	_, resp = do(t, router, http.MethodGet, "/api/v1/analytics/report", "")
	assert.Len(t, decode[[]inventory.ReportRow](t, resp), 10)

	_, resp = do(t, router, http.MethodGet, "/api/v1/analytics/categories", "")
	assert.Len(t, decode[[]inventory.CategorySummary](t, resp), 4)

	_, resp = do(t, router, http.MethodGet, "/api/v1/analytics/alerts", "")
	assert.Len(t, decode[[]inventory.StockAlert](t, resp), 2)

	_, resp = do(t, router, http.MethodGet, "/api/v1/analytics/abc", "")
	classes := decode[map[string]string](t, resp)
	assert.Len(t, classes, 10)
	assert.Equal(t, "A", classes["1"])

	_, resp = do(t, router, http.MethodGet, "/api/v1/analytics/matrix", "")
	matrix := decode[struct {
		Columns []string    `json:"columns"`
		Rows    [][]float64 `json:"rows"`
	}](t, resp)
	assert.Len(t, matrix.Columns, 5)
	require.Len(t, matrix.Rows, 10)
	assert.Equal(t, []float64{1, 899.99, 15, 5, 50}, matrix.Rows[0])
}

func TestImportExport(t *testing.T) {
	router := newTestRouter(t)

	rec, resp := do(t, router, http.MethodPost, "/api/v1/exchange/import",
		`{"rows":[{"Name":"Hub USB","Item_Number":"200300","Bin_Location":"C-03","Price":"15.5"},{"Item_Number":"200300","Bin_Location":"C-03","Current_Stock":20}]}`)
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)

	report := decode[exchange.ImportReport](t, resp)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 0, report.Failed)

	rec, _ = do(t, router, http.MethodPost, "/api/v1/exchange/import", `{"rows":[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, resp = do(t, router, http.MethodGet, "/api/v1/exchange/export", "")
	assert.Len(t, decode[[]map[string]interface{}](t, resp), 11)

	rec, _ = do(t, router, http.MethodGet, "/api/v1/exchange/export?format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, strings.Join(exchange.DefaultColumns(), ",")))
	assert.Contains(t, body, "Hub USB")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/exchange/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	csvRec := httptest.NewRecorder()
	router.ServeHTTP(csvRec, req)
	require.Equal(t, http.StatusOK, csvRec.Code)

	var csvResp testResponse
	require.NoError(t, json.Unmarshal(csvRec.Body.Bytes(), &csvResp))
	assert.Equal(t, 0, decode[exchange.ImportReport](t, csvResp).Failed)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := do(t, router, http.MethodPost, "/api/v1/movements/exit", `{"product_id":5,"quantity":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `zaistock_movements_total{type="exit"} 1`)
	assert.Contains(t, rec.Body.String(), "zaistock_low_stock_alerts_total 1")
	assert.Contains(t, rec.Body.String(), "zaistock_catalog_products 10")
}

func TestMetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.API.EnableMetrics = false
	router := newRouter(cfg, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(inventory.ErrProductNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(inventory.ErrDuplicateProduct))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(inventory.ErrInsufficientStock))
	assert.Equal(t, http.StatusBadRequest, statusFor(inventory.NewValidationError("name", "empty", "")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
