package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiBinStock/pkg/inventory"
	"github.com/nemonet1337/zaiBinStock/pkg/inventory/exchange"
)

// Handlers holds HTTP handlers for the inventory API
// 在庫API用のHTTPハンドラーを保持
type Handlers struct {
	catalog  *inventory.Catalog
	ops      *inventory.Operations
	importer *exchange.Importer
	journal  *inventory.Journal
	logger   *zap.Logger
}

// NewHandlers creates new HTTP handlers
// 新しいHTTPハンドラーを作成
func NewHandlers(ops *inventory.Operations, importer *exchange.Importer, journal *inventory.Journal, logger *zap.Logger) *Handlers {
	return &Handlers{
		catalog:  ops.Catalog(),
		ops:      ops,
		importer: importer,
		journal:  journal,
		logger:   logger,
	}
}

// APIResponse represents standard API response format
// 標準的なAPIレスポンス形式を表現
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ProductRequest represents a create or partial update request.
// Omitted fields keep their default (create) or current value (update).
// 商品作成・部分更新リクエストを表現
type ProductRequest struct {
	ID           *int64   `json:"id"`
	ItemNumber   *string  `json:"item_number"`
	UPCCode      *string  `json:"upc_code"`
	BinLocation  *string  `json:"bin_location"`
	Name         *string  `json:"name"`
	UnitPrice    *float64 `json:"unit_price"`
	CurrentStock *int64   `json:"current_stock"`
	MinStock     *int64   `json:"min_stock"`
	MaxStock     *int64   `json:"max_stock"`
	Category     *string  `json:"category"`
}

// apply copies the set fields onto p
func (req ProductRequest) apply(p *inventory.Product) {
	if req.ItemNumber != nil {
		p.ItemNumber = inventory.ParseCode(*req.ItemNumber)
	}
	if req.UPCCode != nil {
		p.UPCCode = inventory.ParseCode(*req.UPCCode)
	}
	if req.BinLocation != nil {
		p.BinLocation = inventory.ParseCode(*req.BinLocation)
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.UnitPrice != nil {
		p.UnitPrice = *req.UnitPrice
	}
	if req.CurrentStock != nil {
		p.CurrentStock = *req.CurrentStock
	}
	if req.MinStock != nil {
		p.MinStock = *req.MinStock
	}
	if req.MaxStock != nil {
		p.MaxStock = *req.MaxStock
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
}

// MovementRequest represents a single entry or exit request
// 入出庫リクエストを表現
type MovementRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// BatchMovementRequest represents a batch of entries or exits
// 一括入出庫リクエストを表現
type BatchMovementRequest struct {
	Movements []inventory.Movement `json:"movements"`
}

// ImportRequest represents rows to import with their column mapping
// 取り込みリクエストを表現
type ImportRequest struct {
	Rows    []exchange.Row         `json:"rows"`
	Mapping exchange.ColumnMapping `json:"mapping"`
}

// ItemGroupResponse is an ItemGroup with its derived totals
type ItemGroupResponse struct {
	Key        string              `json:"key"`
	TotalStock int64               `json:"total_stock"`
	Bins       map[string]int64    `json:"bins"`
	Products   []inventory.Product `json:"products"`
}

// HealthCheck handles health check requests
// ヘルスチェックリクエストを処理
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.sendSuccess(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "zaiBinStock",
		"products":  h.catalog.Len(),
	})
}

// ListProducts handles product list requests
// 商品一覧リクエストを処理
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	h.sendSuccess(w, h.catalog.Products())
}

// CreateProduct handles product creation requests
// 商品作成リクエストを処理
func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		h.sendError(w, http.StatusBadRequest, "商品名が指定されていません")
		return
	}

	id := h.catalog.NextID()
	if req.ID != nil {
		id = *req.ID
	}

	var price float64
	if req.UnitPrice != nil {
		price = *req.UnitPrice
	}
	p, err := inventory.NewProduct(id, *req.Name, price)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	req.apply(p)

	if err := h.catalog.Add(p); err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.sendJSON(w, http.StatusCreated, APIResponse{Success: true, Data: p})
}

// GetProduct handles get product requests
// 商品取得リクエストを処理
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	p, found := h.catalog.Get(id)
	if !found {
		h.sendError(w, http.StatusNotFound, "商品が見つかりません")
		return
	}
	h.sendSuccess(w, p)
}

// UpdateProduct handles partial product updates
// 商品更新リクエストを処理
func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	updated, err := h.catalog.Update(id, func(p *inventory.Product) error {
		if req.ID != nil && *req.ID != id {
			return inventory.ErrImmutableID
		}
		req.apply(p)
		return nil
	})
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendSuccess(w, updated)
}

// DeleteProduct handles product deletion
// 商品削除リクエストを処理
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	if err := h.catalog.Remove(id); err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendSuccess(w, map[string]string{"message": "商品を削除しました"})
}

// PurgeProducts removes every product
// 全商品削除リクエストを処理
func (h *Handlers) PurgeProducts(w http.ResponseWriter, r *http.Request) {
	removed := h.catalog.Len()
	h.catalog.Clear()
	h.sendSuccess(w, map[string]int{"removed": removed})
}

// LookupProducts finds records by item number or UPC, optionally at a bin.
// Without a bin every matching record is returned.
// 商品番号・UPC・BINで検索
func (h *Handlers) LookupProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	item := inventory.ParseCode(q.Get("item_number"))
	upc := inventory.ParseCode(q.Get("upc"))
	bin := inventory.ParseCode(q.Get("bin"))

	if !item.Defined() && !upc.Defined() {
		h.sendError(w, http.StatusBadRequest, "商品番号またはUPCコードを指定してください")
		return
	}

	if bin.Defined() {
		var (
			p     inventory.Product
			found bool
		)
		if item.Defined() {
			p, found = h.catalog.FindByItemNumberAndBin(item, bin)
		}
		if !found && upc.Defined() {
			p, found = h.catalog.FindByUPCAndBin(upc, bin)
		}
		if !found {
			h.sendError(w, http.StatusNotFound, "商品が見つかりません")
			return
		}
		h.sendSuccess(w, []inventory.Product{p})
		return
	}

	var products []inventory.Product
	if item.Defined() {
		products = h.catalog.FindAllByItemNumber(item)
	} else {
		products = h.catalog.FindAllByUPC(upc)
	}
	if products == nil {
		products = []inventory.Product{}
	}
	h.sendSuccess(w, products)
}

// ItemGroups returns every logical item with its cross-bin totals
// 論理商品ごとのグループを返す
func (h *Handlers) ItemGroups(w http.ResponseWriter, r *http.Request) {
	groups := h.catalog.GroupedByItem()
	resp := make([]ItemGroupResponse, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, ItemGroupResponse{
			Key:        g.Key,
			TotalStock: g.TotalStock(),
			Bins:       g.Bins(),
			Products:   g.Products,
		})
	}
	h.sendSuccess(w, resp)
}

// ItemStock returns the total stock and bin breakdown of a logical item
// 論理商品の合計在庫とBIN別在庫
func (h *Handlers) ItemStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	item := inventory.ParseCode(q.Get("item_number"))
	upc := inventory.ParseCode(q.Get("upc"))

	if !item.Defined() && !upc.Defined() {
		h.sendError(w, http.StatusBadRequest, "商品番号またはUPCコードを指定してください")
		return
	}

	h.sendSuccess(w, map[string]interface{}{
		"item_number": item.String(),
		"upc_code":    upc.String(),
		"total_stock": h.catalog.TotalStockForItem(item, upc),
		"bins":        h.catalog.BinsForItem(item, upc),
	})
}

// RecordEntry handles stock entry requests
// 入庫リクエストを処理
func (h *Handlers) RecordEntry(w http.ResponseWriter, r *http.Request) {
	h.recordMovement(w, r, inventory.MovementTypeEntry)
}

// RecordExit handles stock exit requests
// 出庫リクエストを処理
func (h *Handlers) RecordExit(w http.ResponseWriter, r *http.Request) {
	h.recordMovement(w, r, inventory.MovementTypeExit)
}

func (h *Handlers) recordMovement(w http.ResponseWriter, r *http.Request, kind inventory.MovementType) {
	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	var (
		msg string
		err error
	)
	if kind == inventory.MovementTypeEntry {
		msg, err = h.ops.RecordEntry(r.Context(), req.ProductID, req.Quantity)
	} else {
		msg, err = h.ops.RecordExit(r.Context(), req.ProductID, req.Quantity)
	}
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	p, _ := h.catalog.Get(req.ProductID)
	h.sendSuccess(w, map[string]interface{}{
		"message": msg,
		"product": p,
	})
}

// RecordEntriesBatch handles batch entry requests
// 一括入庫リクエストを処理
func (h *Handlers) RecordEntriesBatch(w http.ResponseWriter, r *http.Request) {
	h.recordBatch(w, r, inventory.MovementTypeEntry)
}

// RecordExitsBatch handles batch exit requests
// 一括出庫リクエストを処理
func (h *Handlers) RecordExitsBatch(w http.ResponseWriter, r *http.Request) {
	h.recordBatch(w, r, inventory.MovementTypeExit)
}

func (h *Handlers) recordBatch(w http.ResponseWriter, r *http.Request, kind inventory.MovementType) {
	var req BatchMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}
	if len(req.Movements) == 0 {
		h.sendError(w, http.StatusBadRequest, "移動要求が指定されていません")
		return
	}

	var result inventory.BatchResult
	if kind == inventory.MovementTypeEntry {
		result = h.ops.RecordEntriesBatch(r.Context(), req.Movements)
	} else {
		result = h.ops.RecordExitsBatch(r.Context(), req.Movements)
	}
	h.sendSuccess(w, result)
}

// MovementHistory returns the recorded movements of a product
// 商品の移動履歴を返す
func (h *Handlers) MovementHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.sendError(w, http.StatusBadRequest, "無効なlimitです")
			return
		}
		limit = n
	}

	history := h.journal.History(id, limit)
	if history == nil {
		history = []inventory.MovementRecord{}
	}
	h.sendSuccess(w, history)
}

// Statistics returns aggregate catalog metrics
// 集計統計を返す
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	h.sendSuccess(w, h.ops.Statistics())
}

// Report returns the stock report table
// 在庫レポートを返す
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	h.sendSuccess(w, h.ops.ReportTable())
}

// Categories returns the per-category breakdown
// カテゴリ別集計を返す
func (h *Handlers) Categories(w http.ResponseWriter, r *http.Request) {
	h.sendSuccess(w, h.ops.CategoryBreakdown())
}

// Alerts returns current low stock alerts
// 低在庫アラートを返す
func (h *Handlers) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.ops.Alerts()
	if alerts == nil {
		alerts = []inventory.StockAlert{}
	}
	h.sendSuccess(w, alerts)
}

// ABCClassification returns the ABC class of every product
// ABC分析結果を返す
func (h *Handlers) ABCClassification(w http.ResponseWriter, r *http.Request) {
	h.sendSuccess(w, h.ops.ABCClassification())
}

// Matrix returns the numeric snapshot with its column names
// 数値スナップショットを返す
func (h *Handlers) Matrix(w http.ResponseWriter, r *http.Request) {
	h.sendSuccess(w, map[string]interface{}{
		"columns": []string{"id", "unit_price", "current_stock", "min_stock", "max_stock"},
		"rows":    h.catalog.SnapshotMatrix(),
	})
}

// Import handles row imports. A text/csv body is read with the default
// mapping; otherwise the body is an ImportRequest.
// 行データ取り込みリクエストを処理
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
		rows, err := exchange.ReadCSV(r.Body)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Rows = rows
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	if len(req.Mapping) == 0 {
		req.Mapping = exchange.DefaultMapping()
	}
	if err := req.Mapping.Validate(); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.sendSuccess(w, h.importer.Import(req.Rows, req.Mapping))
}

// Export returns every product as rows, or as CSV with ?format=csv
// 全商品をエクスポート
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	rows := exchange.Export(h.catalog)

	if r.URL.Query().Get("format") != "csv" {
		h.sendSuccess(w, rows)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="inventory_%s.csv"`, time.Now().Format("20060102_150405")))
	w.WriteHeader(http.StatusOK)
	if err := exchange.WriteCSV(w, rows, exchange.DefaultColumns()); err != nil {
		h.logger.Error("CSV出力に失敗しました", zap.Error(err))
	}
}

// ヘルパーメソッド

func (h *Handlers) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "無効な商品IDです")
		return 0, false
	}
	return id, true
}

// statusFor maps domain errors to HTTP status codes
// ドメインエラーをHTTPステータスに変換
func statusFor(err error) int {
	switch {
	case errors.Is(err, inventory.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrDuplicateProduct):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrCapacityExceeded),
		errors.Is(err, inventory.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	case errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrImmutableID),
		inventory.IsValidationError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) sendDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("リクエスト処理に失敗しました", zap.Error(err))
	}
	h.sendError(w, status, err.Error())
}

// sendSuccess sends a successful API response
// 成功APIレスポンスを送信
func (h *Handlers) sendSuccess(w http.ResponseWriter, data interface{}) {
	h.sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error API response
// エラーAPIレスポンスを送信
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

func (h *Handlers) sendJSON(w http.ResponseWriter, statusCode int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("レスポンス送信に失敗しました", zap.Error(err))
	}
}
