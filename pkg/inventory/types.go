// Package inventory provides the bin-level inventory model, its cached
// snapshot and the aggregate operations computed from it.
package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NotDefined is how an absent identifier is rendered in tables and exports
// 未設定の識別子の表示文字列
const NotDefined = "N/D"

// Code is an optional external identifier (item number, UPC code, bin).
// The zero value means "not set" and never matches anything.
// 任意の外部識別子。空値は未設定を意味し、何とも一致しない
type Code string

// ParseCode converts raw input to a Code; blank and "N/D" become absent
// 入力文字列をCodeに変換（空文字と"N/D"は未設定）
func ParseCode(s string) Code {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, NotDefined) {
		return ""
	}
	return Code(s)
}

// Defined reports whether the identifier is set
func (c Code) Defined() bool {
	return c != ""
}

// Matches is true only when both codes are defined and equal
// 両方が設定済みかつ等しい場合のみtrue
func (c Code) Matches(other Code) bool {
	return c.Defined() && other.Defined() && c == other
}

func (c Code) String() string {
	if !c.Defined() {
		return NotDefined
	}
	return string(c)
}

// Matrix column indexes
// 数値スナップショットの列インデックス
const (
	ColID = iota
	ColPrice
	ColStock
	ColMin
	ColMax
	matrixWidth
)

// MatrixRow is one product as [id, unit_price, current_stock, min_stock, max_stock]
type MatrixRow [matrixWidth]float64

// Matrix is the (n,5) numeric snapshot of the catalog
// カタログの数値スナップショット (n×5)
type Matrix []MatrixRow

// Column extracts one column, aligned with row order
// 指定列を行順に抽出
func (m Matrix) Column(col int) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		out[i] = row[col]
	}
	return out
}

// Rows returns the number of rows
func (m Matrix) Rows() int {
	return len(m)
}

// TableColumns is the full column schema of the attribute table
// 属性テーブルの列定義（空の場合も常に定義される）
var TableColumns = []string{
	"id", "item_number", "upc_code", "bin_location", "name", "unit_price",
	"current_stock", "min_stock", "max_stock", "category", "inventory_value",
}

// TableRow is one row of the full attribute snapshot
type TableRow struct {
	ID             int64   `json:"id"`
	ItemNumber     string  `json:"item_number"`
	UPCCode        string  `json:"upc_code"`
	BinLocation    string  `json:"bin_location"`
	Name           string  `json:"name"`
	UnitPrice      float64 `json:"unit_price"`
	CurrentStock   int64   `json:"current_stock"`
	MinStock       int64   `json:"min_stock"`
	MaxStock       int64   `json:"max_stock"`
	Category       string  `json:"category"`
	InventoryValue float64 `json:"inventory_value"`
}

// Table is the row-oriented attribute snapshot
// 行指向の属性スナップショット
type Table struct {
	Columns []string   `json:"columns"`
	Rows    []TableRow `json:"rows"`
}

// Len returns the number of rows
func (t Table) Len() int {
	return len(t.Rows)
}

// UpsertOutcome is the tri-state result of UpsertByItemAndBin
// UpsertByItemAndBinの結果（三状態）
type UpsertOutcome int

const (
	UpsertFailed        UpsertOutcome = iota // 追加失敗
	UpsertInserted                           // 新規追加
	UpsertFoundExisting                      // 既存商品を更新用に返却
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertInserted:
		return "inserted"
	case UpsertFoundExisting:
		return "found_existing"
	default:
		return "failed"
	}
}

// ItemGroup is every bin record of one logical item
// 論理商品ごとの全BIN記録
type ItemGroup struct {
	Key      string    `json:"key"`
	Products []Product `json:"products"`
}

// TotalStock sums current stock across the group's bins
func (g ItemGroup) TotalStock() int64 {
	var total int64
	for _, p := range g.Products {
		total += p.CurrentStock
	}
	return total
}

// Bins maps bin location to stock for the group
func (g ItemGroup) Bins() map[string]int64 {
	bins := make(map[string]int64, len(g.Products))
	for _, p := range g.Products {
		bins[p.BinLocation.String()] = p.CurrentStock
	}
	return bins
}

// MovementType defines the direction of a stock movement
// 在庫移動のタイプを定義
type MovementType string

const (
	MovementTypeEntry MovementType = "entry" // 入庫
	MovementTypeExit  MovementType = "exit"  // 出庫
)

// Movement is one requested (product, quantity) pair of a batch
// バッチ内の単一の移動要求
type Movement struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// BatchResult summarises a batch of independent movements
// バッチ処理結果（各要求は独立して成功/失敗する）
type BatchResult struct {
	ID           string       `json:"id"`            // バッチID
	Type         MovementType `json:"type"`          // 移動タイプ
	SuccessCount int          `json:"success_count"` // 成功数
	FailureCount int          `json:"failure_count"` // 失敗数
	Messages     []string     `json:"messages"`      // 入力順のメッセージ
}

// Statistics holds aggregate catalog metrics
// カタログ集計統計
type Statistics struct {
	TotalProducts int     `json:"total_products"`
	TotalUnits    int64   `json:"total_units"`
	TotalValue    float64 `json:"total_value"`
	AlertCount    int     `json:"alert_count"`
	AlertPercent  float64 `json:"alert_percent"`
	MeanStock     float64 `json:"mean_stock"`
	MeanPrice     float64 `json:"mean_price"`
	MeanValue     float64 `json:"mean_value"`
}

// ReportRow is a TableRow augmented with derived stock indicators
// 派生指標付きのレポート行
type ReportRow struct {
	TableRow
	Alert            bool    `json:"alert"`
	AvailableSpace   int64   `json:"available_space"`
	ReorderQuantity  int64   `json:"reorder_quantity"`
	OccupancyPercent float64 `json:"occupancy_percent"`
}

// CategorySummary aggregates products of one category
// カテゴリ別集計
type CategorySummary struct {
	Category     string  `json:"category"`
	ProductCount int     `json:"product_count"`
	TotalUnits   int64   `json:"total_units"`
	TotalValue   float64 `json:"total_value"`
	MeanPrice    float64 `json:"mean_price"`
}

// AlertType defines types of inventory alerts
// 在庫アラートのタイプを定義
type AlertType string

const (
	AlertTypeLowStock AlertType = "low_stock" // 低在庫
)

// StockAlert represents a low stock condition of one product
// 低在庫状態を表現
type StockAlert struct {
	Type            AlertType `json:"type"`
	ProductID       int64     `json:"product_id"`
	Name            string    `json:"name"`
	BinLocation     string    `json:"bin_location"`
	CurrentQty      int64     `json:"current_qty"`
	Threshold       int64     `json:"threshold"`
	ReorderQuantity int64     `json:"reorder_quantity"`
	Message         string    `json:"message"`
}

// StockChangedEvent represents a stock level change
// 在庫レベル変更イベントを表現
type StockChangedEvent struct {
	MovementID  string       `json:"movement_id"`
	ProductID   int64        `json:"product_id"`
	BinLocation string       `json:"bin_location"`
	Type        MovementType `json:"type"`
	Quantity    int64        `json:"quantity"`
	OldQuantity int64        `json:"old_quantity"`
	NewQuantity int64        `json:"new_quantity"`
	Timestamp   time.Time    `json:"timestamp"`
}

// LowStockAlertEvent represents a low stock alert
// 低在庫アラートイベントを表現
type LowStockAlertEvent struct {
	ProductID   int64     `json:"product_id"`
	BinLocation string    `json:"bin_location"`
	CurrentQty  int64     `json:"current_qty"`
	Threshold   int64     `json:"threshold"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewMovementID generates a new movement ID
// 新しい移動IDを生成
func NewMovementID() string {
	return uuid.New().String()
}

// NewBatchID generates a new batch operation ID
// 新しいバッチ操作IDを生成
func NewBatchID() string {
	return uuid.New().String()
}
