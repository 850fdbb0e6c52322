package inventory

import "fmt"

// Default values applied by NewProduct
// NewProductの既定値
const (
	DefaultMinStock int64 = 10
	DefaultMaxStock int64 = 100
	DefaultCategory       = "General"
)

// Product is the stock record of one item at one bin location.
// CurrentStock counts units at this bin only; the same logical item may
// have one Product per bin.
// 1つのBINにおける1商品の在庫記録
type Product struct {
	ID           int64   `json:"id"`            // 商品ID（カタログ内で一意）
	ItemNumber   Code    `json:"item_number"`   // 商品番号（通常6桁）
	UPCCode      Code    `json:"upc_code"`      // UPCコード
	BinLocation  Code    `json:"bin_location"`  // 倉庫内のBIN
	Name         string  `json:"name"`          // 商品名
	UnitPrice    float64 `json:"unit_price"`    // 単価
	CurrentStock int64   `json:"current_stock"` // 現在在庫（このBIN）
	MinStock     int64   `json:"min_stock"`     // 最小在庫（アラート閾値）
	MaxStock     int64   `json:"max_stock"`     // 最大在庫（収容量）
	Category     string  `json:"category"`      // カテゴリ
}

// ProductOption customises NewProduct
type ProductOption func(*Product)

// WithCurrentStock sets the initial stock
func WithCurrentStock(current int64) ProductOption {
	return func(p *Product) { p.CurrentStock = current }
}

// WithStockLimits sets the minimum and maximum stock
func WithStockLimits(minStock, maxStock int64) ProductOption {
	return func(p *Product) {
		p.MinStock = minStock
		p.MaxStock = maxStock
	}
}

// WithStock sets current, minimum and maximum stock at once
func WithStock(current, minStock, maxStock int64) ProductOption {
	return func(p *Product) {
		p.CurrentStock = current
		p.MinStock = minStock
		p.MaxStock = maxStock
	}
}

// WithCategory sets the category
func WithCategory(category string) ProductOption {
	return func(p *Product) { p.Category = category }
}

// WithItemNumber sets the item number
func WithItemNumber(item Code) ProductOption {
	return func(p *Product) { p.ItemNumber = item }
}

// WithUPCCode sets the UPC code
func WithUPCCode(upc Code) ProductOption {
	return func(p *Product) { p.UPCCode = upc }
}

// WithBinLocation sets the bin location
func WithBinLocation(bin Code) ProductOption {
	return func(p *Product) { p.BinLocation = bin }
}

// NewProduct creates a validated product
// バリデーション済みの新しい商品を作成
func NewProduct(id int64, name string, unitPrice float64, opts ...ProductOption) (*Product, error) {
	p := &Product{
		ID:        id,
		Name:      name,
		UnitPrice: unitPrice,
		MinStock:  DefaultMinStock,
		MaxStock:  DefaultMaxStock,
		Category:  DefaultCategory,
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate re-checks every invariant of the product
func (p *Product) Validate() error {
	return ValidateProduct(p)
}

// NeedsRestock reports whether stock is below the minimum
// 在庫が最小在庫を下回っているか
func (p Product) NeedsRestock() bool {
	return p.CurrentStock < p.MinStock
}

// AvailableSpace returns how many more units fit at this bin
// 追加で保管可能な数量
func (p Product) AvailableSpace() int64 {
	return max(0, p.MaxStock-p.CurrentStock)
}

// InventoryValue returns unit price times current stock
// 在庫金額（単価×現在在庫）
func (p Product) InventoryValue() float64 {
	return p.UnitPrice * float64(p.CurrentStock)
}

// LogicalKey groups records of the same item across bins: item number,
// then UPC code, then a synthetic per-record key.
func (p Product) LogicalKey() string {
	switch {
	case p.ItemNumber.Defined():
		return string(p.ItemNumber)
	case p.UPCCode.Defined():
		return string(p.UPCCode)
	default:
		return fmt.Sprintf("ID_%d", p.ID)
	}
}

// Vector returns the numeric row [id, price, stock, min, max]
func (p Product) Vector() MatrixRow {
	return MatrixRow{
		float64(p.ID),
		p.UnitPrice,
		float64(p.CurrentStock),
		float64(p.MinStock),
		float64(p.MaxStock),
	}
}

func (p Product) tableRow() TableRow {
	return TableRow{
		ID:             p.ID,
		ItemNumber:     p.ItemNumber.String(),
		UPCCode:        p.UPCCode.String(),
		BinLocation:    p.BinLocation.String(),
		Name:           p.Name,
		UnitPrice:      p.UnitPrice,
		CurrentStock:   p.CurrentStock,
		MinStock:       p.MinStock,
		MaxStock:       p.MaxStock,
		Category:       p.Category,
		InventoryValue: p.InventoryValue(),
	}
}

func (p Product) String() string {
	status := "OK"
	if p.NeedsRestock() {
		status = "LOW STOCK"
	}
	return fmt.Sprintf("%s (ID: %d, BIN: %s) stock %d/%d [%s]",
		p.Name, p.ID, p.BinLocation, p.CurrentStock, p.MaxStock, status)
}
