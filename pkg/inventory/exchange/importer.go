package exchange

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiBinStock/pkg/inventory"
)

// DefaultErrorLimit bounds the row errors and warnings kept in a report
const DefaultErrorLimit = 50

// RowError is a row that could not be imported
// 取り込めなかった行
type RowError struct {
	Row     int    `json:"row"` // 1始まりのデータ行番号
	Message string `json:"message"`
}

// FieldWarning is a value that could not be coerced and was replaced
// 変換できずに既定値で置き換えた値
type FieldWarning struct {
	Row     int    `json:"row"`
	Field   Field  `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// ImportReport summarises one import run
// 取り込み結果
type ImportReport struct {
	Inserted           int            `json:"inserted"`
	Updated            int            `json:"updated"`
	Failed             int            `json:"failed"`
	Errors             []RowError     `json:"errors"`
	Warnings           []FieldWarning `json:"warnings"`
	SuppressedErrors   int            `json:"suppressed_errors"`
	SuppressedWarnings int            `json:"suppressed_warnings"`
}

// Total returns the number of rows processed
func (r ImportReport) Total() int {
	return r.Inserted + r.Updated + r.Failed
}

// Importer loads rows into a catalog
// 行データをカタログへ取り込む
type Importer struct {
	catalog    *inventory.Catalog
	logger     *zap.Logger
	ErrorLimit int // 保持するエラー・警告の上限
}

// NewImporter creates a new importer
// 新しいインポーターを作成
func NewImporter(catalog *inventory.Catalog, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		catalog:    catalog,
		logger:     logger,
		ErrorLimit: DefaultErrorLimit,
	}
}

// rowValues holds the coerced values of one row. A field is present only
// when it is mapped and its cell is not blank.
type rowValues struct {
	present map[Field]bool
	bad     map[Field]bool // 変換失敗（既定値を使用）

	id                        int64
	item, upc, bin            inventory.Code
	name, category            string
	price                     float64
	stock, minStock, maxStock int64
}

func (v *rowValues) has(f Field) bool {
	return v.present[f] && !v.bad[f]
}

// Import applies every row to the catalog. Rows matching an existing
// (item number or UPC, bin) record update only the mapped attributes;
// other rows become new products. A failing row never stops the import.
// 全行をカタログに取り込む（失敗行は記録して継続）
func (im *Importer) Import(rows []Row, mapping ColumnMapping) ImportReport {
	report := ImportReport{
		Errors:   []RowError{},
		Warnings: []FieldWarning{},
	}

	for i, row := range rows {
		rowNum := i + 1
		values := im.parseRow(rowNum, row, mapping, &report)

		if err := im.applyRow(values, &report); err != nil {
			report.Failed++
			im.addError(&report, RowError{Row: rowNum, Message: err.Error()})
			im.logger.Warn("行の取り込みに失敗しました",
				zap.Int("row", rowNum),
				zap.Error(err))
		}
	}

	im.logger.Info("取り込み完了",
		zap.Int("inserted", report.Inserted),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
		zap.Int("warnings", len(report.Warnings)+report.SuppressedWarnings))

	return report
}

func (im *Importer) limit() int {
	if im.ErrorLimit <= 0 {
		return DefaultErrorLimit
	}
	return im.ErrorLimit
}

func (im *Importer) addError(report *ImportReport, e RowError) {
	if len(report.Errors) >= im.limit() {
		report.SuppressedErrors++
		return
	}
	report.Errors = append(report.Errors, e)
}

func (im *Importer) addWarning(report *ImportReport, w FieldWarning) {
	if len(report.Warnings) >= im.limit() {
		report.SuppressedWarnings++
		return
	}
	report.Warnings = append(report.Warnings, w)
}

// parseRow coerces every mapped field independently
func (im *Importer) parseRow(rowNum int, row Row, mapping ColumnMapping, report *ImportReport) *rowValues {
	v := &rowValues{
		present: make(map[Field]bool),
		bad:     make(map[Field]bool),
	}

	warn := func(f Field, raw any, err error) {
		v.bad[f] = true
		im.addWarning(report, FieldWarning{
			Row:     rowNum,
			Field:   f,
			Value:   fmt.Sprint(raw),
			Message: err.Error(),
		})
	}

	for _, f := range Fields {
		col, ok := mapping.Column(f)
		if !ok {
			continue
		}
		raw, ok := row[col]
		if !ok || isBlank(raw) {
			continue
		}
		v.present[f] = true

		var err error
		switch f {
		case FieldID:
			v.id, err = toInt64(raw)
			if err == nil && v.id <= 0 {
				err = fmt.Errorf("IDは正の値である必要があります")
			}
		case FieldItemNumber:
			v.item, err = toCode(raw)
		case FieldUPCCode:
			v.upc, err = toCode(raw)
		case FieldBinLocation:
			v.bin, err = toCode(raw)
		case FieldName:
			v.name, err = cast.ToStringE(raw)
			v.name = strings.TrimSpace(v.name)
		case FieldCategory:
			v.category, err = cast.ToStringE(raw)
			v.category = strings.TrimSpace(v.category)
		case FieldUnitPrice:
			v.price, err = toFloat64(raw)
		case FieldCurrentStock:
			v.stock, err = toInt64(raw)
		case FieldMinStock:
			v.minStock, err = toInt64(raw)
		case FieldMaxStock:
			v.maxStock, err = toInt64(raw)
		}
		if err != nil {
			warn(f, raw, err)
		}
	}

	return v
}

func (im *Importer) applyRow(v *rowValues, report *ImportReport) error {
	if existing, ok := im.findExisting(v); ok {
		if _, err := im.catalog.Update(existing.ID, func(p *inventory.Product) error {
			applyMapped(p, v)
			return nil
		}); err != nil {
			return err
		}
		report.Updated++
		return nil
	}

	p, err := im.newProduct(v)
	if err != nil {
		return err
	}
	if err := im.catalog.Add(p); err != nil {
		return err
	}
	report.Inserted++
	return nil
}

// findExisting resolves identity through item+bin, then UPC+bin.
// Rows without a bin are never matched.
func (im *Importer) findExisting(v *rowValues) (inventory.Product, bool) {
	if !v.has(FieldBinLocation) || !v.bin.Defined() {
		return inventory.Product{}, false
	}
	if v.has(FieldItemNumber) {
		if p, ok := im.catalog.FindByItemNumberAndBin(v.item, v.bin); ok {
			return p, true
		}
	}
	if v.has(FieldUPCCode) {
		if p, ok := im.catalog.FindByUPCAndBin(v.upc, v.bin); ok {
			return p, true
		}
	}
	return inventory.Product{}, false
}

// applyMapped overwrites the attributes present in the row. The ID is
// never changed on update.
func applyMapped(p *inventory.Product, v *rowValues) {
	if v.has(FieldItemNumber) {
		p.ItemNumber = v.item
	}
	if v.has(FieldUPCCode) {
		p.UPCCode = v.upc
	}
	if v.has(FieldName) && v.name != "" {
		p.Name = v.name
	}
	if v.has(FieldUnitPrice) {
		p.UnitPrice = v.price
	}
	if v.has(FieldCurrentStock) {
		p.CurrentStock = v.stock
	}
	if v.has(FieldMinStock) {
		p.MinStock = v.minStock
	}
	if v.has(FieldMaxStock) {
		p.MaxStock = v.maxStock
	}
	if v.has(FieldCategory) && v.category != "" {
		p.Category = v.category
	}
}

func (im *Importer) newProduct(v *rowValues) (*inventory.Product, error) {
	id := v.id
	if !v.has(FieldID) || im.catalog.Contains(id) {
		id = im.catalog.NextID()
	}

	name := fmt.Sprintf("Product %d", id)
	if v.has(FieldName) && v.name != "" {
		name = v.name
	}

	// 変換失敗時の既定値: 単価0, 在庫0, 最小10, 最大100
	var price float64
	if v.has(FieldUnitPrice) {
		price = v.price
	}
	var stock int64
	if v.has(FieldCurrentStock) {
		stock = v.stock
	}
	minStock := inventory.DefaultMinStock
	if v.has(FieldMinStock) {
		minStock = v.minStock
	}
	maxStock := inventory.DefaultMaxStock
	if v.has(FieldMaxStock) {
		maxStock = v.maxStock
	}

	opts := []inventory.ProductOption{
		inventory.WithStock(stock, minStock, maxStock),
		inventory.WithItemNumber(v.item),
		inventory.WithUPCCode(v.upc),
		inventory.WithBinLocation(v.bin),
	}
	if v.has(FieldCategory) && v.category != "" {
		opts = append(opts, inventory.WithCategory(v.category))
	}

	return inventory.NewProduct(id, name, price, opts...)
}

func isBlank(raw any) bool {
	if raw == nil {
		return true
	}
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func toCode(raw any) (inventory.Code, error) {
	s, err := cast.ToStringE(raw)
	if err != nil {
		return "", err
	}
	return inventory.ParseCode(s), nil
}

// toInt64 accepts integers and base-10 integral text, truncating decimals
// such as "12.0" that spreadsheets commonly produce. Text is never read
// with a base prefix, so "010" is 10.
func toInt64(raw any) (int64, error) {
	s, ok := raw.(string)
	if !ok {
		if n, err := cast.ToInt64E(raw); err == nil {
			return n, nil
		}
		f, err := toFloat64(raw)
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	}

	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// toFloat64 coerces raw to a finite number
func toFloat64(raw any) (float64, error) {
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("有限の数値ではありません: %v", raw)
	}
	return f, nil
}
