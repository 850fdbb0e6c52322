// Package exchange converts between loosely typed spreadsheet rows and
// catalog products.
package exchange

import (
	"fmt"
	"strings"
)

// Row is one loosely typed source record, column name → value
// 列名→値の緩い型付け行
type Row map[string]any

// Field names a product attribute that can be mapped to a column
// 商品属性名
type Field string

const (
	FieldID           Field = "id"
	FieldItemNumber   Field = "item_number"
	FieldUPCCode      Field = "upc_code"
	FieldBinLocation  Field = "bin_location"
	FieldName         Field = "name"
	FieldUnitPrice    Field = "unit_price"
	FieldCurrentStock Field = "current_stock"
	FieldMinStock     Field = "min_stock"
	FieldMaxStock     Field = "max_stock"
	FieldCategory     Field = "category"
)

// Fields lists every mappable attribute in export order
var Fields = []Field{
	FieldID, FieldItemNumber, FieldUPCCode, FieldBinLocation, FieldName,
	FieldUnitPrice, FieldCurrentStock, FieldMinStock, FieldMaxStock, FieldCategory,
}

// ColumnMapping maps a product attribute to its source column name.
// Attributes missing from the mapping are not imported.
// 商品属性→元データの列名
type ColumnMapping map[Field]string

var defaultColumns = map[Field]string{
	FieldID:           "ID",
	FieldItemNumber:   "Item_Number",
	FieldUPCCode:      "UPC_Code",
	FieldBinLocation:  "Bin_Location",
	FieldName:         "Name",
	FieldUnitPrice:    "Price",
	FieldCurrentStock: "Current_Stock",
	FieldMinStock:     "Min_Stock",
	FieldMaxStock:     "Max_Stock",
	FieldCategory:     "Category",
}

// DefaultMapping maps every attribute to the column written by Export
// Exportの列名を使う既定マッピング
func DefaultMapping() ColumnMapping {
	m := make(ColumnMapping, len(defaultColumns))
	for f, col := range defaultColumns {
		m[f] = col
	}
	return m
}

// DefaultColumns returns the export column names in export order
func DefaultColumns() []string {
	cols := make([]string, len(Fields))
	for i, f := range Fields {
		cols[i] = defaultColumns[f]
	}
	return cols
}

// Column returns the mapped column of f; ok is false when f is unmapped
func (m ColumnMapping) Column(f Field) (string, bool) {
	col, ok := m[f]
	if !ok || strings.TrimSpace(col) == "" {
		return "", false
	}
	return col, true
}

// Validate rejects unknown attribute names
// マッピングをバリデーション
func (m ColumnMapping) Validate() error {
	for f := range m {
		if _, ok := defaultColumns[f]; !ok {
			return fmt.Errorf("未知の属性です: %s", f)
		}
	}
	return nil
}
