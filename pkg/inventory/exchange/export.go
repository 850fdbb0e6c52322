package exchange

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"

	"github.com/nemonet1337/zaiBinStock/pkg/inventory"
)

// ProductReader is the read side of a catalog needed for export
type ProductReader interface {
	Products() []inventory.Product
}

// Export projects every product onto the default columns. Absent
// identifiers are written as "N/D" so the rows re-import unchanged.
// 全商品を既定の列名で出力
func Export(catalog ProductReader) []Row {
	products := catalog.Products()
	rows := make([]Row, 0, len(products))
	for _, p := range products {
		rows = append(rows, Row{
			defaultColumns[FieldID]:           p.ID,
			defaultColumns[FieldItemNumber]:   p.ItemNumber.String(),
			defaultColumns[FieldUPCCode]:      p.UPCCode.String(),
			defaultColumns[FieldBinLocation]:  p.BinLocation.String(),
			defaultColumns[FieldName]:         p.Name,
			defaultColumns[FieldUnitPrice]:    p.UnitPrice,
			defaultColumns[FieldCurrentStock]: p.CurrentStock,
			defaultColumns[FieldMinStock]:     p.MinStock,
			defaultColumns[FieldMaxStock]:     p.MaxStock,
			defaultColumns[FieldCategory]:     p.Category,
		})
	}
	return rows
}

// ReadCSV reads rows keyed by the header line
// ヘッダー行を列名としてCSVを読み込む
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSV読み込みに失敗しました: %w", err)
	}
	if len(records) == 0 {
		return []Row{}, nil
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes rows with the given column order and a header line
// 列順を指定してCSVを書き出す
func WriteCSV(w io.Writer, rows []Row, columns []string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("CSV書き込みに失敗しました: %w", err)
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = cast.ToString(row[col])
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("CSV書き込みに失敗しました: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
