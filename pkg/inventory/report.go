package inventory

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// round2 rounds half away from zero to 2 decimals
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Statistics returns aggregate catalog metrics from one snapshot
// カタログ集計統計を取得
func (o *Operations) Statistics() Statistics {
	m := o.catalog.SnapshotMatrix()
	n := len(m)
	if n == 0 {
		return Statistics{}
	}

	var stats Statistics
	var priceSum float64
	for _, row := range m {
		stats.TotalUnits += int64(row[ColStock])
		stats.TotalValue += row[ColPrice] * row[ColStock]
		priceSum += row[ColPrice]
		if row[ColStock] < row[ColMin] {
			stats.AlertCount++
		}
	}

	stats.TotalProducts = n
	stats.AlertPercent = float64(stats.AlertCount) / float64(n) * 100
	stats.MeanStock = float64(stats.TotalUnits) / float64(n)
	stats.MeanPrice = priceSum / float64(n)
	stats.MeanValue = stats.TotalValue / float64(n)
	return stats
}

// ReportTable returns the attribute table with derived stock indicators
// 派生指標付きの在庫レポート
func (o *Operations) ReportTable() []ReportRow {
	table := o.catalog.SnapshotTable()

	rows := make([]ReportRow, 0, table.Len())
	for _, r := range table.Rows {
		var occupancy float64
		if r.MaxStock > 0 {
			occupancy = round2(float64(r.CurrentStock) / float64(r.MaxStock) * 100)
		}
		rows = append(rows, ReportRow{
			TableRow:         r,
			Alert:            r.CurrentStock < r.MinStock,
			AvailableSpace:   max(0, r.MaxStock-r.CurrentStock),
			ReorderQuantity:  reorderQuantity(r.CurrentStock, r.MinStock, r.MaxStock),
			OccupancyPercent: occupancy,
		})
	}
	return rows
}

// CategoryBreakdown summarises products per category, sorted by name.
// Money values are rounded to 2 decimals.
// カテゴリ別集計
func (o *Operations) CategoryBreakdown() []CategorySummary {
	type acc struct {
		count    int
		units    int64
		value    decimal.Decimal
		priceSum decimal.Decimal
	}

	groups := make(map[string]*acc)
	for _, r := range o.catalog.SnapshotTable().Rows {
		a, ok := groups[r.Category]
		if !ok {
			a = &acc{}
			groups[r.Category] = a
		}
		a.count++
		a.units += r.CurrentStock
		a.value = a.value.Add(decimal.NewFromFloat(r.InventoryValue))
		a.priceSum = a.priceSum.Add(decimal.NewFromFloat(r.UnitPrice))
	}

	out := make([]CategorySummary, 0, len(groups))
	for category, a := range groups {
		mean := a.priceSum.Div(decimal.NewFromInt(int64(a.count)))
		out = append(out, CategorySummary{
			Category:     category,
			ProductCount: a.count,
			TotalUnits:   a.units,
			TotalValue:   a.value.Round(2).InexactFloat64(),
			MeanPrice:    mean.Round(2).InexactFloat64(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Category < out[j].Category
	})
	return out
}

// ABCClassification ranks products by inventory value and classifies them
// with the 80-15-5 rule. A zero total value puts every product in C.
// 在庫金額によるABC分析
func (o *Operations) ABCClassification() map[int64]string {
	type productValue struct {
		id    int64
		value float64
	}

	m := o.catalog.SnapshotMatrix()
	items := make([]productValue, 0, len(m))
	totalValue := 0.0
	for _, row := range m {
		v := row[ColPrice] * row[ColStock]
		items = append(items, productValue{id: int64(row[ColID]), value: v})
		totalValue += v
	}

	classification := make(map[int64]string, len(items))
	if totalValue <= 0 {
		for _, item := range items {
			classification[item.id] = "C"
		}
		return classification
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].value > items[j].value
	})

	// ABC分類（80-15-5の法則）
	cumulativeValue := 0.0
	for _, item := range items {
		cumulativeValue += item.value
		percentage := cumulativeValue / totalValue

		switch {
		case percentage <= 0.8:
			classification[item.id] = "A"
		case percentage <= 0.95:
			classification[item.id] = "B"
		default:
			classification[item.id] = "C"
		}
	}

	return classification
}

// Alerts returns one low stock alert per product below its minimum
// 低在庫アラート一覧
func (o *Operations) Alerts() []StockAlert {
	var alerts []StockAlert
	for _, p := range o.ProductsNeedingRestock() {
		reorder := reorderQuantity(p.CurrentStock, p.MinStock, p.MaxStock)
		alerts = append(alerts, StockAlert{
			Type:            AlertTypeLowStock,
			ProductID:       p.ID,
			Name:            p.Name,
			BinLocation:     p.BinLocation.String(),
			CurrentQty:      p.CurrentStock,
			Threshold:       p.MinStock,
			ReorderQuantity: reorder,
			Message: fmt.Sprintf("%s (BIN %s): 在庫 %d / 最小 %d, 推奨発注 %d",
				p.Name, p.BinLocation, p.CurrentStock, p.MinStock, reorder),
		})
	}
	return alerts
}
