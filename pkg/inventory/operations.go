package inventory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Operations computes aggregates over a Catalog snapshot and records
// stock entries and exits through the Catalog.
// カタログのスナップショットに対する集計と入出庫処理
type Operations struct {
	catalog   *Catalog       // 対象カタログ
	publisher EventPublisher // イベント発行者
	logger    *zap.Logger    // ログ
}

// NewOperations creates a new operations engine
// 新しい集計・入出庫エンジンを作成
func NewOperations(catalog *Catalog, publisher EventPublisher, logger *zap.Logger) *Operations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Operations{
		catalog:   catalog,
		publisher: publisher,
		logger:    logger,
	}
}

// Catalog returns the catalog the engine works on
func (o *Operations) Catalog() *Catalog {
	return o.catalog
}

// StockVector returns current stock per row
// 行順の現在在庫
func (o *Operations) StockVector() []float64 {
	return o.catalog.SnapshotMatrix().Column(ColStock)
}

// PriceVector returns unit price per row
func (o *Operations) PriceVector() []float64 {
	return o.catalog.SnapshotMatrix().Column(ColPrice)
}

// MinVector returns minimum stock per row
func (o *Operations) MinVector() []float64 {
	return o.catalog.SnapshotMatrix().Column(ColMin)
}

// MaxVector returns maximum stock per row
func (o *Operations) MaxVector() []float64 {
	return o.catalog.SnapshotMatrix().Column(ColMax)
}

// TotalValue returns Σ price × stock
// 在庫総額
func (o *Operations) TotalValue() float64 {
	var total float64
	for _, row := range o.catalog.SnapshotMatrix() {
		total += row[ColPrice] * row[ColStock]
	}
	return total
}

// ValueVector returns price × stock per row
func (o *Operations) ValueVector() []float64 {
	return valueVector(o.catalog.SnapshotMatrix())
}

func valueVector(m Matrix) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		out[i] = row[ColPrice] * row[ColStock]
	}
	return out
}

// LowStockMask marks rows whose stock is below the minimum
// 低在庫マスク
func (o *Operations) LowStockMask() []bool {
	return lowStockMask(o.catalog.SnapshotMatrix())
}

func lowStockMask(m Matrix) []bool {
	out := make([]bool, len(m))
	for i, row := range m {
		out[i] = row[ColStock] < row[ColMin]
	}
	return out
}

// ProductsNeedingRestock returns low stock products in catalog order
// 補充が必要な商品
func (o *Operations) ProductsNeedingRestock() []Product {
	products, m := o.catalog.snapshot()
	mask := lowStockMask(m)

	var out []Product
	for i, p := range products {
		if mask[i] {
			out = append(out, p)
		}
	}
	return out
}

// AvailableSpaceVector returns max(0, max - stock) per row
func (o *Operations) AvailableSpaceVector() []float64 {
	m := o.catalog.SnapshotMatrix()
	out := make([]float64, len(m))
	for i, row := range m {
		out[i] = max(0, row[ColMax]-row[ColStock])
	}
	return out
}

// ReorderQuantityVector suggests restocking low rows to the midpoint of
// min and max; rows that are not low get 0.
// 推奨発注数量（最小・最大の中間値まで補充）
func (o *Operations) ReorderQuantityVector() []int64 {
	m := o.catalog.SnapshotMatrix()
	out := make([]int64, len(m))
	for i, row := range m {
		out[i] = reorderQuantity(int64(row[ColStock]), int64(row[ColMin]), int64(row[ColMax]))
	}
	return out
}

func reorderQuantity(stock, minStock, maxStock int64) int64 {
	if stock >= minStock {
		return 0
	}
	// (min+max)/2 は非負なので整数除算で切り捨て
	return max(0, (minStock+maxStock)/2-stock)
}

// RecordEntry adds qty units to a product. The stock never exceeds its
// maximum; on failure the product is unchanged.
// 入庫を記録
func (o *Operations) RecordEntry(ctx context.Context, id, qty int64) (string, error) {
	return o.recordMovement(ctx, MovementTypeEntry, id, qty)
}

// RecordExit removes qty units from a product. The stock never goes
// negative; on failure the product is unchanged.
// 出庫を記録
func (o *Operations) RecordExit(ctx context.Context, id, qty int64) (string, error) {
	return o.recordMovement(ctx, MovementTypeExit, id, qty)
}

func (o *Operations) recordMovement(ctx context.Context, kind MovementType, id, qty int64) (string, error) {
	if qty <= 0 {
		err := movementError(ErrInvalidQuantity, "数量: %d", qty)
		o.logger.Warn("在庫移動を拒否しました",
			zap.String("type", string(kind)),
			zap.Int64("product_id", id),
			zap.Int64("quantity", qty),
			zap.Error(err))
		return "", err
	}

	var oldQty int64
	updated, err := o.catalog.Update(id, func(p *Product) error {
		oldQty = p.CurrentStock
		switch kind {
		case MovementTypeEntry:
			if space := p.AvailableSpace(); qty > space {
				return movementError(ErrCapacityExceeded,
					"%s: 空き %d, 要求 %d", p.Name, space, qty)
			}
			p.CurrentStock += qty
		case MovementTypeExit:
			if qty > p.CurrentStock {
				return movementError(ErrInsufficientStock,
					"%s: 在庫 %d, 要求 %d", p.Name, p.CurrentStock, qty)
			}
			p.CurrentStock -= qty
		default:
			return fmt.Errorf("未知の移動タイプ: %s", kind)
		}
		return nil
	})
	if err != nil {
		o.logger.Warn("在庫移動を拒否しました",
			zap.String("type", string(kind)),
			zap.Int64("product_id", id),
			zap.Int64("quantity", qty),
			zap.Error(err))
		return "", err
	}

	movementID := NewMovementID()
	o.publishMovement(ctx, movementID, kind, updated, qty, oldQty)

	o.logger.Info("在庫移動完了",
		zap.String("movement_id", movementID),
		zap.String("type", string(kind)),
		zap.Int64("product_id", id),
		zap.Int64("quantity", qty),
		zap.Int64("new_quantity", updated.CurrentStock))

	if kind == MovementTypeEntry {
		return fmt.Sprintf("入庫完了: %s +%d (現在在庫 %d)", updated.Name, qty, updated.CurrentStock), nil
	}
	return fmt.Sprintf("出庫完了: %s -%d (現在在庫 %d)", updated.Name, qty, updated.CurrentStock), nil
}

func (o *Operations) publishMovement(ctx context.Context, movementID string, kind MovementType, p Product, qty, oldQty int64) {
	if o.publisher == nil {
		return
	}

	now := time.Now()
	event := StockChangedEvent{
		MovementID:  movementID,
		ProductID:   p.ID,
		BinLocation: p.BinLocation.String(),
		Type:        kind,
		Quantity:    qty,
		OldQuantity: oldQty,
		NewQuantity: p.CurrentStock,
		Timestamp:   now,
	}
	if err := o.publisher.PublishStockChanged(ctx, event); err != nil {
		o.logger.Error("イベント発行に失敗しました", zap.Error(err))
	}

	// 出庫で最小在庫を下回った場合のみアラート
	if kind == MovementTypeExit && p.NeedsRestock() {
		alert := LowStockAlertEvent{
			ProductID:   p.ID,
			BinLocation: p.BinLocation.String(),
			CurrentQty:  p.CurrentStock,
			Threshold:   p.MinStock,
			Timestamp:   now,
		}
		if err := o.publisher.PublishLowStockAlert(ctx, alert); err != nil {
			o.logger.Error("低在庫アラート発行に失敗しました", zap.Error(err))
		}
	}
}

// RecordEntriesBatch applies each entry independently
// 入庫を一括処理（各要求は独立）
func (o *Operations) RecordEntriesBatch(ctx context.Context, movements []Movement) BatchResult {
	return o.recordBatch(ctx, MovementTypeEntry, movements)
}

// RecordExitsBatch applies each exit independently
// 出庫を一括処理（各要求は独立）
func (o *Operations) RecordExitsBatch(ctx context.Context, movements []Movement) BatchResult {
	return o.recordBatch(ctx, MovementTypeExit, movements)
}

func (o *Operations) recordBatch(ctx context.Context, kind MovementType, movements []Movement) BatchResult {
	result := BatchResult{
		ID:       NewBatchID(),
		Type:     kind,
		Messages: make([]string, 0, len(movements)),
	}

	for _, mv := range movements {
		msg, err := o.recordMovement(ctx, kind, mv.ProductID, mv.Quantity)
		if err != nil {
			result.FailureCount++
			result.Messages = append(result.Messages, fmt.Sprintf("ID %d: %v", mv.ProductID, err))
			continue
		}
		result.SuccessCount++
		result.Messages = append(result.Messages, fmt.Sprintf("ID %d: %s", mv.ProductID, msg))
	}

	o.logger.Info("バッチ処理完了",
		zap.String("batch_id", result.ID),
		zap.String("type", string(kind)),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", result.FailureCount))

	return result
}
