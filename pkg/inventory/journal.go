package inventory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultJournalCapacity is used when NewJournal gets a non-positive capacity
const DefaultJournalCapacity = 1000

// MovementRecord is one recorded stock movement
// 記録済みの在庫移動
type MovementRecord struct {
	ID          string       `json:"id"`
	ProductID   int64        `json:"product_id"`
	BinLocation string       `json:"bin_location"`
	Type        MovementType `json:"type"`
	Quantity    int64        `json:"quantity"`
	OldQuantity int64        `json:"old_quantity"`
	NewQuantity int64        `json:"new_quantity"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Journal keeps the most recent movements and low stock alerts in memory.
// It is an EventPublisher so it can be plugged into Operations directly.
// 直近の在庫移動と低在庫アラートをメモリ上に保持
type Journal struct {
	mu        sync.RWMutex
	capacity  int
	movements []MovementRecord
	alerts    []LowStockAlertEvent
	logger    *zap.Logger
}

var _ EventPublisher = (*Journal)(nil)

// NewJournal creates a new journal bounded to capacity entries
// 新しい移動履歴を作成
func NewJournal(capacity int, logger *zap.Logger) *Journal {
	if capacity <= 0 {
		capacity = DefaultJournalCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		capacity: capacity,
		logger:   logger,
	}
}

// PublishStockChanged records a movement
func (j *Journal) PublishStockChanged(ctx context.Context, event StockChangedEvent) error {
	record := MovementRecord{
		ID:          event.MovementID,
		ProductID:   event.ProductID,
		BinLocation: event.BinLocation,
		Type:        event.Type,
		Quantity:    event.Quantity,
		OldQuantity: event.OldQuantity,
		NewQuantity: event.NewQuantity,
		CreatedAt:   event.Timestamp,
	}
	if record.ID == "" {
		record.ID = NewMovementID()
	}

	j.mu.Lock()
	j.movements = appendBounded(j.movements, record, j.capacity)
	j.mu.Unlock()

	j.logger.Debug("在庫移動を記録しました",
		zap.String("movement_id", record.ID),
		zap.Int64("product_id", record.ProductID))
	return nil
}

// PublishLowStockAlert records an alert
func (j *Journal) PublishLowStockAlert(ctx context.Context, event LowStockAlertEvent) error {
	j.mu.Lock()
	j.alerts = appendBounded(j.alerts, event, j.capacity)
	j.mu.Unlock()
	return nil
}

// History returns the movements of a product, newest first.
// productID 0 selects every product; limit <= 0 means no limit.
// 商品の移動履歴を新しい順に取得
func (j *Journal) History(productID int64, limit int) []MovementRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []MovementRecord
	for i := len(j.movements) - 1; i >= 0; i-- {
		r := j.movements[i]
		if productID != 0 && r.ProductID != productID {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// RecentAlerts returns recorded low stock alerts, newest first
func (j *Journal) RecentAlerts(limit int) []LowStockAlertEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []LowStockAlertEvent
	for i := len(j.alerts) - 1; i >= 0; i-- {
		out = append(out, j.alerts[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Len returns the number of retained movements
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.movements)
}

func appendBounded[T any](s []T, v T, capacity int) []T {
	s = append(s, v)
	if len(s) > capacity {
		s = s[len(s)-capacity:]
	}
	return s
}
