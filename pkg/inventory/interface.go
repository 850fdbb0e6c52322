package inventory

import (
	"context"
	"errors"
)

// EventPublisher defines interface for publishing inventory events
// 在庫イベント発行のインターフェースを定義
type EventPublisher interface {
	PublishStockChanged(ctx context.Context, event StockChangedEvent) error
	PublishLowStockAlert(ctx context.Context, event LowStockAlertEvent) error
}

// MultiPublisher fans every event out to several publishers.
// 複数の発行者へイベントを配信
type MultiPublisher []EventPublisher

var _ EventPublisher = MultiPublisher(nil)

// NewMultiPublisher drops nil entries
func NewMultiPublisher(publishers ...EventPublisher) MultiPublisher {
	out := make(MultiPublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// PublishStockChanged delivers to every publisher and joins their errors
func (m MultiPublisher) PublishStockChanged(ctx context.Context, event StockChangedEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishStockChanged(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishLowStockAlert delivers to every publisher and joins their errors
func (m MultiPublisher) PublishLowStockAlert(ctx context.Context, event LowStockAlertEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishLowStockAlert(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
