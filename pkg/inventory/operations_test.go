package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockPublisher はテスト用のEventPublisherモック
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishStockChanged(ctx context.Context, event StockChangedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishLowStockAlert(ctx context.Context, event LowStockAlertEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// threeProducts は評価テスト用の3商品カタログ
func threeProducts(t testing.TB) *Catalog {
	t.Helper()
	c := NewCatalog(zap.NewNop())
	require.NoError(t, c.Add(mustProduct(t, 1, "A", 100, WithStock(20, 10, 50), WithCategory("Electronics"))))
	require.NoError(t, c.Add(mustProduct(t, 2, "B", 50, WithStock(5, 10, 30), WithCategory("Accessories"))))
	require.NoError(t, c.Add(mustProduct(t, 3, "C", 75, WithStock(25, 15, 40), WithCategory("Electronics"))))
	return c
}

func TestOperations_Vectors(t *testing.T) {
	ops := NewOperations(threeProducts(t), nil, zap.NewNop())

	assert.Equal(t, []float64{20, 5, 25}, ops.StockVector())
	assert.Equal(t, []float64{100, 50, 75}, ops.PriceVector())
	assert.Equal(t, []float64{10, 10, 15}, ops.MinVector())
	assert.Equal(t, []float64{50, 30, 40}, ops.MaxVector())
	assert.Equal(t, []float64{2000, 250, 1875}, ops.ValueVector())
	assert.Equal(t, []float64{30, 25, 15}, ops.AvailableSpaceVector())

	assert.InDelta(t, 4125.0, ops.TotalValue(), 1e-9)
	assert.Equal(t, []bool{false, true, false}, ops.LowStockMask())
	assert.Equal(t, []int64{0, 15, 0}, ops.ReorderQuantityVector())

	restock := ops.ProductsNeedingRestock()
	require.Len(t, restock, 1)
	assert.Equal(t, int64(2), restock[0].ID)
}

func TestOperations_EmptyCatalog(t *testing.T) {
	ops := NewOperations(NewCatalog(nil), nil, nil)

	assert.Empty(t, ops.StockVector())
	assert.Empty(t, ops.LowStockMask())
	assert.Empty(t, ops.ReorderQuantityVector())
	assert.Empty(t, ops.ProductsNeedingRestock())
	assert.Equal(t, 0.0, ops.TotalValue())
	assert.Equal(t, Statistics{}, ops.Statistics())
	assert.Empty(t, ops.ReportTable())
	assert.Empty(t, ops.CategoryBreakdown())
	assert.Empty(t, ops.ABCClassification())
	assert.Empty(t, ops.Alerts())
}

func TestReorderQuantity(t *testing.T) {
	assert.Equal(t, int64(15), reorderQuantity(5, 10, 30))
	assert.Equal(t, int64(0), reorderQuantity(10, 10, 30))
	// (5+10)/2 = 7 (切り捨て)
	assert.Equal(t, int64(4), reorderQuantity(3, 5, 10))
	assert.Equal(t, int64(0), reorderQuantity(0, 0, 0))
}

func TestOperations_RecordEntry(t *testing.T) {
	ctx := context.Background()
	catalog := threeProducts(t)
	publisher := new(MockPublisher)
	ops := NewOperations(catalog, publisher, zap.NewNop())

	publisher.On("PublishStockChanged", ctx, mock.MatchedBy(func(e StockChangedEvent) bool {
		return e.ProductID == 1 && e.Type == MovementTypeEntry &&
			e.OldQuantity == 20 && e.NewQuantity == 30 && e.MovementID != ""
	})).Return(nil).Once()

	gen := catalog.Generation()
	msg, err := ops.RecordEntry(ctx, 1, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, msg)

	p, _ := catalog.Get(1)
	assert.Equal(t, int64(30), p.CurrentStock)
	assert.Greater(t, catalog.Generation(), gen)
	assert.Equal(t, 30.0, ops.StockVector()[0])

	publisher.AssertExpectations(t)
}

func TestOperations_RecordEntryFailures(t *testing.T) {
	ctx := context.Background()
	catalog := threeProducts(t)
	publisher := new(MockPublisher)
	ops := NewOperations(catalog, publisher, zap.NewNop())

	_, err := ops.RecordEntry(ctx, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ops.RecordEntry(ctx, 1, -3)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ops.RecordEntry(ctx, 99, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	gen := catalog.Generation()
	_, err = ops.RecordEntry(ctx, 1, 31) // 空き30
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	p, _ := catalog.Get(1)
	assert.Equal(t, int64(20), p.CurrentStock)
	assert.Equal(t, gen, catalog.Generation())

	publisher.AssertNotCalled(t, "PublishStockChanged", mock.Anything, mock.Anything)
}

func TestOperations_RecordEntryFillsToMax(t *testing.T) {
	ops := NewOperations(threeProducts(t), nil, zap.NewNop())

	_, err := ops.RecordEntry(context.Background(), 1, 30)
	require.NoError(t, err)

	p, _ := ops.Catalog().Get(1)
	assert.Equal(t, p.MaxStock, p.CurrentStock)
	assert.Equal(t, int64(0), p.AvailableSpace())
}

func TestOperations_RecordExit(t *testing.T) {
	ctx := context.Background()
	catalog := threeProducts(t)
	publisher := new(MockPublisher)
	ops := NewOperations(catalog, publisher, zap.NewNop())

	publisher.On("PublishStockChanged", ctx, mock.AnythingOfType("inventory.StockChangedEvent")).Return(nil)
	publisher.On("PublishLowStockAlert", ctx, mock.MatchedBy(func(e LowStockAlertEvent) bool {
		return e.ProductID == 1 && e.CurrentQty == 5 && e.Threshold == 10
	})).Return(nil).Once()

	// 20 → 12（最小在庫以上なのでアラートなし）
	_, err := ops.RecordExit(ctx, 1, 8)
	require.NoError(t, err)

	// 12 → 5（最小在庫10を下回る）
	_, err = ops.RecordExit(ctx, 1, 7)
	require.NoError(t, err)

	p, _ := catalog.Get(1)
	assert.Equal(t, int64(5), p.CurrentStock)

	publisher.AssertNumberOfCalls(t, "PublishStockChanged", 2)
	publisher.AssertExpectations(t)
}

func TestOperations_RecordExitFailures(t *testing.T) {
	ctx := context.Background()
	catalog := threeProducts(t)
	ops := NewOperations(catalog, nil, zap.NewNop())

	_, err := ops.RecordExit(ctx, 2, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ops.RecordExit(ctx, 99, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = ops.RecordExit(ctx, 2, 6) // 在庫5
	assert.ErrorIs(t, err, ErrInsufficientStock)
	p, _ := catalog.Get(2)
	assert.Equal(t, int64(5), p.CurrentStock)

	_, err = ops.RecordExit(ctx, 2, 5)
	require.NoError(t, err)
	p, _ = catalog.Get(2)
	assert.Equal(t, int64(0), p.CurrentStock)
}

func TestOperations_PublisherErrorDoesNotFailMovement(t *testing.T) {
	ctx := context.Background()
	publisher := new(MockPublisher)
	ops := NewOperations(threeProducts(t), publisher, zap.NewNop())

	publisher.On("PublishStockChanged", ctx, mock.Anything).Return(errors.New("broker down"))

	_, err := ops.RecordEntry(ctx, 1, 1)
	assert.NoError(t, err)
	p, _ := ops.Catalog().Get(1)
	assert.Equal(t, int64(21), p.CurrentStock)
}

func TestOperations_Batch(t *testing.T) {
	ctx := context.Background()
	catalog := threeProducts(t)
	ops := NewOperations(catalog, nil, zap.NewNop())

	result := ops.RecordEntriesBatch(ctx, []Movement{
		{ProductID: 3, Quantity: 5},
		{ProductID: 99, Quantity: 1},
		{ProductID: 1, Quantity: 1000},
		{ProductID: 2, Quantity: 10},
	})

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, MovementTypeEntry, result.Type)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 2, result.FailureCount)
	require.Len(t, result.Messages, 4)
	assert.Contains(t, result.Messages[0], "ID 3")
	assert.Contains(t, result.Messages[1], "ID 99")
	assert.Contains(t, result.Messages[2], "ID 1")
	assert.Contains(t, result.Messages[3], "ID 2")

	assert.Equal(t, []float64{20, 15, 30}, ops.StockVector())

	exits := ops.RecordExitsBatch(ctx, []Movement{
		{ProductID: 2, Quantity: 15},
		{ProductID: 2, Quantity: 1},
	})
	assert.Equal(t, 1, exits.SuccessCount)
	assert.Equal(t, 1, exits.FailureCount)
	assert.Equal(t, MovementTypeExit, exits.Type)
}

func BenchmarkOperations_RecordEntry(b *testing.B) {
	ctx := context.Background()
	catalog := NewCatalog(zap.NewNop())
	require.NoError(b, catalog.Add(mustProduct(b, 1, "P", 1, WithStock(0, 0, int64(b.N)+1))))
	ops := NewOperations(catalog, nil, zap.NewNop())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ops.RecordEntry(ctx, 1, 1)
	}
}
