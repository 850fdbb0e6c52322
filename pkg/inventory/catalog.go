package inventory

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Catalog owns every Product of the session and keeps a lazily rebuilt
// snapshot of them. Stored records are never handed out; readers get
// copies, and every write goes through a method that invalidates the
// snapshot under the same lock.
// 全商品を保持し、遅延再構築されるスナップショットを管理する
type Catalog struct {
	mu       sync.RWMutex
	products map[int64]*Product // ID → 商品
	order    []int64            // 挿入順
	logger   *zap.Logger

	// スナップショットキャッシュ
	dirty      bool
	generation uint64
	matrix     Matrix
	table      Table
}

// NewCatalog creates an empty catalog
// 空のカタログを作成
func NewCatalog(logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		products: make(map[int64]*Product),
		logger:   logger,
		dirty:    true,
	}
}

// Add inserts a validated product. A duplicate ID leaves the existing
// record untouched and returns ErrDuplicateProduct.
// 商品を追加（重複IDはErrDuplicateProduct）
func (c *Catalog) Add(p *Product) error {
	if err := ValidateProduct(p); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.insertLocked(p); err != nil {
		return err
	}

	c.logger.Info("商品を追加しました",
		zap.Int64("product_id", p.ID),
		zap.String("bin_location", p.BinLocation.String()))
	return nil
}

func (c *Catalog) insertLocked(p *Product) error {
	if _, exists := c.products[p.ID]; exists {
		return movementError(ErrDuplicateProduct, "ID %d", p.ID)
	}
	stored := *p
	c.products[p.ID] = &stored
	c.order = append(c.order, p.ID)
	c.invalidateLocked()
	return nil
}

// Remove deletes a product by ID
// 商品を削除
func (c *Catalog) Remove(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.products[id]; !exists {
		return movementError(ErrProductNotFound, "ID %d", id)
	}
	delete(c.products, id)
	c.order = slices.DeleteFunc(c.order, func(v int64) bool { return v == id })
	c.invalidateLocked()

	c.logger.Info("商品を削除しました", zap.Int64("product_id", id))
	return nil
}

// Get returns a copy of the product with the given ID
// 商品を取得（存在しない場合はfalse）
func (c *Catalog) Get(id int64) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return Product{}, false
	}
	return *p, true
}

// Contains reports whether the ID is present
func (c *Catalog) Contains(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.products[id]
	return ok
}

// Len returns the number of products
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// Products returns copies of every product in insertion order
// 挿入順で全商品のコピーを返す
func (c *Catalog) Products() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.productsLocked()
}

func (c *Catalog) productsLocked() []Product {
	out := make([]Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.products[id])
	}
	return out
}

// IDs returns product IDs in insertion order
func (c *Catalog) IDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// NextID returns max(existing ids, 0) + 1
// 次に割り当て可能なID
func (c *Catalog) NextID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nextIDLocked()
}

func (c *Catalog) nextIDLocked() int64 {
	var maxID int64
	for id := range c.products {
		maxID = max(maxID, id)
	}
	return maxID + 1
}

// firstLocked returns the first product in insertion order satisfying match
func (c *Catalog) firstLocked(match func(*Product) bool) (Product, bool) {
	for _, id := range c.order {
		if p := c.products[id]; match(p) {
			return *p, true
		}
	}
	return Product{}, false
}

func (c *Catalog) allLocked(match func(*Product) bool) []Product {
	var out []Product
	for _, id := range c.order {
		if p := c.products[id]; match(p) {
			out = append(out, *p)
		}
	}
	return out
}

// FindByItemNumberAndBin finds the record of an item at a bin.
// Absent codes never match.
// 商品番号とBINで検索
func (c *Catalog) FindByItemNumberAndBin(item, bin Code) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.firstLocked(func(p *Product) bool {
		return p.ItemNumber.Matches(item) && p.BinLocation.Matches(bin)
	})
}

// FindByUPCAndBin finds the record of a UPC code at a bin
// UPCコードとBINで検索
func (c *Catalog) FindByUPCAndBin(upc, bin Code) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.firstLocked(func(p *Product) bool {
		return p.UPCCode.Matches(upc) && p.BinLocation.Matches(bin)
	})
}

// FindByItemNumber returns the first record with the item number in
// insertion order. When the item is stored in several bins the result is
// one of them; use FindAllByItemNumber or FindByItemNumberAndBin to
// disambiguate.
func (c *Catalog) FindByItemNumber(item Code) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.firstLocked(func(p *Product) bool { return p.ItemNumber.Matches(item) })
}

// FindByUPC returns the first record with the UPC code, see FindByItemNumber
func (c *Catalog) FindByUPC(upc Code) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.firstLocked(func(p *Product) bool { return p.UPCCode.Matches(upc) })
}

// FindAllByItemNumber returns every record with the item number
// 商品番号に一致する全BINの記録
func (c *Catalog) FindAllByItemNumber(item Code) []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.allLocked(func(p *Product) bool { return p.ItemNumber.Matches(item) })
}

// FindAllByUPC returns every record with the UPC code
func (c *Catalog) FindAllByUPC(upc Code) []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.allLocked(func(p *Product) bool { return p.UPCCode.Matches(upc) })
}

// itemMatcher selects records by item number, or by UPC code when the
// item number is absent. Returns nil when neither is defined.
func itemMatcher(item, upc Code) func(*Product) bool {
	switch {
	case item.Defined():
		return func(p *Product) bool { return p.ItemNumber.Matches(item) }
	case upc.Defined():
		return func(p *Product) bool { return p.UPCCode.Matches(upc) }
	default:
		return nil
	}
}

// TotalStockForItem sums stock over every bin of a logical item
// 論理商品の全BIN合計在庫
func (c *Catalog) TotalStockForItem(item, upc Code) int64 {
	match := itemMatcher(item, upc)
	if match == nil {
		return 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var total int64
	for _, p := range c.products {
		if match(p) {
			total += p.CurrentStock
		}
	}
	return total
}

// BinsForItem maps bin location to stock for a logical item
// 論理商品のBIN別在庫
func (c *Catalog) BinsForItem(item, upc Code) map[string]int64 {
	bins := make(map[string]int64)
	match := itemMatcher(item, upc)
	if match == nil {
		return bins
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range c.order {
		if p := c.products[id]; match(p) {
			bins[p.BinLocation.String()] += p.CurrentStock
		}
	}
	return bins
}

// GroupedByItem groups records by LogicalKey in first-seen order
// 論理商品キーでグループ化
func (c *Catalog) GroupedByItem() []ItemGroup {
	c.mu.RLock()
	defer c.mu.RUnlock()

	index := make(map[string]int)
	var groups []ItemGroup
	for _, id := range c.order {
		p := *c.products[id]
		key := p.LogicalKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, ItemGroup{Key: key})
		}
		groups[i].Products = append(groups[i].Products, p)
	}
	return groups
}

// UpsertByItemAndBin returns the existing record at the same (item, bin),
// else the same (UPC, bin), for the caller to update, or inserts p when
// there is none. The two records are never merged.
// 同一（商品番号/UPC, BIN）の既存商品を返すか、新規追加する
func (c *Catalog) UpsertByItemAndBin(p *Product) (UpsertOutcome, Product, error) {
	if err := ValidateProduct(p); err != nil {
		return UpsertFailed, Product{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// 商品番号+BINを優先し、次にUPC+BIN
	existing, found := c.firstLocked(func(s *Product) bool {
		return s.ItemNumber.Matches(p.ItemNumber) && s.BinLocation.Matches(p.BinLocation)
	})
	if !found {
		existing, found = c.firstLocked(func(s *Product) bool {
			return s.UPCCode.Matches(p.UPCCode) && s.BinLocation.Matches(p.BinLocation)
		})
	}
	if found {
		return UpsertFoundExisting, existing, nil
	}

	if err := c.insertLocked(p); err != nil {
		c.logger.Warn("商品の追加に失敗しました",
			zap.Int64("product_id", p.ID),
			zap.Error(err))
		return UpsertFailed, Product{}, err
	}

	c.logger.Info("商品を追加しました",
		zap.Int64("product_id", p.ID),
		zap.String("bin_location", p.BinLocation.String()))
	return UpsertInserted, *p, nil
}

// Update applies fn to a copy of the stored product, re-validates it and
// stores it. On any error the stored record is left unchanged.
// 検証付き更新（失敗時は元の記録を保持）
func (c *Catalog) Update(id int64, fn func(*Product) error) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, ok := c.products[id]
	if !ok {
		return Product{}, movementError(ErrProductNotFound, "ID %d", id)
	}

	draft := *stored
	if err := fn(&draft); err != nil {
		return Product{}, err
	}
	if draft.ID != id {
		return Product{}, movementError(ErrImmutableID, "%d → %d", id, draft.ID)
	}
	if err := ValidateProduct(&draft); err != nil {
		return Product{}, err
	}

	*stored = draft
	c.invalidateLocked()
	return draft, nil
}

// Clear purges every product
// 全商品を削除
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.products)
	c.products = make(map[int64]*Product)
	c.order = nil
	c.invalidateLocked()

	c.logger.Info("カタログをクリアしました", zap.Int("removed", n))
}

// InvalidateCache marks the snapshot stale
// スナップショットを無効化
func (c *Catalog) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Catalog) invalidateLocked() {
	c.dirty = true
	c.generation++
}

// Generation is bumped on every invalidation
func (c *Catalog) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// SnapshotMatrix returns the (n,5) numeric table in insertion order
// 数値スナップショットを返す（必要時のみ再構築）
func (c *Catalog) SnapshotMatrix() Matrix {
	c.mu.RLock()
	if !c.dirty {
		m := slices.Clone(c.matrix)
		c.mu.RUnlock()
		return m
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebuildLocked()
	return slices.Clone(c.matrix)
}

// SnapshotTable returns the full attribute table. Columns is always the
// full schema, even for an empty catalog.
// 属性テーブルのスナップショットを返す
func (c *Catalog) SnapshotTable() Table {
	c.mu.RLock()
	if !c.dirty {
		t := c.tableCopyLocked()
		c.mu.RUnlock()
		return t
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebuildLocked()
	return c.tableCopyLocked()
}

// snapshot returns the products and numeric rows of one consistent state
func (c *Catalog) snapshot() ([]Product, Matrix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebuildLocked()
	return c.productsLocked(), slices.Clone(c.matrix)
}

func (c *Catalog) tableCopyLocked() Table {
	return Table{
		Columns: slices.Clone(TableColumns),
		Rows:    slices.Clone(c.table.Rows),
	}
}

func (c *Catalog) rebuildLocked() {
	if !c.dirty {
		return
	}

	matrix := make(Matrix, 0, len(c.order))
	rows := make([]TableRow, 0, len(c.order))
	for _, id := range c.order {
		p := c.products[id]
		matrix = append(matrix, p.Vector())
		rows = append(rows, p.tableRow())
	}

	c.matrix = matrix
	c.table = Table{Columns: TableColumns, Rows: rows}
	c.dirty = false

	c.logger.Debug("スナップショットを再構築しました",
		zap.Int("rows", len(rows)),
		zap.Uint64("generation", c.generation))
}

func (c *Catalog) String() string {
	return fmt.Sprintf("Catalog(%d products)", c.Len())
}
