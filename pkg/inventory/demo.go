package inventory

type demoRow struct {
	id                int64
	name              string
	price             float64
	stock, minS, maxS int64
	category          string
}

var demoRows = []demoRow{
	{1, "Laptop HP 15", 899.99, 15, 5, 50, "Electrónica"},
	{2, "Mouse Inalámbrico", 29.99, 45, 20, 100, "Accesorios"},
	{3, "Teclado Mecánico", 79.99, 8, 10, 40, "Accesorios"},
	{4, "Monitor 24\" LG", 249.99, 12, 5, 30, "Electrónica"},
	{5, "Cable HDMI 2m", 14.99, 3, 30, 200, "Accesorios"},
	{6, "Disco SSD 500GB", 69.99, 25, 15, 60, "Almacenamiento"},
	{7, "Memoria USB 64GB", 12.99, 50, 25, 150, "Almacenamiento"},
	{8, "Webcam HD", 49.99, 18, 10, 40, "Accesorios"},
	{9, "Audífonos Bluetooth", 59.99, 22, 15, 50, "Audio"},
	{10, "Cargador Universal", 24.99, 30, 20, 80, "Accesorios"},
}

// DemoProducts returns the sample catalog used by the demo seed
// デモ用のサンプル商品
func DemoProducts() []*Product {
	out := make([]*Product, 0, len(demoRows))
	for _, r := range demoRows {
		p, err := NewProduct(r.id, r.name, r.price,
			WithStock(r.stock, r.minS, r.maxS),
			WithCategory(r.category))
		if err != nil {
			panic(err) // 固定データのため発生しない
		}
		out = append(out, p)
	}
	return out
}

// SeedDemo adds the sample products, skipping IDs already present
// サンプル商品を登録（既存IDはスキップ）
func SeedDemo(c *Catalog) int {
	added := 0
	for _, p := range DemoProducts() {
		if c.Add(p) == nil {
			added++
		}
	}
	return added
}
