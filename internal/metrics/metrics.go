// Package metrics exposes catalog statistics and stock movements to
// Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nemonet1337/zaiBinStock/pkg/inventory"
)

const namespace = "zaistock"

// StatisticsSource is anything that can report catalog statistics
type StatisticsSource interface {
	Statistics() inventory.Statistics
}

// catalogCollector reads Statistics at scrape time
// スクレイプ時にカタログ統計を読み取る
type catalogCollector struct {
	source StatisticsSource

	products  *prometheus.Desc
	units     *prometheus.Desc
	value     *prometheus.Desc
	alerts    *prometheus.Desc
	meanStock *prometheus.Desc
	meanPrice *prometheus.Desc
}

func newCatalogCollector(source StatisticsSource) *catalogCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "catalog", name), help, nil, nil)
	}
	return &catalogCollector{
		source:    source,
		products:  desc("products", "Number of products in the catalog."),
		units:     desc("units", "Total units in stock across all bins."),
		value:     desc("inventory_value", "Total inventory value (price x stock)."),
		alerts:    desc("low_stock_products", "Products below their minimum stock."),
		meanStock: desc("mean_stock", "Mean stock per product."),
		meanPrice: desc("mean_unit_price", "Mean unit price per product."),
	}
}

func (c *catalogCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.products
	ch <- c.units
	ch <- c.value
	ch <- c.alerts
	ch <- c.meanStock
	ch <- c.meanPrice
}

func (c *catalogCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Statistics()
	ch <- prometheus.MustNewConstMetric(c.products, prometheus.GaugeValue, float64(stats.TotalProducts))
	ch <- prometheus.MustNewConstMetric(c.units, prometheus.GaugeValue, float64(stats.TotalUnits))
	ch <- prometheus.MustNewConstMetric(c.value, prometheus.GaugeValue, stats.TotalValue)
	ch <- prometheus.MustNewConstMetric(c.alerts, prometheus.GaugeValue, float64(stats.AlertCount))
	ch <- prometheus.MustNewConstMetric(c.meanStock, prometheus.GaugeValue, stats.MeanStock)
	ch <- prometheus.MustNewConstMetric(c.meanPrice, prometheus.GaugeValue, stats.MeanPrice)
}

// Metrics owns a registry with the catalog collector and movement counters.
// It is an EventPublisher, so movements are counted as they are published.
// Prometheusメトリクス（EventPublisherとして移動を計測）
type Metrics struct {
	registry  *prometheus.Registry
	movements *prometheus.CounterVec
	units     *prometheus.CounterVec
	lowStock  prometheus.Counter
}

var _ inventory.EventPublisher = (*Metrics)(nil)

// New creates metrics reading catalog statistics from source
// 新しいメトリクスを作成
func New(source StatisticsSource) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movements_total",
			Help:      "Stock movements recorded, by type.",
		}, []string{"type"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moved_units_total",
			Help:      "Units moved in or out, by type.",
		}, []string{"type"}),
		lowStock: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_alerts_total",
			Help:      "Low stock alerts raised by exits.",
		}),
	}

	m.registry.MustRegister(m.movements, m.units, m.lowStock)
	if source != nil {
		m.registry.MustRegister(newCatalogCollector(source))
	}
	return m
}

// PublishStockChanged counts a movement
func (m *Metrics) PublishStockChanged(_ context.Context, event inventory.StockChangedEvent) error {
	m.movements.WithLabelValues(string(event.Type)).Inc()
	m.units.WithLabelValues(string(event.Type)).Add(float64(event.Quantity))
	return nil
}

// PublishLowStockAlert counts an alert
func (m *Metrics) PublishLowStockAlert(_ context.Context, _ inventory.LowStockAlertEvent) error {
	m.lowStock.Inc()
	return nil
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
// /metrics用のハンドラー
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
