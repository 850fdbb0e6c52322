package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiBinStock/internal/config"
	"github.com/nemonet1337/zaiBinStock/internal/metrics"
	"github.com/nemonet1337/zaiBinStock/pkg/inventory"
	"github.com/nemonet1337/zaiBinStock/pkg/inventory/exchange"
)

func main() {
	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	// ログ設定
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました:", err)
	}
	defer logger.Sync()

	router := newRouter(cfg, logger)

	// HTTPサーバー設定
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	// グレースフルシャットダウン設定
	go func() {
		logger.Info("在庫管理APIサーバーを開始します", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー開始に失敗しました", zap.Error(err))
		}
	}()

	// シャットダウンシグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンに失敗しました", zap.Error(err))
	}

	logger.Info("サーバーが正常に停止しました")
}

// newRouter wires the catalog, its publishers and the HTTP routes
// カタログ・パブリッシャー・HTTPルートを組み立てる
func newRouter(cfg *config.Config, logger *zap.Logger) *mux.Router {
	catalog := inventory.NewCatalog(logger)
	if cfg.Inventory.SeedDemoData {
		added := inventory.SeedDemo(catalog)
		logger.Info("デモデータを登録しました", zap.Int("count", added))
	}

	// メトリクスは集計用Operations（パブリッシャーなし）から統計を読む
	m := metrics.New(inventory.NewOperations(catalog, nil, logger))
	journal := inventory.NewJournal(cfg.Inventory.JournalCapacity, logger)
	ops := inventory.NewOperations(catalog, inventory.NewMultiPublisher(journal, m), logger)

	importer := exchange.NewImporter(catalog, logger)
	importer.ErrorLimit = cfg.Inventory.ImportErrorLimit

	handlers := NewHandlers(ops, importer, journal, logger)

	var metricsHandler http.Handler
	if cfg.API.EnableMetrics {
		metricsHandler = m.Handler()
	}
	return setupRouter(handlers, metricsHandler, cfg.API.EnableCORS)
}

// setupRouter sets up HTTP routes
// HTTPルートを設定
func setupRouter(handlers *Handlers, metricsHandler http.Handler, enableCORS bool) *mux.Router {
	router := mux.NewRouter()

	// ヘルスチェック
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods("GET")
	}

	// API v1ルート
	api := router.PathPrefix("/api/v1").Subrouter()

	// 商品管理
	api.HandleFunc("/products", handlers.ListProducts).Methods("GET")
	api.HandleFunc("/products", handlers.CreateProduct).Methods("POST")
	api.HandleFunc("/products", handlers.PurgeProducts).Methods("DELETE")
	api.HandleFunc("/products/lookup", handlers.LookupProducts).Methods("GET")
	api.HandleFunc("/products/{id:[0-9]+}", handlers.GetProduct).Methods("GET")
	api.HandleFunc("/products/{id:[0-9]+}", handlers.UpdateProduct).Methods("PUT")
	api.HandleFunc("/products/{id:[0-9]+}", handlers.DeleteProduct).Methods("DELETE")

	// 論理商品（BIN横断）
	api.HandleFunc("/items/groups", handlers.ItemGroups).Methods("GET")
	api.HandleFunc("/items/stock", handlers.ItemStock).Methods("GET")

	// 入出庫
	api.HandleFunc("/movements/entry", handlers.RecordEntry).Methods("POST")
	api.HandleFunc("/movements/exit", handlers.RecordExit).Methods("POST")
	api.HandleFunc("/movements/entry/batch", handlers.RecordEntriesBatch).Methods("POST")
	api.HandleFunc("/movements/exit/batch", handlers.RecordExitsBatch).Methods("POST")
	api.HandleFunc("/movements/history/{id:[0-9]+}", handlers.MovementHistory).Methods("GET")

	// 分析
	api.HandleFunc("/analytics/statistics", handlers.Statistics).Methods("GET")
	api.HandleFunc("/analytics/report", handlers.Report).Methods("GET")
	api.HandleFunc("/analytics/categories", handlers.Categories).Methods("GET")
	api.HandleFunc("/analytics/alerts", handlers.Alerts).Methods("GET")
	api.HandleFunc("/analytics/abc", handlers.ABCClassification).Methods("GET")
	api.HandleFunc("/analytics/matrix", handlers.Matrix).Methods("GET")

	// 取り込み・エクスポート
	api.HandleFunc("/exchange/import", handlers.Import).Methods("POST")
	api.HandleFunc("/exchange/export", handlers.Export).Methods("GET")

	if enableCORS {
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

				if r.Method == "OPTIONS" {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	// ログ機能
	router.Use(loggingMiddleware(handlers.logger))

	return router
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
// HTTPリクエストをログ出力するミドルウェア
func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Info("HTTPリクエスト",
				zap.String("method", r.Method),
				zap.String("url", r.URL.Path),
				zap.Int("status", rec.status),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
