package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/example/pos-checkout/internal/api"
	"github.com/example/pos-checkout/internal/catalog"
	"github.com/example/pos-checkout/internal/checkout"
	"github.com/example/pos-checkout/internal/config"
	"github.com/example/pos-checkout/internal/domain/promotion"
	"github.com/example/pos-checkout/internal/infrastructure/kafka"
	"github.com/example/pos-checkout/internal/infrastructure/store"
	"github.com/example/pos-checkout/internal/ledger"
	"github.com/example/pos-checkout/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable backends by configuration; the ledger projection itself
	// always lives in memory.
	var (
		movements store.MovementStore
		sales     store.SaleStore
	)
	switch cfg.LedgerBackend {
	case config.BackendPostgres:
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			lg.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer db.Close()
		pg := store.NewPostgresStore(db)
		movements, sales = pg, pg
		lg.Info("ledger backend: postgres")
	case config.BackendDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			lg.Fatal("failed to load aws config", zap.Error(err))
		}
		movements = store.NewDynamoMovementStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable)
		sales = store.NewMemorySaleStore()
		lg.Info("ledger backend: dynamo", zap.String("table", cfg.DynamoTable))
	default:
		movements = store.NewMemoryMovementStore()
		sales = store.NewMemorySaleStore()
		lg.Info("ledger backend: memory")
	}

	ledgerOpts := []ledger.Option{
		ledger.WithMovementStore(movements),
		ledger.WithLogger(lg),
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(producer))
		lg.Info("publishing ledger events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	stockLedger := ledger.New(ledgerOpts...)

	engine, err := promotion.NewEngine(promotion.Config{
		AllowStacking:         cfg.AllowStacking,
		MaxPromotionsPerOrder: cfg.MaxPromotionsPerOrder,
		AutoApplyBest:         cfg.AutoApplyBest,
	})
	if err != nil {
		lg.Fatal("invalid promotion configuration", zap.Error(err))
	}

	cat := catalog.NewMemorySource()
	promos := promotion.NewMemorySource()

	deps := checkout.Deps{
		Catalog:    cat,
		Promotions: promos,
		Engine:     engine,
		Ledger:     stockLedger,
		Sales:      sales,
		Logger:     lg,
		TaxRate:    cfg.TaxRate,
	}
	handlers := api.NewHandlers(api.NewRegistry(), deps, cat, promos, stockLedger, lg)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(handlers, cfg.Env),
	}

	go func() {
		lg.Info("server started", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			lg.Fatal("server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	lg.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Warn("shutdown error", zap.Error(err))
	}
}
