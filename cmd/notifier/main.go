package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/pos-checkout/internal/config"
	"github.com/example/pos-checkout/internal/infrastructure/kafka"
	"github.com/example/pos-checkout/internal/ledger"
	"github.com/example/pos-checkout/internal/logger"
)

// The notifier tails the ledger event stream and logs movements and
// alerts. It is the hook point for pager or mail delivery.
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

	if len(cfg.KafkaBrokers) == 0 {
		lg.Fatal("KAFKA_BROKERS is required for the notifier")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, lg)
	defer consumer.Close()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		lg.Info("shutting down")
		cancel()
	}()

	lg.Info("notifier started",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic))

	err = consumer.Consume(ctx, func(_ context.Context, key, value []byte) error {
		var event ledger.Event
		if err := json.Unmarshal(value, &event); err != nil {
			lg.Warn("malformed event", zap.ByteString("key", key), zap.Error(err))
			return nil
		}

		switch event.Kind {
		case ledger.EventAlertRaised:
			lg.Warn("stock alert",
				zap.String("product_id", event.ProductID),
				zap.String("type", string(event.Alert.Type)),
				zap.String("severity", string(event.Alert.Severity)),
				zap.Int("stock", event.Alert.CurrentStock))
		case ledger.EventAlertCleared:
			lg.Info("stock alert cleared",
				zap.String("product_id", event.ProductID),
				zap.String("type", string(event.Alert.Type)))
		case ledger.EventMovement:
			lg.Info("stock movement",
				zap.String("product_id", event.ProductID),
				zap.String("type", string(event.Movement.Type)),
				zap.Int("quantity", event.Movement.Quantity),
				zap.Int("resulting_stock", event.Movement.ResultingStock))
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("consumer stopped", zap.Error(err))
	}
}
