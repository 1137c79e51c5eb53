// Worker consumes telemetry samples from Kafka and writes them to the
// time-series store. Set KAFKA_BROKERS, TELEMETRY_KAFKA_TOPIC, KAFKA_GROUP_ID,
// and DATABASE_URL.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"carbon-ledger/backend/internal/apperror"
	"carbon-ledger/backend/internal/config"
	"carbon-ledger/backend/internal/db"
	devicerepo "carbon-ledger/backend/internal/device/repository"
	"carbon-ledger/backend/internal/ingest"
	tsrepo "carbon-ledger/backend/internal/timeseries/repository"
	"carbon-ledger/backend/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	topic := cfg.TelemetryKafkaTopic
	groupID := cfg.KafkaGroupID

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	resolver := wallet.NewResolver(wallet.NewPostgresLookup(pool), wallet.NewMemoryStore(), cfg.WalletCacheTTLDuration())
	svc := ingest.NewService(resolver, devicerepo.NewPostgresRepository(pool), tsrepo.NewPostgresRepository(pool))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Printf("worker: consuming from %s (group %s)", topic, groupID)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("worker: stopped")
				return
			}
			log.Printf("worker: kafka read error: %v", err)
			continue
		}

		var m ingest.Message
		if err := json.Unmarshal(msg.Value, &m); err != nil {
			log.Printf("worker: skipping malformed message at offset %d: %v", msg.Offset, err)
			continue
		}

		writeCtx, writeCancel := context.WithTimeout(ctx, 10*time.Second)
		_, err = svc.Ingest(writeCtx, m.APIKey, m.Sample)
		writeCancel()
		if err != nil {
			// Bad attribution or validation will not improve on retry; only
			// store outages are worth logging loudly.
			var upstream *apperror.UpstreamError
			if errors.As(err, &upstream) {
				log.Printf("worker: store unavailable, dropping sample for %s: %v", m.Sample.DeviceID, err)
			} else {
				log.Printf("worker: rejected sample for %s: %v", m.Sample.DeviceID, err)
			}
		}
	}
}
