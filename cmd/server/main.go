// Server runs the carbon ledger HTTP API and the scheduled accrual pipeline.
// Configure via .env or environment; see internal/config for the full key list.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carbon-ledger/backend/internal/accrual"
	"carbon-ledger/backend/internal/api"
	"carbon-ledger/backend/internal/config"
	"carbon-ledger/backend/internal/db"
	devicerepo "carbon-ledger/backend/internal/device/repository"
	"carbon-ledger/backend/internal/ingest"
	ledgerrepo "carbon-ledger/backend/internal/ledger/repository"
	ledgersvc "carbon-ledger/backend/internal/ledger/service"
	marketrepo "carbon-ledger/backend/internal/market/repository"
	marketsvc "carbon-ledger/backend/internal/market/service"
	"carbon-ledger/backend/internal/processor"
	"carbon-ledger/backend/internal/telemetry/otel"
	tsrepo "carbon-ledger/backend/internal/timeseries/repository"
	"carbon-ledger/backend/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "carbon-ledger-server", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		_ = providers.Shutdown(shutCtx)
	}()

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	// Repositories.
	devices := devicerepo.NewPostgresRepository(pool)
	points := tsrepo.NewPostgresRepository(pool)
	transactions := ledgerrepo.NewPostgresRepository(pool)
	balances := marketrepo.NewPostgresRepository(pool)

	// Accrual pipeline.
	engine := accrual.NewEngine(points, accrual.DefaultPolicy())
	marks := processor.NewWatermarks(transactions, cfg.MaxLookbackDuration())
	availability := processor.NewAvailability(engine, marks, devices)
	ledger := ledgersvc.NewService(transactions, devices, availability)
	sched := processor.NewScheduler(devices, engine, marks, ledger, processor.Options{
		Interval:             cfg.ProcessIntervalDuration(),
		MinAccrualInterval:   cfg.MinAccrualIntervalDuration(),
		AdvanceOnZeroCredits: cfg.AdvanceOnZeroCredits,
		Workers:              cfg.ProcessorWorkers,
	})

	// Marketplace and intake.
	market := marketsvc.NewService(balances)
	resolver := wallet.NewResolver(wallet.NewPostgresLookup(pool), wallet.NewMemoryStore(), cfg.WalletCacheTTLDuration())
	ingestor := ingest.NewService(resolver, devices, points)

	srv := api.NewServer(engine, ledger, sched, market, resolver, ingestor, cfg.MaxWindowDuration())
	if producer := ingest.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.TelemetryKafkaTopic); producer != nil {
		defer producer.Close()
		srv.SetProducer(producer)
		log.Printf("telemetry intake via kafka topic %s", cfg.TelemetryKafkaTopic)
	}

	sched.Start(ctx)
	defer sched.Stop()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := httpServer.Shutdown(shutCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
