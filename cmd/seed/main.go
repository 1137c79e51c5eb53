// seed inserts development sample data for local testing. Run via ./scripts/seed.sh.
// Idempotent: skips inserts if the dev company already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	companydomain "carbon-ledger/backend/internal/company/domain"
	companyrepo "carbon-ledger/backend/internal/company/repository"
	"carbon-ledger/backend/internal/config"
	"carbon-ledger/backend/internal/db"
	devicedomain "carbon-ledger/backend/internal/device/domain"
	devicerepo "carbon-ledger/backend/internal/device/repository"
	"carbon-ledger/backend/internal/security"
	tsdomain "carbon-ledger/backend/internal/timeseries/domain"
	tsrepo "carbon-ledger/backend/internal/timeseries/repository"
)

const (
	devCompanyID  = "dev-company-001"
	devAppID      = "dev-app-001"
	devSequester  = "dev-device-seq-001"
	devEmitter    = "dev-device-emit-001"
	devWalletAddr = "0xdev000000000000000000000000000000000001"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	companies := companyrepo.NewPostgresRepository(pool)
	devices := devicerepo.NewPostgresRepository(pool)
	points := tsrepo.NewPostgresRepository(pool)

	if existing, err := companies.GetCompanyByID(ctx, devCompanyID); err != nil {
		log.Fatalf("seed: check company: %v", err)
	} else if existing != nil {
		log.Println("seed: dev company already exists, nothing to do")
		return
	}

	now := time.Now().UTC()

	company := &companydomain.Company{
		ID:            devCompanyID,
		Name:          "Dev Reforestation Co",
		WalletAddress: devWalletAddr,
		CreatedAt:     now,
	}
	if err := company.Validate(); err != nil {
		log.Fatalf("seed: company: %v", err)
	}
	if err := companies.CreateCompany(ctx, company); err != nil {
		log.Fatalf("seed: create company: %v", err)
	}

	apiKey, err := security.GenerateAPIKey()
	if err != nil {
		log.Fatalf("seed: api key: %v", err)
	}
	app := &companydomain.Application{
		ID:           devAppID,
		CompanyID:    devCompanyID,
		Name:         "dev-sensors",
		APIKeyDigest: security.HashAPIKey(apiKey),
		CreatedAt:    now,
	}
	if err := companies.CreateApplication(ctx, app); err != nil {
		log.Fatalf("seed: create application: %v", err)
	}

	for _, d := range []*devicedomain.Device{
		{ID: devSequester, CompanyID: devCompanyID, Type: devicedomain.TypeSequester, Active: true, CreatedAt: now.Add(-72 * time.Hour)},
		{ID: devEmitter, CompanyID: devCompanyID, Type: devicedomain.TypeEmitter, Active: true, CreatedAt: now.Add(-72 * time.Hour)},
	} {
		if err := devices.Create(ctx, d); err != nil {
			log.Fatalf("seed: create device %s: %v", d.ID, err)
		}
	}

	// Two days of hourly samples for the sequestering device; totals work out
	// to a few mintable credits.
	for i := 0; i < 48; i++ {
		p := &tsdomain.Point{
			DeviceID:    devSequester,
			DeviceType:  string(devicedomain.TypeSequester),
			CompanyID:   devCompanyID,
			CO2Reduced:  decimal.RequireFromString("10.5"),
			EnergySaved: decimal.RequireFromString("6.25"),
			RecordedAt:  now.Add(-time.Duration(i+1) * time.Hour),
		}
		if err := points.Write(ctx, p); err != nil {
			log.Fatalf("seed: write point: %v", err)
		}
	}

	log.Println("seed: done")
	log.Printf("seed: company %s, application %s", devCompanyID, devAppID)
	log.Printf("seed: API key (shown once): %s", apiKey)
}
