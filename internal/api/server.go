// Package api provides the HTTP server for the carbon ledger: credit accrual
// previews, mint/burn lifecycle, manual processing, the marketplace, and
// telemetry intake.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"carbon-ledger/backend/internal/accrual"
	"carbon-ledger/backend/internal/ingest"
	ledgerdomain "carbon-ledger/backend/internal/ledger/domain"
	ledgersvc "carbon-ledger/backend/internal/ledger/service"
	marketdomain "carbon-ledger/backend/internal/market/domain"
	marketrepo "carbon-ledger/backend/internal/market/repository"
	marketsvc "carbon-ledger/backend/internal/market/service"
	"carbon-ledger/backend/internal/processor"
	tsdomain "carbon-ledger/backend/internal/timeseries/domain"
	"carbon-ledger/backend/internal/wallet"
)

// Calculator previews credits for an explicit window.
type Calculator interface {
	ComputeCredits(ctx context.Context, deviceID string, start, end time.Time) (*accrual.Result, error)
}

// Ledger is the transaction lifecycle surface used by the handlers.
type Ledger interface {
	CreateMintRequest(ctx context.Context, deviceID string, amount decimal.Decimal, meta ledgerdomain.Metadata) (*ledgerdomain.Transaction, error)
	Confirm(ctx context.Context, txID, externalRef string) (*ledgerdomain.Transaction, error)
	Fail(ctx context.Context, txID, detail string) (*ledgerdomain.Transaction, error)
	ListTransactions(ctx context.Context, deviceID string) (*ledgersvc.TransactionList, error)
	AvailableToMint(ctx context.Context, deviceID string) (decimal.Decimal, error)
}

// Processor is the accrual pipeline surface used by the handlers.
type Processor interface {
	Tick(ctx context.Context) (*processor.Report, error)
	ProcessDevice(ctx context.Context, deviceID string, window *processor.Window) (*processor.DeviceOutcome, error)
	Status() processor.Status
}

// Market is the settlement surface used by the handlers.
type Market interface {
	Sell(ctx context.Context, companyID string, amount, price decimal.Decimal, buyer string) (*marketsvc.SaleReceipt, error)
	ListOffers(ctx context.Context, f marketrepo.OfferFilters) ([]*marketdomain.Offer, error)
	SetOfferPrice(ctx context.Context, companyID string, price decimal.Decimal) (*marketdomain.Balance, error)
	SaleHistory(ctx context.Context, companyID string) ([]*marketdomain.Sale, error)
}

// KeyResolver maps API keys to wallet resolutions.
type KeyResolver interface {
	Resolve(ctx context.Context, apiKey string) (*wallet.Resolution, error)
}

// Ingestor accepts telemetry samples synchronously.
type Ingestor interface {
	Ingest(ctx context.Context, apiKey string, sample ingest.Sample) (*tsdomain.Point, error)
}

// Server is the carbon ledger HTTP API server.
type Server struct {
	calculator Calculator
	ledger     Ledger
	processor  Processor
	market     Market
	resolver   KeyResolver
	ingestor   Ingestor
	producer   ingest.Producer // nil when Kafka is disabled
	maxWindow  time.Duration
}

// NewServer creates an API server. maxWindow caps explicitly requested
// accrual windows; zero takes the 7-day default.
func NewServer(calculator Calculator, ledger Ledger, proc Processor, market Market, resolver KeyResolver, ingestor Ingestor, maxWindow time.Duration) *Server {
	if maxWindow <= 0 {
		maxWindow = 168 * time.Hour
	}
	return &Server{
		calculator: calculator,
		ledger:     ledger,
		processor:  proc,
		market:     market,
		resolver:   resolver,
		ingestor:   ingestor,
		maxWindow:  maxWindow,
	}
}

// SetProducer enables Kafka-backed telemetry intake: POST /telemetry
// publishes instead of writing inline.
func (s *Server) SetProducer(p ingest.Producer) { s.producer = p }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/credits", func(r chi.Router) {
		r.Post("/calculate", s.handleCalculate)
		r.Get("/status/{deviceId}", s.handleMintStatus)
		r.Post("/mint", s.handleCreateMint)
		r.Get("/mint", s.handleListMints)
		r.Post("/confirm", s.handleConfirm)
		r.Post("/process", s.handleProcess)
		r.Get("/process", s.handleProcessStatus)
		r.Post("/sell", s.handleSell)
		r.Get("/sell", s.handleListOffers)
		r.Put("/offer-price", s.handleSetOfferPrice)
		r.Get("/sales/{companyId}", s.handleSaleHistory)
	})

	r.Get("/mqtt/wallet-address", s.handleWalletAddress)
	r.Post("/telemetry", s.handleTelemetry)

	return otelhttp.NewHandler(r, "carbon-ledger-api")
}
