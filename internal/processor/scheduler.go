package processor

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"carbon-ledger/backend/internal/accrual"
	"carbon-ledger/backend/internal/apperror"
	devicedomain "carbon-ledger/backend/internal/device/domain"
	ledgerdomain "carbon-ledger/backend/internal/ledger/domain"
)

// ErrTickInProgress is returned by Tick when a previous tick is still running.
// Ticks never overlap; callers retry after the running one finishes.
var ErrTickInProgress = errors.New("accrual tick already in progress")

// DeviceSource lists the devices eligible for scheduled accrual.
type DeviceSource interface {
	GetByID(ctx context.Context, id string) (*devicedomain.Device, error)
	ListActiveByType(ctx context.Context, t devicedomain.Type) ([]*devicedomain.Device, error)
}

// LedgerWriter files mint requests produced by the pipeline.
type LedgerWriter interface {
	CreateMintRequest(ctx context.Context, deviceID string, amount decimal.Decimal, meta ledgerdomain.Metadata) (*ledgerdomain.Transaction, error)
}

// Options tune scheduler behavior; zero values take the documented defaults.
type Options struct {
	// Interval between automatic ticks. Default 1h.
	Interval time.Duration
	// MinAccrualInterval is the minimum age of a device's watermark before it
	// is processed again. Default 24h.
	MinAccrualInterval time.Duration
	// AdvanceOnZeroCredits advances the watermark past windows that earned
	// nothing. Default false (zero value); main sets it from config.
	AdvanceOnZeroCredits bool
	// Workers bounds per-tick device concurrency. Default 4.
	Workers int
	// DeviceTimeout bounds the work done for one device, covering its
	// watermark, time-series, and ledger calls. A hung store call fails that
	// device instead of stalling the tick. Default 30s.
	DeviceTimeout time.Duration
}

// Report summarizes one accrual tick.
type Report struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
}

// Status is the scheduler's externally visible state.
type Status struct {
	IsRunning    bool `json:"isRunning"`
	IsProcessing bool `json:"isProcessing"`
}

// DeviceOutcome is the result of processing one device, used by manual runs.
type DeviceOutcome struct {
	DeviceID    string                    `json:"deviceId"`
	WindowStart time.Time                 `json:"windowStart"`
	WindowEnd   time.Time                 `json:"windowEnd"`
	Credits     decimal.Decimal           `json:"credits"`
	SamplesUsed int                       `json:"samplesUsed"`
	Skipped     string                    `json:"skipped,omitempty"`
	Transaction *ledgerdomain.Transaction `json:"transaction,omitempty"`
}

// Scheduler runs the accrual pipeline on a fixed interval. One tick at a time:
// an overlapping trigger, automatic or manual, is rejected rather than queued.
// Failures are isolated per device; one bad device never stops the sweep.
type Scheduler struct {
	devices DeviceSource
	engine  *accrual.Engine
	marks   *Watermarks
	ledger  LedgerWriter
	opts    Options
	nowF    func() time.Time

	running    atomic.Bool
	processing atomic.Bool
	stopCh     chan struct{}
	doneCh     chan struct{}

	devicesProcessed metric.Int64Counter
	mintsCreated     metric.Int64Counter
	tickDuration     metric.Float64Histogram
}

// NewScheduler returns a stopped scheduler; call Start to begin ticking.
func NewScheduler(devices DeviceSource, engine *accrual.Engine, marks *Watermarks, ledger LedgerWriter, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.MinAccrualInterval <= 0 {
		opts.MinAccrualInterval = 24 * time.Hour
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.DeviceTimeout <= 0 {
		opts.DeviceTimeout = 30 * time.Second
	}

	meter := otel.Meter("carbon-ledger/processor")
	devicesProcessed, _ := meter.Int64Counter("accrual.devices.processed",
		metric.WithDescription("Devices examined by accrual ticks, by outcome."))
	mintsCreated, _ := meter.Int64Counter("accrual.mints.created",
		metric.WithDescription("PENDING mint requests created by the pipeline."))
	tickDuration, _ := meter.Float64Histogram("accrual.tick.duration",
		metric.WithDescription("Wall time of accrual ticks."), metric.WithUnit("s"))

	return &Scheduler{
		devices:          devices,
		engine:           engine,
		marks:            marks,
		ledger:           ledger,
		opts:             opts,
		nowF:             func() time.Time { return time.Now().UTC() },
		devicesProcessed: devicesProcessed,
		mintsCreated:     mintsCreated,
		tickDuration:     tickDuration,
	}
}

// WithNow overrides the scheduler clock for tests.
func (s *Scheduler) WithNow(nowF func() time.Time) *Scheduler {
	s.nowF = nowF
	return s
}

// Start begins the tick loop. Idempotent: a second Start while running is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop(ctx)
	log.Printf("processor: scheduler started (interval %s, workers %d)", s.opts.Interval, s.opts.Workers)
}

// Stop halts the tick loop and waits for a running tick to finish.
// Idempotent: stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	log.Print("processor: scheduler stopped")
}

// Status reports whether the loop is running and whether a tick is in flight.
func (s *Scheduler) Status() Status {
	return Status{IsRunning: s.running.Load(), IsProcessing: s.processing.Load()}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.Tick(ctx)
			if err != nil {
				if errors.Is(err, ErrTickInProgress) {
					log.Print("processor: tick skipped, previous still running")
					continue
				}
				log.Printf("processor: tick failed: %v", err)
				continue
			}
			log.Printf("processor: tick done: processed=%d succeeded=%d failed=%d skipped=%d",
				report.Processed, report.Succeeded, report.Failed, report.Skipped)
		}
	}
}

// Tick sweeps all active sequestering devices once through the pipeline.
// Returns ErrTickInProgress if another tick holds the pipeline.
func (s *Scheduler) Tick(ctx context.Context) (*Report, error) {
	if !s.processing.CompareAndSwap(false, true) {
		return nil, ErrTickInProgress
	}
	defer s.processing.Store(false)

	started := s.nowF()
	devices, err := s.devices.ListActiveByType(ctx, devicedomain.TypeSequester)
	if err != nil {
		return nil, apperror.Persistence("list active devices", err)
	}

	var (
		mu     sync.Mutex
		report = Report{StartedAt: started}
	)

	sem := make(chan struct{}, s.opts.Workers)
	var wg sync.WaitGroup
	for _, dev := range devices {
		wg.Add(1)
		sem <- struct{}{}
		go func(dev *devicedomain.Device) {
			defer wg.Done()
			defer func() { <-sem }()

			dctx, cancel := context.WithTimeout(ctx, s.opts.DeviceTimeout)
			outcome, err := s.processDevice(dctx, dev, started)
			cancel()

			mu.Lock()
			defer mu.Unlock()
			report.Processed++
			switch {
			case err != nil:
				report.Failed++
				log.Printf("processor: device %s: %v", dev.ID, err)
				s.devicesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
			case outcome.Skipped != "":
				report.Skipped++
				s.devicesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "skipped")))
			default:
				report.Succeeded++
				s.devicesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "succeeded")))
			}
		}(dev)
	}
	wg.Wait()

	report.FinishedAt = s.nowF()
	s.tickDuration.Record(ctx, report.FinishedAt.Sub(report.StartedAt).Seconds())
	return &report, nil
}

// processDevice runs one device through the pipeline: resolve watermark, skip
// if too recent, price the window, file a mint for a positive amount.
func (s *Scheduler) processDevice(ctx context.Context, dev *devicedomain.Device, now time.Time) (*DeviceOutcome, error) {
	mark, err := s.marks.Resolve(ctx, dev, now)
	if err != nil {
		return nil, apperror.Persistence("resolve watermark", err)
	}
	if now.Sub(mark) < s.opts.MinAccrualInterval {
		return &DeviceOutcome{DeviceID: dev.ID, WindowStart: mark, WindowEnd: now, Skipped: "too soon"}, nil
	}
	return s.accrueWindow(ctx, dev, mark, now, true)
}

// ProcessDevice runs the pipeline for one device on demand. The minimum
// accrual interval does not apply; an explicit window overrides the watermark
// for backfill. Zero-credit windows never advance the watermark here, so a
// manual dry run does not consume them.
func (s *Scheduler) ProcessDevice(ctx context.Context, deviceID string, window *Window) (*DeviceOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.DeviceTimeout)
	defer cancel()

	dev, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, apperror.Persistence("load device", err)
	}
	if dev == nil {
		return nil, apperror.NotFound("device", deviceID)
	}
	if !dev.GeneratesCredits() {
		return nil, apperror.Validation("deviceId", "device does not generate credits")
	}

	now := s.nowF()
	start, end := time.Time{}, now
	if window != nil {
		start, end = window.Start, window.End
	} else {
		start, err = s.marks.Resolve(ctx, dev, now)
		if err != nil {
			return nil, apperror.Persistence("resolve watermark", err)
		}
	}
	return s.accrueWindow(ctx, dev, start, end, false)
}

// Window is an explicit accrual window for manual processing.
type Window struct {
	Start time.Time
	End   time.Time
}

func (s *Scheduler) accrueWindow(ctx context.Context, dev *devicedomain.Device, start, end time.Time, advance bool) (*DeviceOutcome, error) {
	outcome := &DeviceOutcome{DeviceID: dev.ID, WindowStart: start, WindowEnd: end, Credits: decimal.Zero}
	if !start.Before(end) {
		outcome.Skipped = "empty window"
		return outcome, nil
	}

	res, err := s.engine.ComputeCredits(ctx, dev.ID, start, end)
	if err != nil {
		return nil, err
	}
	outcome.SamplesUsed = res.SamplesUsed

	if res.Reason == accrual.ReasonInsufficientData {
		// No evidence yet; leave the watermark so the window is retried.
		outcome.Skipped = accrual.ReasonInsufficientData
		return outcome, nil
	}
	outcome.Credits = res.Credits

	if !res.Credits.IsPositive() {
		outcome.Skipped = "zero credits"
		if advance && s.opts.AdvanceOnZeroCredits {
			s.marks.AdvanceZero(dev.ID, end)
		}
		return outcome, nil
	}

	meta := ledgerdomain.NewAccrualMetadata(ledgerdomain.AccrualEvidence{
		WindowStart:  start,
		WindowEnd:    end,
		CO2Reduced:   res.CO2Reduced,
		EnergySaved:  res.EnergySaved,
		SamplesUsed:  res.SamplesUsed,
		EvidenceHash: evidenceHash(dev.ID, start, end, res),
	})

	tx, err := s.ledger.CreateMintRequest(ctx, dev.ID, res.Credits, meta)
	if err != nil {
		var conflict *apperror.ConflictError
		if errors.As(err, &conflict) {
			// A pending mint already holds this device; its confirmation will
			// move the watermark.
			outcome.Skipped = "pending mint exists"
			return outcome, nil
		}
		return nil, err
	}
	outcome.Transaction = tx
	s.mintsCreated.Add(ctx, 1)
	return outcome, nil
}
