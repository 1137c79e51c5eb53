package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"carbon-ledger/backend/internal/accrual"
	"carbon-ledger/backend/internal/apperror"
	devicedomain "carbon-ledger/backend/internal/device/domain"
	ledgerdomain "carbon-ledger/backend/internal/ledger/domain"
	tsdomain "carbon-ledger/backend/internal/timeseries/domain"
)

type memDevices struct {
	byID map[string]*devicedomain.Device
}

func (m *memDevices) GetByID(ctx context.Context, id string) (*devicedomain.Device, error) {
	d, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	d2 := *d
	return &d2, nil
}

func (m *memDevices) ListActiveByType(ctx context.Context, t devicedomain.Type) ([]*devicedomain.Device, error) {
	var out []*devicedomain.Device
	for _, d := range m.byID {
		if d.Active && d.Type == t {
			d2 := *d
			out = append(out, &d2)
		}
	}
	return out, nil
}

type memMints struct {
	mu    sync.Mutex
	mints map[string][]*ledgerdomain.Transaction
	err   error
}

func (m *memMints) add(tx *ledgerdomain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mints[tx.DeviceID] = append(m.mints[tx.DeviceID], tx)
}

func mintWindowEnd(t *ledgerdomain.Transaction) time.Time {
	if t.Metadata.Kind == ledgerdomain.MetadataAccrual && t.Metadata.Accrual != nil {
		return t.Metadata.Accrual.WindowEnd
	}
	return t.CreatedAt
}

func (m *memMints) LatestMintByWindow(ctx context.Context, deviceID string) (*ledgerdomain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var best *ledgerdomain.Transaction
	for _, t := range m.mints[deviceID] {
		if best == nil || mintWindowEnd(t).After(mintWindowEnd(best)) {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}
	b := *best
	return &b, nil
}

type memLedger struct {
	mu      sync.Mutex
	created []*ledgerdomain.Transaction
	pending map[string]bool
	err     error
}

func (l *memLedger) CreateMintRequest(ctx context.Context, deviceID string, amount decimal.Decimal, meta ledgerdomain.Metadata) (*ledgerdomain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.pending == nil {
		l.pending = make(map[string]bool)
	}
	if l.pending[deviceID] {
		return nil, &apperror.ConflictError{Detail: "device already has a pending mint"}
	}
	l.pending[deviceID] = true
	tx := &ledgerdomain.Transaction{
		ID:       "tx-" + deviceID,
		DeviceID: deviceID,
		Type:     ledgerdomain.TxMint,
		Amount:   amount,
		Status:   ledgerdomain.StatusPending,
		Metadata: meta,
	}
	l.created = append(l.created, tx)
	return tx, nil
}

type windowQuerier struct {
	mu     sync.Mutex
	points []*tsdomain.Point
	errFor map[string]error
	stall  map[string]bool
}

func (q *windowQuerier) QueryWindow(ctx context.Context, deviceID string, start, end time.Time) ([]*tsdomain.Point, error) {
	q.mu.Lock()
	if q.stall[deviceID] {
		q.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	defer q.mu.Unlock()
	if err, ok := q.errFor[deviceID]; ok {
		return nil, err
	}
	var out []*tsdomain.Point
	for _, p := range q.points {
		if p.DeviceID != deviceID || p.RecordedAt.Before(start) || !p.RecordedAt.Before(end) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func point(deviceID string, at time.Time, co2, energy string) *tsdomain.Point {
	return &tsdomain.Point{
		DeviceID:    deviceID,
		DeviceType:  string(devicedomain.TypeSequester),
		CompanyID:   "co-1",
		CO2Reduced:  decimal.RequireFromString(co2),
		EnergySaved: decimal.RequireFromString(energy),
		RecordedAt:  at,
	}
}

func sequester(id string, createdAt time.Time) *devicedomain.Device {
	return &devicedomain.Device{ID: id, CompanyID: "co-1", Type: devicedomain.TypeSequester, Active: true, CreatedAt: createdAt}
}

type fixture struct {
	now     time.Time
	devices *memDevices
	mints   *memMints
	ledger  *memLedger
	querier *windowQuerier
	marks   *Watermarks
	sched   *Scheduler
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		now:     time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		devices: &memDevices{byID: make(map[string]*devicedomain.Device)},
		mints:   &memMints{mints: make(map[string][]*ledgerdomain.Transaction)},
		ledger:  &memLedger{},
		querier: &windowQuerier{errFor: make(map[string]error)},
	}
	f.marks = NewWatermarks(f.mints, 720*time.Hour)
	engine := accrual.NewEngine(f.querier, accrual.DefaultPolicy())
	f.sched = NewScheduler(f.devices, engine, f.marks, f.ledger, opts).
		WithNow(func() time.Time { return f.now })
	return f
}

func TestWatermark_Precedence(t *testing.T) {
	f := newFixture(Options{})
	now := f.now

	// No history at all: now minus lookback.
	bare := sequester("dev-bare", time.Time{})
	mark, err := f.marks.Resolve(context.Background(), bare, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !mark.Equal(now.Add(-720 * time.Hour)) {
		t.Errorf("bare device mark = %v, want now-720h", mark)
	}

	// Registration time beats the lookback bound.
	dev := sequester("dev-1", now.Add(-48*time.Hour))
	mark, err = f.marks.Resolve(context.Background(), dev, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !mark.Equal(dev.CreatedAt) {
		t.Errorf("mark = %v, want device creation %v", mark, dev.CreatedAt)
	}

	// A mint with accrual evidence moves the mark to its window end.
	windowEnd := now.Add(-24 * time.Hour)
	f.mints.add(&ledgerdomain.Transaction{
		ID:       "tx-1",
		DeviceID: "dev-1",
		Type:     ledgerdomain.TxMint,
		Status:   ledgerdomain.StatusConfirmed,
		Metadata: ledgerdomain.NewAccrualMetadata(ledgerdomain.AccrualEvidence{
			WindowStart: dev.CreatedAt,
			WindowEnd:   windowEnd,
		}),
		CreatedAt: now.Add(-23 * time.Hour),
	})
	mark, err = f.marks.Resolve(context.Background(), dev, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !mark.Equal(windowEnd) {
		t.Errorf("mark = %v, want mint window end %v", mark, windowEnd)
	}

	// A mint without accrual evidence ranks by its creation time.
	f.mints.add(&ledgerdomain.Transaction{
		ID:        "tx-2",
		DeviceID:  "dev-1",
		Type:      ledgerdomain.TxMint,
		Status:    ledgerdomain.StatusPending,
		Metadata:  ledgerdomain.NewManualMetadata(ledgerdomain.ManualAdjustment{DataHash: "abc"}),
		CreatedAt: now.Add(-10 * time.Hour),
	})
	mark, err = f.marks.Resolve(context.Background(), dev, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !mark.Equal(now.Add(-10 * time.Hour)) {
		t.Errorf("mark = %v, want mint creation time", mark)
	}

	// A zero-credit advance past the mint wins.
	f.marks.AdvanceZero("dev-1", now.Add(-2*time.Hour))
	mark, err = f.marks.Resolve(context.Background(), dev, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !mark.Equal(now.Add(-2 * time.Hour)) {
		t.Errorf("mark = %v, want zero-advance override", mark)
	}

	// Advances never move backwards.
	f.marks.AdvanceZero("dev-1", now.Add(-5*time.Hour))
	mark, _ = f.marks.Resolve(context.Background(), dev, now)
	if !mark.Equal(now.Add(-2 * time.Hour)) {
		t.Errorf("mark = %v, older advance must not regress it", mark)
	}
}

func TestWatermark_BackfillDoesNotRegress(t *testing.T) {
	f := newFixture(Options{MinAccrualInterval: 24 * time.Hour})
	dev := sequester("dev-1", f.now.Add(-200*time.Hour))
	f.devices.byID[dev.ID] = dev

	// Scheduled accrual already accounted everything up to now-25h.
	f.mints.add(&ledgerdomain.Transaction{
		ID:       "tx-1",
		DeviceID: "dev-1",
		Type:     ledgerdomain.TxMint,
		Status:   ledgerdomain.StatusConfirmed,
		Metadata: ledgerdomain.NewAccrualMetadata(ledgerdomain.AccrualEvidence{
			WindowStart: dev.CreatedAt,
			WindowEnd:   f.now.Add(-25 * time.Hour),
		}),
		CreatedAt: f.now.Add(-25 * time.Hour),
	})
	// Manual backfill for an old gap, filed later so it is newest by creation
	// time. Its window must not pull the watermark back below tx-1's.
	f.mints.add(&ledgerdomain.Transaction{
		ID:       "tx-2",
		DeviceID: "dev-1",
		Type:     ledgerdomain.TxMint,
		Status:   ledgerdomain.StatusConfirmed,
		Metadata: ledgerdomain.NewAccrualMetadata(ledgerdomain.AccrualEvidence{
			WindowStart: f.now.Add(-40 * time.Hour),
			WindowEnd:   f.now.Add(-35 * time.Hour),
		}),
		CreatedAt: f.now.Add(-time.Hour),
	})

	mark, err := f.marks.Resolve(context.Background(), dev, f.now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !mark.Equal(f.now.Add(-25 * time.Hour)) {
		t.Fatalf("mark = %v, want now-25h; backfill must not regress the watermark", mark)
	}

	// The next tick only accrues the still-open window: the now-38h sample was
	// already accounted for by tx-1 and must not be minted a second time.
	f.querier.points = []*tsdomain.Point{
		point("dev-1", f.now.Add(-38*time.Hour), "999", "999"),
		point("dev-1", f.now.Add(-10*time.Hour), "500", "300"),
	}
	report, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("report = %+v, want one success", report)
	}
	if len(f.ledger.created) != 1 {
		t.Fatalf("got %d mints, want 1", len(f.ledger.created))
	}
	tx := f.ledger.created[0]
	ev := tx.Metadata.Accrual
	if !ev.WindowStart.Equal(f.now.Add(-25 * time.Hour)) {
		t.Errorf("window start = %v, want now-25h", ev.WindowStart)
	}
	if ev.SamplesUsed != 1 || !tx.Amount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("amount = %s over %d samples, want 5 from the open window only", tx.Amount, ev.SamplesUsed)
	}
}

func TestTick_AccruesAndFilesMint(t *testing.T) {
	f := newFixture(Options{MinAccrualInterval: 24 * time.Hour})
	dev := sequester("dev-1", f.now.Add(-48*time.Hour))
	f.devices.byID[dev.ID] = dev
	f.querier.points = []*tsdomain.Point{
		point("dev-1", f.now.Add(-30*time.Hour), "200", "100"),
		point("dev-1", f.now.Add(-6*time.Hour), "300", "200"),
	}

	report, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.Processed != 1 || report.Succeeded != 1 {
		t.Fatalf("report = %+v, want 1 processed, 1 succeeded", report)
	}
	if len(f.ledger.created) != 1 {
		t.Fatalf("got %d mints, want 1", len(f.ledger.created))
	}

	tx := f.ledger.created[0]
	if !tx.Amount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("mint amount = %s, want 5 (500 co2 + 300 energy)", tx.Amount)
	}
	if tx.Status != ledgerdomain.StatusPending {
		t.Errorf("mint status = %s, want PENDING", tx.Status)
	}
	ev := tx.Metadata.Accrual
	if tx.Metadata.Kind != ledgerdomain.MetadataAccrual || ev == nil {
		t.Fatal("mint should carry accrual evidence")
	}
	if !ev.WindowStart.Equal(dev.CreatedAt) || !ev.WindowEnd.Equal(f.now) {
		t.Errorf("evidence window = [%v, %v), want [%v, %v)", ev.WindowStart, ev.WindowEnd, dev.CreatedAt, f.now)
	}
	if ev.SamplesUsed != 2 {
		t.Errorf("SamplesUsed = %d, want 2", ev.SamplesUsed)
	}
	if len(ev.EvidenceHash) != 64 {
		t.Errorf("evidence hash length = %d, want 64", len(ev.EvidenceHash))
	}
}

func TestTick_SkipsTooSoon(t *testing.T) {
	f := newFixture(Options{MinAccrualInterval: 24 * time.Hour})
	f.devices.byID["dev-1"] = sequester("dev-1", f.now.Add(-48*time.Hour))
	f.mints.add(&ledgerdomain.Transaction{
		ID:       "tx-1",
		DeviceID: "dev-1",
		Type:     ledgerdomain.TxMint,
		Metadata: ledgerdomain.NewAccrualMetadata(ledgerdomain.AccrualEvidence{
			WindowEnd: f.now.Add(-6 * time.Hour),
		}),
		CreatedAt: f.now.Add(-6 * time.Hour),
	})
	f.querier.points = []*tsdomain.Point{point("dev-1", f.now.Add(-time.Hour), "100", "100")}

	report, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.Skipped != 1 || report.Succeeded != 0 {
		t.Errorf("report = %+v, want the device skipped as too soon", report)
	}
	if len(f.ledger.created) != 0 {
		t.Error("no mint should be filed inside the minimum interval")
	}
}

func TestTick_InsufficientDataLeavesWatermark(t *testing.T) {
	f := newFixture(Options{MinAccrualInterval: 24 * time.Hour, AdvanceOnZeroCredits: true})
	dev := sequester("dev-1", f.now.Add(-48*time.Hour))
	f.devices.byID[dev.ID] = dev

	report, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.Skipped != 1 {
		t.Errorf("report = %+v, want skipped", report)
	}

	// Watermark untouched so the window is retried when data arrives.
	mark, _ := f.marks.Resolve(context.Background(), dev, f.now)
	if !mark.Equal(dev.CreatedAt) {
		t.Errorf("mark = %v, want unchanged %v", mark, dev.CreatedAt)
	}
}

func TestTick_ZeroCreditsAdvances(t *testing.T) {
	f := newFixture(Options{MinAccrualInterval: 24 * time.Hour, AdvanceOnZeroCredits: true})
	dev := sequester("dev-1", f.now.Add(-48*time.Hour))
	f.devices.byID[dev.ID] = dev
	f.querier.points = []*tsdomain.Point{point("dev-1", f.now.Add(-30*time.Hour), "0", "0")}

	report, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.Skipped != 1 {
		t.Errorf("report = %+v, want skipped", report)
	}
	if len(f.ledger.created) != 0 {
		t.Error("zero-credit window must not file a mint")
	}

	mark, _ := f.marks.Resolve(context.Background(), dev, f.now)
	if !mark.Equal(f.now) {
		t.Errorf("mark = %v, want advanced to window end %v", mark, f.now)
	}
}

func TestTick_IsolatesDeviceFailures(t *testing.T) {
	f := newFixture(Options{MinAccrualInterval: 24 * time.Hour, Workers: 2})
	f.devices.byID["dev-ok"] = sequester("dev-ok", f.now.Add(-48*time.Hour))
	f.devices.byID["dev-bad"] = sequester("dev-bad", f.now.Add(-48*time.Hour))
	f.querier.points = []*tsdomain.Point{point("dev-ok", f.now.Add(-6*time.Hour), "500", "300")}
	f.querier.errFor["dev-bad"] = errors.New("tsdb unavailable")

	report, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.Processed != 2 || report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("report = %+v, want one success and one isolated failure", report)
	}
	if len(f.ledger.created) != 1 || f.ledger.created[0].DeviceID != "dev-ok" {
		t.Error("healthy device should still mint when a sibling fails")
	}
}

func TestTick_DeviceTimeoutFailsDevice(t *testing.T) {
	f := newFixture(Options{MinAccrualInterval: 24 * time.Hour, DeviceTimeout: 50 * time.Millisecond, Workers: 2})
	f.devices.byID["dev-hung"] = sequester("dev-hung", f.now.Add(-48*time.Hour))
	f.devices.byID["dev-ok"] = sequester("dev-ok", f.now.Add(-48*time.Hour))
	f.querier.stall = map[string]bool{"dev-hung": true}
	f.querier.points = []*tsdomain.Point{point("dev-ok", f.now.Add(-6*time.Hour), "500", "300")}

	report, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.Processed != 2 || report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("report = %+v, want the hung device failed and the sibling minted", report)
	}
	if len(f.ledger.created) != 1 || f.ledger.created[0].DeviceID != "dev-ok" {
		t.Error("a hung store call must fail only its own device")
	}
}

func TestTick_RejectsOverlap(t *testing.T) {
	f := newFixture(Options{})
	f.sched.processing.Store(true)

	_, err := f.sched.Tick(context.Background())
	if !errors.Is(err, ErrTickInProgress) {
		t.Errorf("err = %v, want ErrTickInProgress", err)
	}
}

func TestTick_PendingMintSkips(t *testing.T) {
	f := newFixture(Options{MinAccrualInterval: 24 * time.Hour})
	f.devices.byID["dev-1"] = sequester("dev-1", f.now.Add(-48*time.Hour))
	f.querier.points = []*tsdomain.Point{point("dev-1", f.now.Add(-6*time.Hour), "500", "300")}
	f.ledger.pending = map[string]bool{"dev-1": true}

	report, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.Skipped != 1 || report.Failed != 0 {
		t.Errorf("report = %+v, want a skip when a pending mint holds the device", report)
	}
}

func TestProcessDevice_Manual(t *testing.T) {
	f := newFixture(Options{MinAccrualInterval: 24 * time.Hour})
	dev := sequester("dev-1", f.now.Add(-48*time.Hour))
	f.devices.byID[dev.ID] = dev
	// Watermark only 6h old: scheduled runs would skip, manual must not.
	f.mints.add(&ledgerdomain.Transaction{
		ID:       "tx-0",
		DeviceID: "dev-1",
		Type:     ledgerdomain.TxMint,
		Metadata: ledgerdomain.NewAccrualMetadata(ledgerdomain.AccrualEvidence{
			WindowEnd: f.now.Add(-6 * time.Hour),
		}),
		CreatedAt: f.now.Add(-6 * time.Hour),
	})
	f.querier.points = []*tsdomain.Point{point("dev-1", f.now.Add(-time.Hour), "500", "300")}

	outcome, err := f.sched.ProcessDevice(context.Background(), "dev-1", nil)
	if err != nil {
		t.Fatalf("ProcessDevice: %v", err)
	}
	if outcome.Skipped != "" {
		t.Fatalf("outcome skipped %q, manual runs ignore the minimum interval", outcome.Skipped)
	}
	if outcome.Transaction == nil || !outcome.Credits.Equal(decimal.NewFromInt(5)) {
		t.Errorf("outcome = %+v, want a 5-credit mint", outcome)
	}
}

func TestProcessDevice_ExplicitWindow(t *testing.T) {
	f := newFixture(Options{})
	f.devices.byID["dev-1"] = sequester("dev-1", f.now.Add(-200*time.Hour))
	f.querier.points = []*tsdomain.Point{
		point("dev-1", f.now.Add(-100*time.Hour), "500", "300"),
		point("dev-1", f.now.Add(-time.Hour), "999", "999"),
	}

	start := f.now.Add(-120 * time.Hour)
	end := f.now.Add(-96 * time.Hour)
	outcome, err := f.sched.ProcessDevice(context.Background(), "dev-1", &Window{Start: start, End: end})
	if err != nil {
		t.Fatalf("ProcessDevice: %v", err)
	}
	if outcome.SamplesUsed != 1 {
		t.Errorf("SamplesUsed = %d, want only the in-window sample", outcome.SamplesUsed)
	}
	if !outcome.WindowStart.Equal(start) || !outcome.WindowEnd.Equal(end) {
		t.Errorf("outcome window = [%v, %v), want the requested one", outcome.WindowStart, outcome.WindowEnd)
	}
}

func TestProcessDevice_Rejections(t *testing.T) {
	f := newFixture(Options{})
	f.devices.byID["dev-emit"] = &devicedomain.Device{
		ID: "dev-emit", CompanyID: "co-1", Type: devicedomain.TypeEmitter, Active: true, CreatedAt: f.now.Add(-48 * time.Hour),
	}

	if _, err := f.sched.ProcessDevice(context.Background(), "dev-404", nil); apperror.KindOf(err) != apperror.KindNotFound {
		t.Errorf("unknown device: KindOf = %s, want NOT_FOUND", apperror.KindOf(err))
	}
	if _, err := f.sched.ProcessDevice(context.Background(), "dev-emit", nil); apperror.KindOf(err) != apperror.KindValidation {
		t.Errorf("emitter device: KindOf = %s, want VALIDATION", apperror.KindOf(err))
	}
}

func TestAvailability(t *testing.T) {
	f := newFixture(Options{})
	dev := sequester("dev-1", f.now.Add(-48*time.Hour))
	f.devices.byID[dev.ID] = dev
	f.querier.points = []*tsdomain.Point{point("dev-1", f.now.Add(-6*time.Hour), "500", "300")}

	engine := accrual.NewEngine(f.querier, accrual.DefaultPolicy())
	avail := NewAvailability(engine, f.marks, f.devices).WithNow(func() time.Time { return f.now })

	got, err := avail.AvailableToMint(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("AvailableToMint: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(5)) {
		t.Errorf("available = %s, want 5", got)
	}

	// Empty window (no samples) is zero, not an error.
	f.querier.points = nil
	got, err = avail.AvailableToMint(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("AvailableToMint with no data: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("available = %s, want 0", got)
	}

	if _, err := avail.AvailableToMint(context.Background(), "dev-404"); apperror.KindOf(err) != apperror.KindNotFound {
		t.Errorf("unknown device: KindOf = %s, want NOT_FOUND", apperror.KindOf(err))
	}
}

func TestEvidenceHash_Deterministic(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	res := &accrual.Result{
		Credits:     decimal.NewFromInt(5),
		CO2Reduced:  decimal.NewFromInt(500),
		EnergySaved: decimal.NewFromInt(300),
		SamplesUsed: 2,
	}

	h1 := evidenceHash("dev-1", start, end, res)
	h2 := evidenceHash("dev-1", start, end, res)
	if h1 != h2 {
		t.Error("evidence hash must be deterministic")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
	if evidenceHash("dev-2", start, end, res) == h1 {
		t.Error("different devices must hash differently")
	}
}
