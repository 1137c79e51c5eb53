package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"carbon-ledger/backend/internal/apperror"
	devicedomain "carbon-ledger/backend/internal/device/domain"
	"carbon-ledger/backend/internal/ledger/domain"
	"carbon-ledger/backend/internal/ledger/repository"
)

type memTxRepo struct {
	mu  sync.Mutex
	m   map[string]*domain.Transaction
	seq int
}

func newMemTxRepo() *memTxRepo {
	return &memTxRepo{m: make(map[string]*domain.Transaction)}
}

func (r *memTxRepo) Create(ctx context.Context, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Type == domain.TxMint && t.Status == domain.StatusPending {
		for _, existing := range r.m {
			if existing.DeviceID == t.DeviceID && existing.Type == domain.TxMint && existing.Status == domain.StatusPending {
				return repository.ErrDuplicatePendingMint
			}
		}
	}
	t2 := *t
	r.seq++
	t2.CreatedAt = t.CreatedAt.Add(time.Duration(r.seq)) // stable ordering for same-instant inserts
	r.m[t.ID] = &t2
	return nil
}

func (r *memTxRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id], nil
}

func (r *memTxRepo) GetPendingMint(ctx context.Context, deviceID string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.m {
		if t.DeviceID == deviceID && t.Type == domain.TxMint && t.Status == domain.StatusPending {
			return t, nil
		}
	}
	return nil, nil
}

func (r *memTxRepo) ListByDevice(ctx context.Context, deviceID string) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, t := range r.m {
		if t.DeviceID == deviceID {
			out = append(out, t)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.Before(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *memTxRepo) LatestMintByWindow(ctx context.Context, deviceID string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := func(t *domain.Transaction) time.Time {
		if t.Metadata.Kind == domain.MetadataAccrual && t.Metadata.Accrual != nil {
			return t.Metadata.Accrual.WindowEnd
		}
		return t.CreatedAt
	}
	var latest *domain.Transaction
	for _, t := range r.m {
		if t.DeviceID == deviceID && t.Type == domain.TxMint {
			if latest == nil || end(t).After(end(latest)) {
				latest = t
			}
		}
	}
	return latest, nil
}

func (r *memTxRepo) Confirm(ctx context.Context, id, externalRef string, at time.Time) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.m[id]
	if !ok || t.Status != domain.StatusPending {
		return nil, repository.ErrNotPending
	}
	t.Status = domain.StatusConfirmed
	t.ExternalRef = &externalRef
	t.UpdatedAt = at
	return t, nil
}

func (r *memTxRepo) MarkFailed(ctx context.Context, id, detail string, at time.Time) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.m[id]
	if !ok || t.Status != domain.StatusPending {
		return nil, repository.ErrNotPending
	}
	t.Status = domain.StatusFailed
	t.ErrorDetail = &detail
	t.UpdatedAt = at
	return t, nil
}

type memDeviceRepo struct {
	m map[string]*devicedomain.Device
}

func (r *memDeviceRepo) GetByID(ctx context.Context, id string) (*devicedomain.Device, error) {
	return r.m[id], nil
}

type fixedCeiling struct {
	available decimal.Decimal
	err       error
}

func (c *fixedCeiling) AvailableToMint(ctx context.Context, deviceID string) (decimal.Decimal, error) {
	if c.err != nil {
		return decimal.Zero, c.err
	}
	return c.available, nil
}

func testClock() func() time.Time {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func sequester(id string) *devicedomain.Device {
	return &devicedomain.Device{
		ID:        id,
		CompanyID: "co-1",
		Type:      devicedomain.TypeSequester,
		Active:    true,
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestService(repo *memTxRepo, ceiling *fixedCeiling) *Service {
	devices := &memDeviceRepo{m: map[string]*devicedomain.Device{
		"dev-1": sequester("dev-1"),
		"dev-emit": {
			ID: "dev-emit", CompanyID: "co-1", Type: devicedomain.TypeEmitter, Active: true,
			CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
	return NewService(repo, devices, ceiling).WithNow(testClock())
}

func manualMeta() domain.Metadata {
	return domain.NewManualMetadata(domain.ManualAdjustment{DataHash: "hash-1"})
}

func TestCreateMintRequest(t *testing.T) {
	repo := newMemTxRepo()
	svc := newTestService(repo, &fixedCeiling{available: decimal.NewFromInt(10)})

	tx, err := svc.CreateMintRequest(context.Background(), "dev-1", decimal.RequireFromString("5"), manualMeta())
	if err != nil {
		t.Fatalf("CreateMintRequest: %v", err)
	}
	if tx.Status != domain.StatusPending {
		t.Errorf("Status = %s, want PENDING", tx.Status)
	}
	if tx.Type != domain.TxMint {
		t.Errorf("Type = %s, want MINT", tx.Type)
	}
	if tx.ID == "" {
		t.Error("ID should be generated")
	}
}

func TestCreateMintRequest_Validation(t *testing.T) {
	svc := newTestService(newMemTxRepo(), &fixedCeiling{available: decimal.NewFromInt(10)})

	cases := []struct {
		name     string
		deviceID string
		amount   decimal.Decimal
		wantKind apperror.Kind
	}{
		{"zero amount", "dev-1", decimal.Zero, apperror.KindValidation},
		{"negative amount", "dev-1", decimal.NewFromInt(-3), apperror.KindValidation},
		{"empty device", "", decimal.NewFromInt(1), apperror.KindValidation},
		{"unknown device", "dev-404", decimal.NewFromInt(1), apperror.KindNotFound},
		{"emitter device", "dev-emit", decimal.NewFromInt(1), apperror.KindValidation},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.CreateMintRequest(context.Background(), c.deviceID, c.amount, manualMeta())
			if err == nil {
				t.Fatal("expected error")
			}
			if got := apperror.KindOf(err); got != c.wantKind {
				t.Errorf("KindOf = %s, want %s", got, c.wantKind)
			}
		})
	}
}

func TestCreateMintRequest_SinglePending(t *testing.T) {
	repo := newMemTxRepo()
	svc := newTestService(repo, &fixedCeiling{available: decimal.NewFromInt(100)})

	first, err := svc.CreateMintRequest(context.Background(), "dev-1", decimal.NewFromInt(5), manualMeta())
	if err != nil {
		t.Fatalf("first CreateMintRequest: %v", err)
	}

	_, err = svc.CreateMintRequest(context.Background(), "dev-1", decimal.NewFromInt(3), manualMeta())
	if err == nil {
		t.Fatal("second CreateMintRequest should be rejected")
	}
	var conflict *apperror.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %T, want ConflictError", err)
	}
	if conflict.ExistingID != first.ID {
		t.Errorf("ExistingID = %q, want %q", conflict.ExistingID, first.ID)
	}
	if len(repo.m) != 1 {
		t.Errorf("repo has %d rows, want 1 (no second row created)", len(repo.m))
	}
}

func TestCreateMintRequest_CeilingEnforced(t *testing.T) {
	svc := newTestService(newMemTxRepo(), &fixedCeiling{available: decimal.RequireFromString("4.5")})

	_, err := svc.CreateMintRequest(context.Background(), "dev-1", decimal.NewFromInt(5), manualMeta())
	if err == nil {
		t.Fatal("mint above ceiling should be rejected")
	}
	var insufficient *apperror.InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("error = %T, want InsufficientCreditsError", err)
	}
	if want := decimal.RequireFromString("4.5"); !insufficient.Available.Equal(want) {
		t.Errorf("Available = %s, want %s", insufficient.Available, want)
	}
}

func TestConfirm(t *testing.T) {
	repo := newMemTxRepo()
	svc := newTestService(repo, &fixedCeiling{available: decimal.NewFromInt(10)})

	tx, err := svc.CreateMintRequest(context.Background(), "dev-1", decimal.NewFromInt(5), manualMeta())
	if err != nil {
		t.Fatalf("CreateMintRequest: %v", err)
	}

	confirmed, err := svc.Confirm(context.Background(), tx.ID, "0xabc123")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.Status != domain.StatusConfirmed {
		t.Errorf("Status = %s, want CONFIRMED", confirmed.Status)
	}
	if confirmed.ExternalRef == nil || *confirmed.ExternalRef != "0xabc123" {
		t.Error("ExternalRef should be recorded")
	}

	// Terminal states are final.
	if _, err := svc.Confirm(context.Background(), tx.ID, "0xdef"); err == nil {
		t.Fatal("second Confirm should be rejected")
	} else if apperror.KindOf(err) != apperror.KindConflict {
		t.Errorf("KindOf = %s, want %s", apperror.KindOf(err), apperror.KindConflict)
	}
	if _, err := svc.Fail(context.Background(), tx.ID, "late failure"); err == nil {
		t.Fatal("Fail after Confirm should be rejected")
	}
}

func TestFail(t *testing.T) {
	repo := newMemTxRepo()
	svc := newTestService(repo, &fixedCeiling{available: decimal.NewFromInt(10)})

	tx, err := svc.CreateMintRequest(context.Background(), "dev-1", decimal.NewFromInt(5), manualMeta())
	if err != nil {
		t.Fatalf("CreateMintRequest: %v", err)
	}

	failed, err := svc.Fail(context.Background(), tx.ID, "timeout waiting for confirmation")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if failed.Status != domain.StatusFailed {
		t.Errorf("Status = %s, want FAILED", failed.Status)
	}
	if failed.ErrorDetail == nil || *failed.ErrorDetail == "" {
		t.Error("ErrorDetail should be recorded")
	}

	if _, err := svc.Confirm(context.Background(), tx.ID, "0xabc"); err == nil {
		t.Fatal("Confirm after Fail should be rejected")
	}
}

func TestConfirm_UnknownTransaction(t *testing.T) {
	svc := newTestService(newMemTxRepo(), &fixedCeiling{available: decimal.NewFromInt(10)})

	_, err := svc.Confirm(context.Background(), "tx-404", "0xabc")
	if err == nil {
		t.Fatal("Confirm of unknown transaction should fail")
	}
	if apperror.KindOf(err) != apperror.KindNotFound {
		t.Errorf("KindOf = %s, want %s", apperror.KindOf(err), apperror.KindNotFound)
	}
}

func TestListTransactions(t *testing.T) {
	repo := newMemTxRepo()
	svc := newTestService(repo, &fixedCeiling{available: decimal.NewFromInt(100)})

	first, err := svc.CreateMintRequest(context.Background(), "dev-1", decimal.NewFromInt(5), manualMeta())
	if err != nil {
		t.Fatalf("CreateMintRequest: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), first.ID, "0x1"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	second, err := svc.CreateMintRequest(context.Background(), "dev-1", decimal.NewFromInt(2), manualMeta())
	if err != nil {
		t.Fatalf("second CreateMintRequest: %v", err)
	}
	if _, err := svc.Fail(context.Background(), second.ID, "rejected"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if _, err := svc.CreateMintRequest(context.Background(), "dev-1", decimal.NewFromInt(1), manualMeta()); err != nil {
		t.Fatalf("third CreateMintRequest: %v", err)
	}

	list, err := svc.ListTransactions(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(list.Transactions) != 3 {
		t.Fatalf("got %d transactions, want 3", len(list.Transactions))
	}
	for i := 1; i < len(list.Transactions); i++ {
		if list.Transactions[i].CreatedAt.Before(list.Transactions[i-1].CreatedAt) {
			t.Error("transactions not ordered by creation time")
		}
	}
	if list.StatusCounts[domain.StatusConfirmed] != 1 ||
		list.StatusCounts[domain.StatusFailed] != 1 ||
		list.StatusCounts[domain.StatusPending] != 1 {
		t.Errorf("StatusCounts = %v", list.StatusCounts)
	}
}

func TestAvailableToMint_UnknownDevice(t *testing.T) {
	svc := newTestService(newMemTxRepo(), &fixedCeiling{available: decimal.NewFromInt(10)})

	_, err := svc.AvailableToMint(context.Background(), "dev-404")
	if err == nil {
		t.Fatal("AvailableToMint for unknown device should fail")
	}
	if apperror.KindOf(err) != apperror.KindNotFound {
		t.Errorf("KindOf = %s, want %s", apperror.KindOf(err), apperror.KindNotFound)
	}
}
