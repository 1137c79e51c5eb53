// Package processor drives scheduled credit accrual: it walks active
// sequestering devices, derives each device's accrual watermark from its mint
// history, prices the open window through the accrual engine, and files
// PENDING mints with the ledger.
package processor

import (
	"context"
	"sync"
	"time"

	devicedomain "carbon-ledger/backend/internal/device/domain"
	ledgerdomain "carbon-ledger/backend/internal/ledger/domain"
)

// MintHistory is the slice of the ledger store needed for watermark resolution.
// LatestMintByWindow must rank mints by accrual window end (creation time for
// mints without accrual evidence), not by creation time alone: a backfill mint
// for an old window is newest by created_at but must not pull the watermark
// below windows an earlier mint already accounted for.
type MintHistory interface {
	LatestMintByWindow(ctx context.Context, deviceID string) (*ledgerdomain.Transaction, error)
}

// Watermarks derives per-device accrual watermarks. The watermark is not
// stored: it is recomputed from the latest MINT's accrual window, so a restart
// rescans at most the open window and accrual stays idempotent. Windows that
// earned nothing leave no transaction behind; their advances are held in
// memory only and are rebuilt by rescanning after a restart.
type Watermarks struct {
	mints       MintHistory
	maxLookback time.Duration

	mu          sync.Mutex
	zeroAdvance map[string]time.Time
}

// NewWatermarks returns a watermark resolver over the given mint history.
// maxLookback bounds the first window of a device with no usable history.
func NewWatermarks(mints MintHistory, maxLookback time.Duration) *Watermarks {
	return &Watermarks{
		mints:       mints,
		maxLookback: maxLookback,
		zeroAdvance: make(map[string]time.Time),
	}
}

// Resolve returns the device's accrual watermark: the end of the last window
// already accounted for. Order of precedence:
//
//  1. the latest accrual window end across the device's mints (creation time
//     for mints without accrual evidence),
//  2. the device's registration time,
//  3. now minus the lookback bound.
//
// An in-memory zero-credit advance overrides all of these when it is later.
// The watermark never regresses: minting an old window out of order cannot
// reopen windows that were already accounted for.
func (w *Watermarks) Resolve(ctx context.Context, dev *devicedomain.Device, now time.Time) (time.Time, error) {
	mark := now.Add(-w.maxLookback)
	if !dev.CreatedAt.IsZero() && dev.CreatedAt.After(mark) {
		mark = dev.CreatedAt
	}

	latest, err := w.mints.LatestMintByWindow(ctx, dev.ID)
	if err != nil {
		return time.Time{}, err
	}
	if latest != nil {
		from := latest.CreatedAt
		if latest.Metadata.Kind == ledgerdomain.MetadataAccrual && latest.Metadata.Accrual != nil {
			from = latest.Metadata.Accrual.WindowEnd
		}
		if from.After(mark) {
			mark = from
		}
	}

	w.mu.Lock()
	if adv, ok := w.zeroAdvance[dev.ID]; ok && adv.After(mark) {
		mark = adv
	}
	w.mu.Unlock()

	return mark, nil
}

// AdvanceZero records that the device's window up to `to` was examined and
// earned nothing, so the next resolve starts after it. A later MINT makes the
// entry redundant; Resolve always takes the max.
func (w *Watermarks) AdvanceZero(deviceID string, to time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cur, ok := w.zeroAdvance[deviceID]; !ok || to.After(cur) {
		w.zeroAdvance[deviceID] = to
	}
}
