package processor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"carbon-ledger/backend/internal/accrual"
	"carbon-ledger/backend/internal/apperror"
	devicedomain "carbon-ledger/backend/internal/device/domain"
)

// DeviceGetter loads a single device.
type DeviceGetter interface {
	GetByID(ctx context.Context, id string) (*devicedomain.Device, error)
}

// Availability answers how many credits a device has accrued since its
// watermark but not yet requested to mint. The ledger consults it as the
// ceiling for manual mint requests.
type Availability struct {
	engine  *accrual.Engine
	marks   *Watermarks
	devices DeviceGetter
	nowF    func() time.Time
}

// NewAvailability returns an availability source over the given engine and watermarks.
func NewAvailability(engine *accrual.Engine, marks *Watermarks, devices DeviceGetter) *Availability {
	return &Availability{
		engine:  engine,
		marks:   marks,
		devices: devices,
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock for tests.
func (a *Availability) WithNow(nowF func() time.Time) *Availability {
	a.nowF = nowF
	return a
}

// AvailableToMint computes the device's open window [watermark, now) through
// the accrual engine. A window with no samples is worth zero here, not an error.
func (a *Availability) AvailableToMint(ctx context.Context, deviceID string) (decimal.Decimal, error) {
	dev, err := a.devices.GetByID(ctx, deviceID)
	if err != nil {
		return decimal.Zero, apperror.Persistence("load device", err)
	}
	if dev == nil {
		return decimal.Zero, apperror.NotFound("device", deviceID)
	}

	now := a.nowF()
	mark, err := a.marks.Resolve(ctx, dev, now)
	if err != nil {
		return decimal.Zero, apperror.Persistence("resolve watermark", err)
	}
	if !mark.Before(now) {
		return decimal.Zero, nil
	}

	res, err := a.engine.ComputeCredits(ctx, deviceID, mark, now)
	if err != nil {
		return decimal.Zero, err
	}
	if res.Reason != "" {
		return decimal.Zero, nil
	}
	return res.Credits, nil
}
