package ingest

import (
	"context"
	"log"
	"time"

	"carbon-ledger/backend/internal/apperror"
	devicedomain "carbon-ledger/backend/internal/device/domain"
	tsdomain "carbon-ledger/backend/internal/timeseries/domain"
	"carbon-ledger/backend/internal/wallet"
)

// KeyResolver maps a raw API key to its owning company.
type KeyResolver interface {
	Resolve(ctx context.Context, apiKey string) (*wallet.Resolution, error)
}

// DeviceRepo is the slice of the device store needed for intake.
type DeviceRepo interface {
	GetByID(ctx context.Context, id string) (*devicedomain.Device, error)
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}

// PointWriter appends points to the time-series store.
type PointWriter interface {
	Write(ctx context.Context, p *tsdomain.Point) error
}

// Service attributes incoming samples and persists them.
type Service struct {
	resolver KeyResolver
	devices  DeviceRepo
	points   PointWriter
	nowF     func() time.Time
}

// NewService returns an ingest service.
func NewService(resolver KeyResolver, devices DeviceRepo, points PointWriter) *Service {
	return &Service{
		resolver: resolver,
		devices:  devices,
		points:   points,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the service clock for tests.
func (s *Service) WithNow(nowF func() time.Time) *Service {
	s.nowF = nowF
	return s
}

// Ingest attributes the sample through its API key and appends it to the
// time-series store. The sample's device must exist, be active, and belong to
// the key's company; a missing recorded-at timestamp defaults to intake time.
func (s *Service) Ingest(ctx context.Context, apiKey string, sample Sample) (*tsdomain.Point, error) {
	if err := sample.Validate(); err != nil {
		return nil, apperror.Validation("sample", err.Error())
	}

	res, err := s.resolver.Resolve(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	dev, err := s.devices.GetByID(ctx, sample.DeviceID)
	if err != nil {
		return nil, apperror.Persistence("load device", err)
	}
	if dev == nil {
		return nil, apperror.NotFound("device", sample.DeviceID)
	}
	if dev.CompanyID != res.CompanyID {
		return nil, apperror.Validation("deviceId", "device does not belong to the key's company")
	}
	if !dev.Active {
		return nil, apperror.Validation("deviceId", "device is inactive")
	}

	now := s.nowF()
	recordedAt := sample.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = now
	}

	p := &tsdomain.Point{
		DeviceID:    dev.ID,
		DeviceType:  string(dev.Type),
		CompanyID:   dev.CompanyID,
		CO2Reduced:  sample.CO2Reduced,
		EnergySaved: sample.EnergySaved,
		RecordedAt:  recordedAt,
	}
	if err := s.points.Write(ctx, p); err != nil {
		return nil, err
	}

	// Liveness bookkeeping is best-effort; the point is already durable.
	if err := s.devices.UpdateLastSeen(ctx, dev.ID, now); err != nil {
		log.Printf("ingest: update last seen for %s: %v", dev.ID, err)
	}
	return p, nil
}
