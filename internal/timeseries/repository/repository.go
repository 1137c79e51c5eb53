// Package repository defines the narrow time-series store contract. The
// production implementation is a Postgres table; a dedicated TSDB can replace
// it without touching callers.
package repository

import (
	"context"
	"time"

	"carbon-ledger/backend/internal/timeseries/domain"
)

// Writer appends tagged measurement points. Write must be bounded by the
// context deadline; a failed write is reported, never silently dropped.
type Writer interface {
	Write(ctx context.Context, p *domain.Point) error
}

// Querier answers windowed range queries. QueryWindow returns all points with
// recorded_at in [start, end), ordered ascending. Re-querying the same window
// returns the same result set, which accrual idempotence depends on.
type Querier interface {
	QueryWindow(ctx context.Context, deviceID string, start, end time.Time) ([]*domain.Point, error)
}

// Repository is the full time-series contract.
type Repository interface {
	Writer
	Querier
}
