package repository

import (
	"context"
	"database/sql"
	"time"

	"carbon-ledger/backend/internal/apperror"
	"carbon-ledger/backend/internal/timeseries/domain"
)

// writeTimeout bounds a single point write so ingest never blocks indefinitely
// on a slow store, even when the caller passes an unbounded context.
const writeTimeout = 5 * time.Second

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a time-series repository backed by the telemetry_point table.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Write appends the point. Store failures are wrapped as UpstreamError so
// callers treat them as retryable rather than as "zero data".
func (r *PostgresRepository) Write(ctx context.Context, p *domain.Point) error {
	if err := p.Validate(); err != nil {
		return apperror.Validation("point", err.Error())
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := r.db.ExecContext(writeCtx,
		`INSERT INTO telemetry_point (device_id, device_type, company_id, co2_reduced, energy_saved, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.DeviceID, p.DeviceType, p.CompanyID, p.CO2Reduced, p.EnergySaved, p.RecordedAt,
	)
	if err != nil {
		return apperror.Upstream("timeseries", err)
	}
	return nil
}

// QueryWindow returns all points for deviceID with start <= recorded_at < end,
// ordered by time ascending. Store failures are wrapped as UpstreamError.
func (r *PostgresRepository) QueryWindow(ctx context.Context, deviceID string, start, end time.Time) ([]*domain.Point, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT device_id, device_type, company_id, co2_reduced, energy_saved, recorded_at
		 FROM telemetry_point
		 WHERE device_id = $1 AND recorded_at >= $2 AND recorded_at < $3
		 ORDER BY recorded_at ASC`,
		deviceID, start, end,
	)
	if err != nil {
		return nil, apperror.Upstream("timeseries", err)
	}
	defer rows.Close()

	var out []*domain.Point
	for rows.Next() {
		var p domain.Point
		if err := rows.Scan(&p.DeviceID, &p.DeviceType, &p.CompanyID, &p.CO2Reduced, &p.EnergySaved, &p.RecordedAt); err != nil {
			return nil, apperror.Upstream("timeseries", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Upstream("timeseries", err)
	}
	return out, nil
}
