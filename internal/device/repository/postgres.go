package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"carbon-ledger/backend/internal/device/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a device repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the device for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, company_id, device_type, active, last_seen_at, created_at FROM device WHERE id = $1`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// ListActiveByType returns all active devices of the given type, ordered by id
// so scheduler runs visit devices in a stable order. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListActiveByType(ctx context.Context, t domain.Type) ([]*domain.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, company_id, device_type, active, last_seen_at, created_at
		 FROM device WHERE device_type = $1 AND active ORDER BY id`, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Create persists the device to the database. The device must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.Device) error {
	lastSeen := sql.NullTime{}
	if d.LastSeenAt != nil {
		lastSeen = sql.NullTime{Time: *d.LastSeenAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device (id, company_id, device_type, active, last_seen_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.CompanyID, string(d.Type), d.Active, lastSeen, d.CreatedAt,
	)
	return err
}

// UpdateLastSeen sets the device's last-seen timestamp for the given id. Returns an error if the update fails.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE device SET last_seen_at = $2 WHERE id = $1`, id, at)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*domain.Device, error) {
	var (
		d        domain.Device
		devType  string
		lastSeen sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.CompanyID, &devType, &d.Active, &lastSeen, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Type = domain.Type(devType)
	if lastSeen.Valid {
		d.LastSeenAt = &lastSeen.Time
	}
	return &d, nil
}
