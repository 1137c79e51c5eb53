package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"carbon-ledger/backend/internal/ledger/domain"
)

// pgUniqueViolation is the Postgres error code raised by the partial unique
// index that enforces one PENDING MINT per device.
const pgUniqueViolation = "23505"

const transactionColumns = `id, device_id, tx_type, amount, status, external_ref, error_detail, metadata, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a ledger repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the transaction. Returns ErrDuplicatePendingMint when the
// device already has a PENDING MINT; the index makes the check race-safe.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Transaction) error {
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO credit_transaction (id, device_id, tx_type, amount, status, external_ref, error_detail, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.DeviceID, string(t.Type), t.Amount, string(t.Status),
		nullString(t.ExternalRef), nullString(t.ErrorDetail), meta, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == "credit_transaction_one_pending_mint" {
			return ErrDuplicatePendingMint
		}
		return err
	}
	return nil
}

// GetByID returns the transaction for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM credit_transaction WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// GetPendingMint returns the device's PENDING MINT, or nil if it has none.
func (r *PostgresRepository) GetPendingMint(ctx context.Context, deviceID string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM credit_transaction
		 WHERE device_id = $1 AND tx_type = 'MINT' AND status = 'PENDING'`, deviceID)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// ListByDevice returns all transactions for the device ordered by creation time ascending.
func (r *PostgresRepository) ListByDevice(ctx context.Context, deviceID string) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM credit_transaction
		 WHERE device_id = $1 ORDER BY created_at ASC, id ASC`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LatestMintByWindow returns the MINT whose accounted window ends latest,
// regardless of status, or nil if the device has none. Mints without accrual
// evidence rank by creation time. Ordering by the window end rather than
// created_at keeps a backfill mint for an old window from shadowing an earlier
// mint whose window reaches further.
func (r *PostgresRepository) LatestMintByWindow(ctx context.Context, deviceID string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM credit_transaction
		 WHERE device_id = $1 AND tx_type = 'MINT'
		 ORDER BY COALESCE((metadata #>> '{accrual,windowEnd}')::timestamptz, created_at) DESC, id DESC
		 LIMIT 1`, deviceID)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// Confirm flips the transaction to CONFIRMED and applies its balance effect in
// one database transaction. The status='PENDING' predicate is the state-machine
// guard: zero rows means the record is missing or already terminal.
func (r *PostgresRepository) Confirm(ctx context.Context, id, externalRef string, at time.Time) (*domain.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		deviceID string
		txType   string
		amount   string
	)
	err = tx.QueryRowContext(ctx,
		`UPDATE credit_transaction
		 SET status = 'CONFIRMED', external_ref = $2, updated_at = $3
		 WHERE id = $1 AND status = 'PENDING'
		 RETURNING device_id, tx_type, amount`,
		id, externalRef, at,
	).Scan(&deviceID, &txType, &amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotPending
		}
		return nil, err
	}

	switch domain.TxType(txType) {
	case domain.TxMint:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO company_credit (company_id, total_credit, current_credit, sold_credit, offer_price, updated_at)
			 SELECT d.company_id, $2::numeric, $2::numeric, 0, 0, $3 FROM device d WHERE d.id = $1
			 ON CONFLICT (company_id) DO UPDATE SET
			   total_credit   = company_credit.total_credit + EXCLUDED.total_credit,
			   current_credit = company_credit.current_credit + EXCLUDED.current_credit,
			   updated_at     = EXCLUDED.updated_at`,
			deviceID, amount, at,
		)
		if err != nil {
			return nil, err
		}
	case domain.TxBurn:
		res, err := tx.ExecContext(ctx,
			`UPDATE company_credit cc
			 SET current_credit = cc.current_credit - $2::numeric, updated_at = $3
			 FROM device d
			 WHERE d.id = $1 AND cc.company_id = d.company_id AND cc.current_credit >= $2::numeric`,
			deviceID, amount, at,
		)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrInsufficientBalance
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// MarkFailed flips the transaction to FAILED with an error detail; balances
// are untouched. Returns ErrNotPending for missing or terminal records.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id, detail string, at time.Time) (*domain.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE credit_transaction
		 SET status = 'FAILED', error_detail = $2, updated_at = $3
		 WHERE id = $1 AND status = 'PENDING'`,
		id, detail, at,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotPending
	}
	return r.GetByID(ctx, id)
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptrFromNullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	return &n.String
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t           domain.Transaction
		txType      string
		status      string
		externalRef sql.NullString
		errorDetail sql.NullString
		meta        []byte
	)
	err := row.Scan(&t.ID, &t.DeviceID, &txType, &t.Amount, &status,
		&externalRef, &errorDetail, &meta, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Type = domain.TxType(txType)
	t.Status = domain.Status(status)
	t.ExternalRef = ptrFromNullString(externalRef)
	t.ErrorDetail = ptrFromNullString(errorDetail)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", t.ID, err)
		}
	}
	return &t, nil
}
