package wallet

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresLookup resolves API key digests against the application and company tables.
type PostgresLookup struct {
	db *sql.DB
}

// NewPostgresLookup returns a Lookup backed by the given db.
func NewPostgresLookup(db *sql.DB) *PostgresLookup {
	return &PostgresLookup{db: db}
}

// LookupByAPIKeyDigest returns the attribution for digest, or nil if no
// application carries it.
func (l *PostgresLookup) LookupByAPIKeyDigest(ctx context.Context, digest string) (*Resolution, error) {
	var res Resolution
	err := l.db.QueryRowContext(ctx,
		`SELECT a.id, c.id, c.name, c.wallet_address
		 FROM application a
		 JOIN company c ON c.id = a.company_id
		 WHERE a.api_key_digest = $1`, digest,
	).Scan(&res.ApplicationID, &res.CompanyID, &res.CompanyName, &res.WalletAddress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}
