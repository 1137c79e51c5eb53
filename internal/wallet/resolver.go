// Package wallet resolves device API keys to the owning company's wallet,
// fronted by a TTL cache so the hot ingest path rarely touches the database.
package wallet

import (
	"context"
	"time"

	"carbon-ledger/backend/internal/apperror"
	"carbon-ledger/backend/internal/security"
)

// Resolution is the attribution result for an API key: which company owns the
// telemetry signed with it. Cached reports whether the result came from the cache.
type Resolution struct {
	ApplicationID string
	CompanyID     string
	CompanyName   string
	WalletAddress string
	Cached        bool
}

// Lookup loads the attribution for an API key digest. Returns nil, nil when no
// application carries the digest.
type Lookup interface {
	LookupByAPIKeyDigest(ctx context.Context, digest string) (*Resolution, error)
}

// Cache stores resolutions by API key digest with an expiry.
type Cache interface {
	Put(ctx context.Context, digest string, res Resolution, expiresAt time.Time)
	Get(ctx context.Context, digest string) (Resolution, bool)
}

// Resolver answers "whose wallet does this API key belong to", cache-aside.
type Resolver struct {
	lookup Lookup
	cache  Cache
	ttl    time.Duration
	nowF   func() time.Time
}

// NewResolver returns a resolver over the given lookup and cache. ttl bounds
// how long a resolution is served without re-reading the store.
func NewResolver(lookup Lookup, cache Cache, ttl time.Duration) *Resolver {
	return &Resolver{
		lookup: lookup,
		cache:  cache,
		ttl:    ttl,
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the resolver clock for tests.
func (r *Resolver) WithNow(nowF func() time.Time) *Resolver {
	r.nowF = nowF
	return r
}

// Resolve maps a raw API key to its owning company. The raw key is digested
// before any lookup; neither the store nor the cache ever sees it.
func (r *Resolver) Resolve(ctx context.Context, apiKey string) (*Resolution, error) {
	if apiKey == "" {
		return nil, apperror.Validation("apiKey", "must not be empty")
	}
	digest := security.HashAPIKey(apiKey)

	if res, ok := r.cache.Get(ctx, digest); ok {
		res.Cached = true
		return &res, nil
	}

	res, err := r.lookup.LookupByAPIKeyDigest(ctx, digest)
	if err != nil {
		return nil, apperror.Persistence("resolve api key", err)
	}
	if res == nil {
		return nil, apperror.NotFound("application", "api key")
	}
	res.Cached = false
	r.cache.Put(ctx, digest, *res, r.nowF().Add(r.ttl))
	return res, nil
}
