package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/pkg/logger"
	"github.com/troikatech/collections-agent/pkg/utils"
)

// DefaultCacheTTL keeps a participant long enough for late carrier webhooks
const DefaultCacheTTL = 24 * time.Hour

// Cache stores participants by call identifier. Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*CallParticipant, error)
	Set(ctx context.Context, key string, p *CallParticipant, ttl time.Duration) error
}

// CustomerLookup finds a customer by any of the given phone forms.
// It returns nil, nil when no row matches.
type CustomerLookup interface {
	FindByPhone(ctx context.Context, variants []string) (*CallParticipant, error)
}

// Lookup is whatever identifiers the stream-start event carried
type Lookup struct {
	TransientID string
	OfficialID  string
	Phone       string
	Metadata    map[string]string
}

// Source names where a participant was resolved from
type Source string

const (
	SourceTransientCache Source = "transient_cache"
	SourceOfficialCache  Source = "official_cache"
	SourceMetadata       Source = "metadata"
	SourceDatabase       Source = "database"
)

// TransientKey is the cache key for a pre-call placeholder id
func TransientKey(id string) string { return "voicebot:transient:" + id }

// OfficialKey is the cache key for a carrier call sid
func OfficialKey(id string) string { return "voicebot:call:" + id }

// Resolver maps stream-start identifiers to one customer record
type Resolver struct {
	cache     Cache
	customers CustomerLookup
	ttl       time.Duration
	logger    *zap.Logger
}

// NewResolver creates a resolver. customers may be nil when only cached
// and inline records are acceptable.
func NewResolver(cache Cache, customers CustomerLookup, ttl time.Duration, logger *zap.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{cache: cache, customers: customers, ttl: ttl, logger: logger}
}

// Resolve tries the transient-id cache, the official-id cache, inline
// metadata, then a phone lookup; the first hit wins. The result is
// backfilled under the official id so a later webhook still resolves.
func (r *Resolver) Resolve(ctx context.Context, l Lookup) (*CallParticipant, Source, error) {
	p, src, err := r.find(ctx, l)
	if err != nil {
		return nil, "", err
	}
	if p == nil {
		return nil, "", ErrNotFound
	}
	resolved := *p
	p = &resolved
	if err := p.Validate(); err != nil {
		return nil, src, err
	}
	if p.Phone == "" {
		p.Phone = l.Phone
	}

	if l.OfficialID != "" && src != SourceOfficialCache {
		if err := r.cache.Set(ctx, OfficialKey(l.OfficialID), p, r.ttl); err != nil {
			r.logger.Warn("Failed to backfill session cache",
				zap.String("call_sid", l.OfficialID),
				zap.Error(err),
			)
		}
	}
	return p, src, nil
}

func (r *Resolver) find(ctx context.Context, l Lookup) (*CallParticipant, Source, error) {
	if l.TransientID != "" {
		if p := r.cached(ctx, TransientKey(l.TransientID)); p != nil {
			return p, SourceTransientCache, nil
		}
	}
	if l.OfficialID != "" {
		if p := r.cached(ctx, OfficialKey(l.OfficialID)); p != nil {
			return p, SourceOfficialCache, nil
		}
	}
	if p, ok := FromMetadata(l.Metadata); ok {
		return p, SourceMetadata, nil
	}
	if l.Phone != "" && r.customers != nil {
		variants := utils.PhoneVariants(l.Phone)
		p, err := r.customers.FindByPhone(ctx, variants)
		if err != nil {
			return nil, "", fmt.Errorf("customer lookup: %w", err)
		}
		if p != nil {
			return p, SourceDatabase, nil
		}
		r.logger.Info("No customer for phone", logger.MaskPhone("phone", l.Phone))
	}
	return nil, "", nil
}

// cached treats cache failures as misses; the database is the fallback.
func (r *Resolver) cached(ctx context.Context, key string) *CallParticipant {
	p, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("Session cache read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	return p
}

// Remember caches p under a transient id ahead of dialing
func (r *Resolver) Remember(ctx context.Context, transientID string, p *CallParticipant) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return r.cache.Set(ctx, TransientKey(transientID), p, r.ttl)
}

// Link caches p under the official id once the carrier assigns it
func (r *Resolver) Link(ctx context.Context, officialID string, p *CallParticipant) error {
	return r.cache.Set(ctx, OfficialKey(officialID), p, r.ttl)
}

// ByOfficialID resolves a participant for a carrier webhook
func (r *Resolver) ByOfficialID(ctx context.Context, officialID string) (*CallParticipant, error) {
	p, err := r.cache.Get(ctx, OfficialKey(officialID))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// IsResolutionError reports whether err is fatal for the call
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrIncompleteParticipant)
}
