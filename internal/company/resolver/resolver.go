// Package resolver answers "what does the registry say about this CNPJ"
// through a freshness-windowed cache. A snapshot younger than the window is
// served without touching the registry; anything else triggers one lookup
// whose success replaces the snapshot. Failures are never cached.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sitegen/internal/company/metrics"
	"sitegen/internal/company/models"
	"sitegen/internal/company/registry"
	"sitegen/pkg/domain"
	"sitegen/pkg/platform/sentinel"
)

// DefaultFreshness is how long a cached snapshot is served without refetching.
const DefaultFreshness = 24 * time.Hour

// Client fetches a company record from the registry.
type Client interface {
	Lookup(ctx context.Context, cnpj domain.CNPJ) (*models.CompanyRecord, error)
}

// Store persists the latest snapshot per CNPJ.
type Store interface {
	Find(ctx context.Context, cnpj domain.CNPJ) (*models.CacheEntry, error)
	Save(ctx context.Context, entry *models.CacheEntry) error
}

// Resolver coordinates cache reads, registry lookups and cache writes.
type Resolver struct {
	client    Client
	store     Store
	freshness time.Duration
	now       func() time.Time
	logger    *slog.Logger
	metrics   *metrics.Metrics
	group     singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context of one shared registry lookup. It is cancelled when
// the last caller waiting on it goes away.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithFreshness sets the freshness window.
func WithFreshness(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.freshness = d
		}
	}
}

// WithClock injects the time source used for freshness and retrieval stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// New creates a Resolver. A nil store disables caching.
func New(client Client, store Store, opts ...Option) *Resolver {
	r := &Resolver{
		client:    client,
		store:     store,
		freshness: DefaultFreshness,
		now:       time.Now,
		logger:    slog.Default(),
		flights:   make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the company record for cnpj, from a fresh snapshot when one
// exists. Concurrent misses for the same CNPJ share a single registry lookup,
// which is aborted once every caller waiting on it has gone away. Registry
// errors are returned unchanged; a caller whose context ends first gets a
// remote *registry.RegistryError wrapping the context error.
func (r *Resolver) Resolve(ctx context.Context, cnpj domain.CNPJ) (*models.CompanyRecord, error) {
	if entry := r.cached(ctx, cnpj); entry != nil {
		return entry.Record, nil
	}

	key := cnpj.String()
	shared := r.join(ctx, key)
	defer r.leave(key)

	ch := r.group.DoChan(key, func() (any, error) {
		return r.fetch(shared, cnpj)
	})

	select {
	case <-ctx.Done():
		return nil, &registry.RegistryError{
			Category:   registry.ErrorRemote,
			CNPJ:       key,
			Message:    "lookup abandoned by caller",
			Underlying: ctx.Err(),
		}
	case res := <-ch:
		if res.Shared {
			r.metrics.IncrementCoalesced()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.CompanyRecord).Clone(), nil
	}
}

// join registers a waiter on the lookup for key and returns its context. The
// context keeps the caller's values but not its cancellation.
func (r *Resolver) join(ctx context.Context, key string) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		r.flights[key] = f
	}
	f.waiters++
	return f.ctx
}

// leave drops a waiter. The last one out cancels the lookup and forgets it, so
// a later caller starts a fresh one instead of joining the aborted call.
func (r *Resolver) leave(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.flights[key]
	f.waiters--
	if f.waiters > 0 {
		return
	}
	delete(r.flights, key)
	f.cancel()
	r.group.Forget(key)
}

func (r *Resolver) cached(ctx context.Context, cnpj domain.CNPJ) *models.CacheEntry {
	if r.store == nil {
		return nil
	}
	entry, err := r.store.Find(ctx, cnpj)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		// A wrapped not-found means the entry exists but could not be decoded.
		if err != sentinel.ErrNotFound { //nolint:errorlint // identity check on purpose
			r.logger.WarnContext(ctx, "discarding unreadable cache entry",
				"cnpj", cnpj.String(),
				"error", err,
			)
		}
		r.metrics.RecordCacheLookup("miss")
		return nil
	case err != nil:
		r.logger.WarnContext(ctx, "cache read failed, treating as miss",
			"cnpj", cnpj.String(),
			"error", err,
		)
		r.metrics.RecordCacheLookup("error")
		return nil
	}

	if !entry.Fresh(r.now(), r.freshness) {
		r.metrics.RecordCacheLookup("stale")
		return nil
	}
	r.metrics.RecordCacheLookup("hit")
	return entry
}

func (r *Resolver) fetch(ctx context.Context, cnpj domain.CNPJ) (*models.CompanyRecord, error) {
	record, err := r.client.Lookup(ctx, cnpj)
	if err != nil {
		return nil, err
	}
	if r.store == nil {
		return record, nil
	}

	entry := &models.CacheEntry{
		CNPJ:        cnpj.String(),
		Record:      record,
		RetrievedAt: r.now(),
	}
	if err := r.store.Save(ctx, entry); err != nil {
		r.logger.WarnContext(ctx, "cache write failed",
			"cnpj", cnpj.String(),
			"error", err,
		)
		r.metrics.RecordCacheWrite("error")
		return record, nil
	}
	r.metrics.RecordCacheWrite("ok")
	return record, nil
}
