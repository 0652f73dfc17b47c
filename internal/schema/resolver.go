package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sqlquorum/sqlquorum/internal/database"
	"github.com/sqlquorum/sqlquorum/internal/observability"
)

// Source produces the key graph for a database id.
type Source interface {
	Resolve(ctx context.Context, dbID string) (*Graph, error)
}

type Resolver struct {
	opener database.Opener
	logger *slog.Logger
}

func NewResolver(opener database.Opener, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Resolver{opener: opener, logger: logger}
}

// Resolve opens the database, introspects it and applies the known key patch
// for dbID. Any failure is reported as ErrSchemaUnavailable and no partial
// graph is returned.
func (r *Resolver) Resolve(ctx context.Context, dbID string) (*Graph, error) {
	if r.opener == nil {
		return nil, fmt.Errorf("%w: no database opener", ErrSchemaUnavailable)
	}
	handle, err := r.opener.Open(ctx, dbID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaUnavailable, err)
	}
	defer func() { _ = handle.Close() }()

	introspector, err := introspectorFor(handle.Dialect)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaUnavailable, err)
	}
	g, err := introspector.Introspect(ctx, handle.DB)
	if err != nil {
		return nil, fmt.Errorf("%w: introspect %q: %w", ErrSchemaUnavailable, dbID, err)
	}
	g.DBID = dbID
	if patch, ok := PatchFor(dbID); ok {
		patch.Apply(g)
	}
	r.logger.DebugContext(ctx, "schema resolved",
		slog.String("db_id", dbID),
		slog.Int("tables", len(g.Tables)),
		slog.Int("foreign_keys", len(g.ForeignKeys)),
	)
	return g, nil
}

// Cache memoizes resolved graphs per db id for TTL. A zero TTL disables it.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	graph   *Graph
	expires time.Time
}

func NewCache(source Source, ttl time.Duration) *Cache {
	return &Cache{source: source, ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

func (c *Cache) Resolve(ctx context.Context, dbID string) (*Graph, error) {
	if c.ttl <= 0 {
		return c.source.Resolve(ctx, dbID)
	}
	c.mu.RLock()
	entry, ok := c.entries[dbID]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expires) {
		return entry.graph, nil
	}

	g, err := c.source.Resolve(ctx, dbID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[dbID] = cacheEntry{graph: g, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return g, nil
}
