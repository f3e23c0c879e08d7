// Package ristretto implements the process-wide tenant record cache using
// dgraph-io/ristretto.
package ristretto

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/neomorfeo/provisr/internal/domain"
)

// Compile-time check: Cache implements domain.TenantCache.
var _ domain.TenantCache = (*Cache)(nil)

// Cache holds tenant records keyed by tenant id. A background sweep clears
// the whole cache periodically so stale entries never outlive out-of-band
// store changes for long.
type Cache struct {
	c    *ristretto.Cache[int64, domain.Tenant]
	done chan struct{}
}

// New creates the cache. sweep is the full-clear interval; zero disables
// the sweep (used in tests).
func New(sweep time.Duration) (*Cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config[int64, domain.Tenant]{
		NumCounters: 10_000, // ~10x expected tenant count
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	cache := &Cache{c: inner, done: make(chan struct{})}
	if sweep > 0 {
		go cache.sweep(sweep)
	}
	return cache, nil
}

func (c *Cache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.c.Clear()
		case <-c.done:
			return
		}
	}
}

// Get returns the cached record for a tenant.
func (c *Cache) Get(tenantID int64) (domain.Tenant, bool) {
	return c.c.Get(tenantID)
}

// Set records a tenant, keyed by its id.
func (c *Cache) Set(t domain.Tenant) {
	c.c.Set(t.ID, t, 1)
	c.c.Wait()
}

// Delete drops a tenant from the cache.
func (c *Cache) Delete(tenantID int64) {
	c.c.Del(tenantID)
}

// Close stops the sweep and releases cache resources.
func (c *Cache) Close() {
	close(c.done)
	c.c.Close()
}
