package tenantctx

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/orgs"
)

// OrgCache is a small TTL cache for organization snapshots, sized for the hot
// set of active tenants. Context resolution reads through it; the switch
// protocol bypasses it and invalidates, so a deactivation is observed no
// later than the TTL and a switch observes it immediately.
type OrgCache struct {
	cache   *expirable.LRU[int64, *orgs.Organization]
	load    func(ctx context.Context, id int64) (*orgs.Organization, error)
	metrics *observability.Metrics
}

// NewOrgCache creates an organization snapshot cache
func NewOrgCache(size int, ttl time.Duration, load func(ctx context.Context, id int64) (*orgs.Organization, error), metrics *observability.Metrics) *OrgCache {
	return &OrgCache{
		cache:   expirable.NewLRU[int64, *orgs.Organization](size, nil, ttl),
		load:    load,
		metrics: metrics,
	}
}

// Get returns the organization snapshot, loading on miss
func (c *OrgCache) Get(ctx context.Context, id int64) (*orgs.Organization, error) {
	if org, ok := c.cache.Get(id); ok {
		if c.metrics != nil {
			c.metrics.OrgCacheHitsTotal.Inc()
		}
		return org, nil
	}

	if c.metrics != nil {
		c.metrics.OrgCacheMissesTotal.Inc()
	}

	org, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}

	c.cache.Add(id, org)
	return org, nil
}

// Invalidate drops a snapshot from the cache
func (c *OrgCache) Invalidate(id int64) {
	c.cache.Remove(id)
}
