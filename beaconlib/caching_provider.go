package beaconlib

import (
	"context"
	"net"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

type cachingProvider struct {
	Provider

	cache *ristretto.Cache[string, Location]
	ttl   time.Duration
}

func (c cachingProvider) Lookup(ctx context.Context, ip net.IP) (Location, error) {
	cacheKey := ip.String()

	if value, ok := c.cache.Get(cacheKey); ok {
		return value, nil
	}

	result, err := c.Provider.Lookup(ctx, ip)
	if err != nil {
		return Location{}, err
	}

	c.cache.SetWithTTL(cacheKey, result, 1, c.ttl)

	return result, nil
}

// NewCachingProvider wraps a provider with a cache. Only successful
// lookups are cached. Free geolocation APIs have rather tight quotas
// and the same visitor usually opens several pages in a row.
func NewCachingProvider(provider Provider, itemsCount uint, ttl time.Duration) Provider {
	cache, err := ristretto.NewCache(&ristretto.Config[string, Location]{
		MaxCost:     int64(itemsCount),
		NumCounters: 10 * int64(itemsCount),
		BufferItems: 64,
	})
	if err != nil {
		panic(err)
	}

	return cachingProvider{
		Provider: provider,
		cache:    cache,
		ttl:      ttl,
	}
}
