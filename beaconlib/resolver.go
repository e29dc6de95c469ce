package beaconlib

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultAttemptTimeout limits a single provider lookup.
const DefaultAttemptTimeout = 5 * time.Second

// Resolver geolocates IP addresses with an ordered list of providers.
// Providers are asked one by one, the first valid answer wins.
type Resolver struct {
	logger         Logger
	providers      []Provider
	stats          []*UsageStats
	attemptTimeout time.Duration
}

// Resolve never fails: if address cannot be geolocated, a result with
// Resolved set to false is returned. Its location is empty.
func (r *Resolver) Resolve(ctx context.Context, ip net.IP) ResolveResult {
	rv := ResolveResult{
		IP: ip,
	}

	if !IsRoutableIP(ip) {
		for _, v := range r.providers {
			metricProviderLookups.WithLabelValues(v.Name(), metricResultSkipped).Inc()
		}

		return rv
	}

	for idx, provider := range r.providers {
		if ctx.Err() != nil {
			return rv
		}

		loc, err := r.lookup(ctx, idx, ip)
		if err != nil {
			r.logger.LookupError(ip, provider.Name(), err)

			continue
		}

		rv.Resolved = true
		rv.Provider = provider.Name()
		rv.Location = loc

		return rv
	}

	return rv
}

// Probe asks all providers and returns their answers as is. This is
// a diagnostic tool, results are not normalized.
func (r *Resolver) Probe(ctx context.Context, ip net.IP) []ProviderProbe {
	rv := make([]ProviderProbe, 0, len(r.providers))

	for _, provider := range r.providers {
		probe := ProviderProbe{
			Provider: provider.Name(),
		}

		started := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
		loc, err := provider.Lookup(attemptCtx, ip)

		cancel()

		probe.Elapsed = float64(time.Since(started)) / float64(time.Millisecond)

		if err != nil {
			probe.Error = err.Error()
		} else {
			probe.Location = &loc
		}

		rv = append(rv, probe)
	}

	return rv
}

// UsageStats returns statistics for each provider in order of
// resolving.
func (r *Resolver) UsageStats() []*UsageStats {
	return r.stats
}

func (r *Resolver) lookup(ctx context.Context, idx int, ip net.IP) (Location, error) {
	provider := r.providers[idx]
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	loc, err := provider.Lookup(ctx, ip)
	if err == nil {
		loc = normalizeLocation(loc)

		if !loc.Valid() {
			err = ErrMalformedLocation
		}
	}

	elapsed := time.Since(started)

	r.stats[idx].Used(err, elapsed)
	metricProviderLatency.WithLabelValues(provider.Name()).Observe(elapsed.Seconds())

	if err != nil {
		metricProviderLookups.WithLabelValues(provider.Name(), metricResultFailure).Inc()

		return Location{}, fmt.Errorf("cannot lookup with %s: %w", provider.Name(), err)
	}

	metricProviderLookups.WithLabelValues(provider.Name(), metricResultSuccess).Inc()

	if loc.IP == "" {
		loc.IP = ip.String()
	}

	return loc, nil
}

// IsRoutableIP tells if it makes any sense to geolocate this address.
func IsRoutableIP(ip net.IP) bool {
	switch {
	case ip == nil,
		ip.IsUnspecified(),
		ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(),
		ip.IsMulticast():
		return false
	}

	return true
}

// NewResolver creates a new resolver. Order of providers matters: they
// are asked exactly in this order. If attemptTimeout is not positive,
// DefaultAttemptTimeout is used.
func NewResolver(providers []Provider, logger Logger, attemptTimeout time.Duration) *Resolver {
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}

	rv := &Resolver{
		logger:         logger,
		providers:      providers,
		stats:          make([]*UsageStats, 0, len(providers)),
		attemptTimeout: attemptTimeout,
	}

	for _, v := range providers {
		rv.stats = append(rv.stats, &UsageStats{Name: v.Name()})
	}

	return rv
}
