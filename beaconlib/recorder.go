package beaconlib

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

const (
	DefaultWorkerPoolSize = 256
	DefaultTrackTimeout   = 30 * time.Second
	DefaultPendingWindow  = 30 * time.Minute

	// ClientLookupSource is used for location updates which have not
	// declared their source.
	ClientLookupSource = "client"

	EventNewVisitor      = "new_visitor"
	EventLocationUpdated = "location_updated"

	workerPoolExpireTime = time.Minute
)

// RecorderOptions tunes Recorder. Zero values mean defaults.
type RecorderOptions struct {
	WorkerPoolSize int
	TrackTimeout   time.Duration
	PendingWindow  time.Duration

	// SkipResolve disables geolocation on visit. In that case visits
	// are stored as pending and wait for location updates from
	// clients.
	SkipResolve bool
}

// Recorder turns page visits into stored visits. Visits are processed
// in a background worker pool so a page response is never delayed by
// geolocation or storage.
type Recorder struct {
	logger      Logger
	resolver    *Resolver
	store       Store
	broadcaster Broadcaster
	opts        RecorderOptions

	ctx        context.Context
	cancel     context.CancelFunc
	workerPool *ants.PoolWithFunc
	rwmutex    sync.RWMutex
	closeOnce  sync.Once
	closed     bool
}

type trackRequest struct {
	meta VisitMeta
}

// Track schedules recording of a visit and returns immediately. A task
// is not bound to any request context: it is executed even if a client
// has gone.
func (r *Recorder) Track(meta VisitMeta) error {
	r.rwmutex.RLock()
	defer r.rwmutex.RUnlock()

	if r.closed {
		return ErrRecorderShutdown
	}

	if err := r.workerPool.Invoke(&trackRequest{meta: meta}); err != nil {
		metricVisitsRecorded.WithLabelValues(metricResultSkipped).Inc()

		return fmt.Errorf("cannot schedule a task: %w", err)
	}

	return nil
}

// Record executes a whole pipeline synchronously: resolve, store and
// broadcast.
func (r *Recorder) Record(ctx context.Context, meta VisitMeta) (*Visit, error) {
	visit := &Visit{
		SessionID: uuid.NewString(),
		IP:        strings.TrimSpace(meta.IP),
		UserAgent: meta.UserAgent,
		Referer:   meta.Referer,
		Timestamp: time.Now().UTC(),
	}

	if !r.opts.SkipResolve {
		res := r.resolver.Resolve(ctx, net.ParseIP(visit.IP))
		if res.Resolved {
			applyLocation(visit, res.Provider, res.Location)
		}
	}

	fillVisitDefaults(visit)

	if err := r.store.Create(ctx, visit); err != nil {
		metricVisitsRecorded.WithLabelValues(metricResultFailure).Inc()
		r.logger.TrackError(visit.IP, err)

		return nil, fmt.Errorf("cannot store a visit: %w", err)
	}

	metricVisitsRecorded.WithLabelValues(metricResultSuccess).Inc()
	r.logger.TrackInfo(visit)
	r.broadcaster.Broadcast(EventNewVisitor, visit)

	return visit, nil
}

// UpdateLocation patches the latest pending visit of the given address
// with a location which was detected by a client. Only visits created
// within a pending window are considered.
func (r *Recorder) UpdateLocation(ctx context.Context, ip string, upd LocationUpdate) (*Visit, error) {
	upd = normalizeLocationUpdate(upd)
	if upd.City == "" && upd.Country == "" {
		metricLocationUpdates.WithLabelValues(metricResultSkipped).Inc()

		return nil, ErrEmptyLocation
	}

	since := time.Now().Add(-r.opts.PendingWindow).UTC()

	visit, err := r.store.UpdateLatestPending(ctx, strings.TrimSpace(ip), since, upd)

	switch {
	case errors.Is(err, ErrVisitNotFound):
		metricLocationUpdates.WithLabelValues(metricResultSkipped).Inc()

		return nil, ErrNoPendingVisit
	case err != nil:
		metricLocationUpdates.WithLabelValues(metricResultFailure).Inc()
		r.logger.TrackError(ip, err)

		return nil, fmt.Errorf("cannot update a visit: %w", err)
	}

	metricLocationUpdates.WithLabelValues(metricResultSuccess).Inc()
	r.logger.TrackInfo(visit)
	r.broadcaster.Broadcast(EventLocationUpdated, visit)

	return visit, nil
}

// Shutdown stops accepting new visits and waits until scheduled ones
// are processed. Tasks which are still running after timeout are
// canceled.
func (r *Recorder) Shutdown(timeout time.Duration) error {
	r.rwmutex.Lock()
	r.closed = true
	r.rwmutex.Unlock()

	var err error

	r.closeOnce.Do(func() {
		err = r.workerPool.ReleaseTimeout(timeout)

		r.cancel()
	})

	return err
}

func (r *Recorder) track(args interface{}) {
	params := args.(*trackRequest)

	ctx, cancel := context.WithTimeout(r.ctx, r.opts.TrackTimeout)
	defer cancel()

	r.Record(ctx, params.meta) // nolint: errcheck
}

func applyLocation(visit *Visit, provider string, loc Location) {
	if loc.IP != "" {
		visit.IP = loc.IP
	}

	visit.Country = loc.Country
	visit.CountryCode = loc.CountryCode
	visit.Region = loc.Region
	visit.City = loc.City
	visit.Zip = loc.Zip
	visit.Lat = loc.Lat
	visit.Lon = loc.Lon
	visit.ISP = loc.ISP
	visit.Org = loc.Org
	visit.Timezone = loc.Timezone
	visit.LookupSource = provider
}

func fillVisitDefaults(visit *Visit) {
	for _, v := range []*string{&visit.IP, &visit.Country, &visit.Region, &visit.City} {
		if *v == "" {
			*v = UnknownValue
		}
	}

	if visit.Referer == "" {
		visit.Referer = DirectReferer
	}
}

func normalizeLocationUpdate(upd LocationUpdate) LocationUpdate {
	if code := strings.TrimSpace(upd.CountryCode); len(code) == 3 {
		upd.CountryCode = Alpha3ToAlpha2(code)
	} else {
		upd.CountryCode = NormalizeAlpha2Code(code)
	}

	upd.Country = strings.TrimSpace(upd.Country)
	upd.Region = strings.TrimSpace(upd.Region)
	upd.City = strings.TrimSpace(upd.City)
	upd.Zip = strings.TrimSpace(upd.Zip)
	upd.LookupSource = strings.TrimSpace(upd.LookupSource)

	if upd.Country == "" {
		upd.Country = CountryName(upd.CountryCode)
	}

	if upd.LookupSource == "" {
		upd.LookupSource = ClientLookupSource
	}

	return upd
}

// NewRecorder creates a new recorder. Please do not forget to call
// Shutdown.
func NewRecorder(resolver *Resolver,
	store Store,
	broadcaster Broadcaster,
	logger Logger,
	opts RecorderOptions) *Recorder {
	if opts.WorkerPoolSize <= 0 {
		opts.WorkerPoolSize = DefaultWorkerPoolSize
	}

	if opts.TrackTimeout <= 0 {
		opts.TrackTimeout = DefaultTrackTimeout
	}

	if opts.PendingWindow <= 0 {
		opts.PendingWindow = DefaultPendingWindow
	}

	ctx, cancel := context.WithCancel(context.Background())
	rv := &Recorder{
		logger:      logger,
		resolver:    resolver,
		store:       store,
		broadcaster: broadcaster,
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
	}

	rv.workerPool, _ = ants.NewPoolWithFunc(opts.WorkerPoolSize, rv.track,
		ants.WithExpiryDuration(workerPoolExpireTime),
		ants.WithNonblocking(true))

	return rv
}
