package beaconlib

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Provider is a source of geolocation data. It has to be safe for
// concurrent use. A provider returns an error if it cannot geolocate an
// address for any reason: network issue, exhausted quota, unknown
// address.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip net.IP) (Location, error)
}

// HTTPClient is a client which is used by providers to access their
// APIs. Usually you want to get an instance with NewHTTPClient.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Store keeps visits. Methods should return ErrVisitNotFound if there
// is nothing to return or to modify.
type Store interface {
	Create(ctx context.Context, visit *Visit) error
	Get(ctx context.Context, id int64) (*Visit, error)
	List(ctx context.Context, offset, limit int) ([]Visit, error)
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context, since time.Time, top int) (*Stats, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
	UpdateLatestPending(ctx context.Context, ip string, since time.Time, update LocationUpdate) (*Visit, error)
	Ping(ctx context.Context) error
}

// Broadcaster delivers visit events to subscribed admins.
type Broadcaster interface {
	Broadcast(event string, visit *Visit)
}

type Logger interface {
	LookupError(ip net.IP, name string, err error)
	TrackInfo(visit *Visit)
	TrackError(ip string, err error)
	HubInfo(msg string, clients int)
	HubError(err error)
	HTTPRequest(req *http.Request, status int, elapsed time.Duration)
	HTTPError(req *http.Request, err error)
}
