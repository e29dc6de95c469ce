package beaconlib

import (
	"net"
	"time"
)

const (
	// UnknownValue is a placeholder for location fields which cannot be
	// detected.
	UnknownValue = "Unknown"

	// DirectReferer is used if a visitor has not sent any referer.
	DirectReferer = "direct"
)

// Location is a normalized answer of a geolocation provider.
type Location struct {
	IP          string   `json:"ip"`
	Country     string   `json:"country"`
	CountryCode string   `json:"countryCode"`
	Region      string   `json:"region"`
	City        string   `json:"city"`
	Zip         string   `json:"zip"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	ISP         string   `json:"isp"`
	Org         string   `json:"org"`
	Timezone    string   `json:"timezone"`
}

// Valid tells if location has enough data to be trusted.
func (l *Location) Valid() bool {
	return l.Country != "" || l.CountryCode != ""
}

// ResolveResult is an outcome of Resolver. If Resolved is false, then
// Location is always empty.
type ResolveResult struct {
	IP       net.IP   `json:"ip"`
	Resolved bool     `json:"resolved"`
	Provider string   `json:"provider"`
	Location Location `json:"location"`
}

// ProviderProbe is a raw answer of a single provider. It is used for
// diagnostics.
type ProviderProbe struct {
	Provider string    `json:"provider"`
	Location *Location `json:"location"`
	Error    string    `json:"error,omitempty"`
	Elapsed  float64   `json:"elapsed_ms"`
}

// Visit is a single page view.
type Visit struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"sessionId"`
	IP           string    `json:"ip"`
	Country      string    `json:"country"`
	CountryCode  string    `json:"countryCode"`
	Region       string    `json:"region"`
	City         string    `json:"city"`
	Zip          string    `json:"zip"`
	Lat          *float64  `json:"lat"`
	Lon          *float64  `json:"lon"`
	ISP          string    `json:"isp"`
	Org          string    `json:"org"`
	Timezone     string    `json:"timezone"`
	UserAgent    string    `json:"userAgent"`
	Referer      string    `json:"referer"`
	LookupSource string    `json:"lookupSource"`
	Timestamp    time.Time `json:"timestamp"`
}

// Pending tells if visit still waits for its location.
func (v *Visit) Pending() bool {
	return v.City == "" || v.City == UnknownValue
}

// VisitMeta is a set of request data which is required to record a
// visit.
type VisitMeta struct {
	IP        string
	UserAgent string
	Referer   string
}

// LocationUpdate is a location which was detected by a visitor itself,
// for example with browser geolocation and reverse geocoding.
type LocationUpdate struct {
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
	City         string   `json:"city"`
	Region       string   `json:"region"`
	Country      string   `json:"country"`
	CountryCode  string   `json:"countryCode"`
	Zip          string   `json:"zip"`
	LookupSource string   `json:"lookupSource"`
}

// StatsItem is a single entry of top-N aggregation.
type StatsItem struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Stats is a summary for admin dashboard.
type Stats struct {
	Total        int64       `json:"total"`
	RecentCount  int64       `json:"recentCount"`
	TopCities    []StatsItem `json:"topCities"`
	TopCountries []StatsItem `json:"topCountries"`
	TopISPs      []StatsItem `json:"topISPs"`
}
