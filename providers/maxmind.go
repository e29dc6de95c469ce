package providers

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/9seconds/beacon/beaconlib"
	"github.com/oschwald/maxminddb-golang"
	"github.com/spf13/afero"
)

type maxmindLookupResult struct {
	City struct {
		Names struct {
			En string `maxminddb:"en"`
		} `maxminddb:"names"`
	} `maxminddb:"city"`
	Country struct {
		IsoCode string `maxminddb:"iso_code"`
		Names   struct {
			En string `maxminddb:"en"`
		} `maxminddb:"names"`
	} `maxminddb:"country"`
	Subdivisions []struct {
		Names struct {
			En string `maxminddb:"en"`
		} `maxminddb:"names"`
	} `maxminddb:"subdivisions"`
	Postal struct {
		Code string `maxminddb:"code"`
	} `maxminddb:"postal"`
	Location struct {
		Latitude  *float64 `maxminddb:"latitude"`
		Longitude *float64 `maxminddb:"longitude"`
		TimeZone  string   `maxminddb:"time_zone"`
	} `maxminddb:"location"`
}

type maxmindProvider struct {
	dbReader     *maxminddb.Reader
	dbReaderLock sync.RWMutex
}

func (m *maxmindProvider) Name() string {
	return NameMaxmind
}

func (m *maxmindProvider) Lookup(ctx context.Context, ip net.IP) (beaconlib.Location, error) {
	m.dbReaderLock.RLock()
	defer m.dbReaderLock.RUnlock()

	if m.dbReader == nil {
		return beaconlib.Location{}, ErrDatabasePathIsRequired
	}

	record := maxmindLookupResult{}

	if err := m.dbReader.Lookup(ip, &record); err != nil {
		return beaconlib.Location{}, fmt.Errorf("cannot lookup this ip address: %w", err)
	}

	if record.Country.IsoCode == "" {
		return beaconlib.Location{}, ErrNoData
	}

	rv := beaconlib.Location{
		IP:          ip.String(),
		Country:     record.Country.Names.En,
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names.En,
		Zip:         record.Postal.Code,
		Lat:         record.Location.Latitude,
		Lon:         record.Location.Longitude,
		Timezone:    record.Location.TimeZone,
	}

	if len(record.Subdivisions) > 0 {
		rv.Region = record.Subdivisions[0].Names.En
	}

	return rv, nil
}

// Close releases a database.
func (m *maxmindProvider) Close() error {
	m.dbReaderLock.Lock()
	defer m.dbReaderLock.Unlock()

	if m.dbReader == nil {
		return nil
	}

	err := m.dbReader.Close()
	m.dbReader = nil

	return err
}

// NewMaxmind opens a local GeoLite2-City or GeoIP2-City database. A
// path to this file is taken from path parameter, it is resolved within
// a given filesystem. A database is read into memory.
func NewMaxmind(fs afero.Fs, parameters map[string]string) (beaconlib.Provider, error) {
	path := parameters["path"]
	if path == "" {
		return nil, ErrDatabasePathIsRequired
	}

	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("cannot read a database: %w", err)
	}

	reader, err := maxminddb.FromBytes(content)
	if err != nil {
		return nil, fmt.Errorf("cannot initialize a reader of maxminddb: %w", err)
	}

	return &maxmindProvider{
		dbReader: reader,
	}, nil
}
