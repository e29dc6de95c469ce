package providers

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/9seconds/beacon/beaconlib"
)

type ipstackResponse struct {
	Error struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error"`
	IP          string   `json:"ip"`
	CountryCode string   `json:"country_code"`
	CountryName string   `json:"country_name"`
	RegionName  string   `json:"region_name"`
	City        string   `json:"city"`
	Zip         string   `json:"zip"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

type ipstackProvider struct {
	client     beaconlib.HTTPClient
	httpScheme string
	authToken  string
}

func (i ipstackProvider) Name() string {
	return NameIPStack
}

func (i ipstackProvider) Lookup(ctx context.Context, ip net.IP) (beaconlib.Location, error) {
	jsonResponse := ipstackResponse{}

	if err := fetchJSON(ctx, i.client, i.buildURL(ip), "", &jsonResponse); err != nil {
		return beaconlib.Location{}, err
	}

	if jsonResponse.Error.Code != 0 {
		return beaconlib.Location{}, fmt.Errorf(
			"%w: code=%d, type=%s, info=%s",
			ErrLookupFailed,
			jsonResponse.Error.Code,
			jsonResponse.Error.Type,
			jsonResponse.Error.Info)
	}

	return beaconlib.Location{
		IP:          jsonResponse.IP,
		Country:     jsonResponse.CountryName,
		CountryCode: jsonResponse.CountryCode,
		Region:      jsonResponse.RegionName,
		City:        jsonResponse.City,
		Zip:         jsonResponse.Zip,
		Lat:         jsonResponse.Latitude,
		Lon:         jsonResponse.Longitude,
	}, nil
}

func (i ipstackProvider) buildURL(ip net.IP) string {
	getQuery := url.Values{}

	getQuery.Set("access_key", i.authToken)
	getQuery.Set("output", "json")
	getQuery.Set("fields", "ip,country_code,country_name,region_name,city,zip,latitude,longitude")
	getQuery.Set("language", "en")
	getQuery.Set("hostname", "0")
	getQuery.Set("security", "0")

	u := url.URL{
		Scheme:   i.httpScheme,
		Host:     "api.ipstack.com",
		Path:     ip.String(),
		RawQuery: getQuery.Encode(),
	}

	return u.String()
}

// NewIPStack returns a provider for ipstack.com. auth_token parameter
// is mandatory. Free plans do not support HTTPS so it has to be enabled
// explicitly with secure parameter.
func NewIPStack(client beaconlib.HTTPClient, parameters map[string]string) (beaconlib.Provider, error) {
	scheme := "http"

	if parameters["secure"] == "true" {
		scheme = "https"
	}

	if parameters["auth_token"] == "" {
		return nil, ErrAuthTokenIsRequired
	}

	return ipstackProvider{
		client:     client,
		authToken:  parameters["auth_token"],
		httpScheme: scheme,
	}, nil
}
