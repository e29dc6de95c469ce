package providers

import (
	"context"
	"net"
	"net/url"

	"github.com/9seconds/beacon/beaconlib"
)

type freeipapiResponse struct {
	IPAddress       string   `json:"ipAddress"`
	CountryName     string   `json:"countryName"`
	CountryCode     string   `json:"countryCode"`
	RegionName      string   `json:"regionName"`
	CityName        string   `json:"cityName"`
	ZipCode         string   `json:"zipCode"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	ASNOrganization string   `json:"asnOrganization"`
	TimeZones       []string `json:"timeZones"`
}

type freeipapiProvider struct {
	client    beaconlib.HTTPClient
	authToken string
}

func (f freeipapiProvider) Name() string {
	return NameFreeIPAPI
}

func (f freeipapiProvider) Lookup(ctx context.Context, ip net.IP) (beaconlib.Location, error) {
	jsonResponse := freeipapiResponse{}
	endpoint := "https://freeipapi.com/api/json/" + url.PathEscape(ip.String())

	if err := fetchJSON(ctx, f.client, endpoint, f.authToken, &jsonResponse); err != nil {
		return beaconlib.Location{}, err
	}

	if jsonResponse.IPAddress == "" {
		return beaconlib.Location{}, ErrNoData
	}

	rv := beaconlib.Location{
		IP:          jsonResponse.IPAddress,
		Country:     jsonResponse.CountryName,
		CountryCode: jsonResponse.CountryCode,
		Region:      jsonResponse.RegionName,
		City:        jsonResponse.CityName,
		Zip:         jsonResponse.ZipCode,
		Lat:         jsonResponse.Latitude,
		Lon:         jsonResponse.Longitude,
		ISP:         jsonResponse.ASNOrganization,
		Org:         jsonResponse.ASNOrganization,
	}

	if len(jsonResponse.TimeZones) > 0 {
		rv.Timezone = jsonResponse.TimeZones[0]
	}

	return rv, nil
}

// NewFreeIPAPI returns a provider for freeipapi.com. auth_token
// parameter is optional.
func NewFreeIPAPI(client beaconlib.HTTPClient, parameters map[string]string) beaconlib.Provider {
	return freeipapiProvider{
		client:    client,
		authToken: parameters["auth_token"],
	}
}
