package providers

import (
	"context"
	"net"
	"net/url"

	"github.com/9seconds/beacon/beaconlib"
)

type ipinfoResponse struct {
	IP       string `json:"ip"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Loc      string `json:"loc"`
	Org      string `json:"org"`
	Postal   string `json:"postal"`
	Timezone string `json:"timezone"`
	Bogon    bool   `json:"bogon"`
}

type ipinfoProvider struct {
	authToken string
	client    beaconlib.HTTPClient
}

func (i ipinfoProvider) Name() string {
	return NameIPInfo
}

func (i ipinfoProvider) Lookup(ctx context.Context, ip net.IP) (beaconlib.Location, error) {
	jsonResponse := ipinfoResponse{}
	endpoint := "https://ipinfo.io/" + url.PathEscape(ip.String())

	if err := fetchJSON(ctx, i.client, endpoint, i.authToken, &jsonResponse); err != nil {
		return beaconlib.Location{}, err
	}

	if jsonResponse.Bogon {
		return beaconlib.Location{}, ErrNoData
	}

	rv := beaconlib.Location{
		IP:          jsonResponse.IP,
		CountryCode: jsonResponse.Country,
		Region:      jsonResponse.Region,
		City:        jsonResponse.City,
		Zip:         jsonResponse.Postal,
		ISP:         stripASN(jsonResponse.Org),
		Org:         jsonResponse.Org,
		Timezone:    jsonResponse.Timezone,
	}

	rv.Lat, rv.Lon = parseCoordinates(jsonResponse.Loc)

	return rv, nil
}

// NewIPInfo returns a provider for ipinfo.io. auth_token parameter
// is optional but anonymous access is severely rate limited.
func NewIPInfo(client beaconlib.HTTPClient, parameters map[string]string) beaconlib.Provider {
	return ipinfoProvider{
		authToken: parameters["auth_token"],
		client:    client,
	}
}
