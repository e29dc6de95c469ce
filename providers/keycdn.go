package providers

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/9seconds/beacon/beaconlib"
)

type keycdnResponse struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	Data        struct {
		Geo struct {
			IP          string   `json:"ip"`
			ISP         string   `json:"isp"`
			CountryName string   `json:"country_name"`
			CountryCode string   `json:"country_code"`
			RegionName  string   `json:"region_name"`
			City        string   `json:"city"`
			PostalCode  string   `json:"postal_code"`
			Latitude    *float64 `json:"latitude"`
			Longitude   *float64 `json:"longitude"`
			Timezone    string   `json:"timezone"`
		} `json:"geo"`
	} `json:"data"`
}

type keycdnProvider struct {
	client beaconlib.HTTPClient
}

func (k keycdnProvider) Name() string {
	return NameKeyCDN
}

func (k keycdnProvider) Lookup(ctx context.Context, ip net.IP) (beaconlib.Location, error) {
	jsonResponse := keycdnResponse{}
	endpoint := "https://tools.keycdn.com/geo.json?host=" + url.QueryEscape(ip.String())

	if err := fetchJSON(ctx, k.client, endpoint, "", &jsonResponse); err != nil {
		return beaconlib.Location{}, err
	}

	if jsonResponse.Status != "success" {
		return beaconlib.Location{}, fmt.Errorf("%w: %s (%s)",
			ErrLookupFailed, jsonResponse.Status, jsonResponse.Description)
	}

	geo := jsonResponse.Data.Geo

	return beaconlib.Location{
		IP:          geo.IP,
		Country:     geo.CountryName,
		CountryCode: geo.CountryCode,
		Region:      geo.RegionName,
		City:        geo.City,
		Zip:         geo.PostalCode,
		Lat:         geo.Latitude,
		Lon:         geo.Longitude,
		ISP:         geo.ISP,
		Org:         geo.ISP,
		Timezone:    geo.Timezone,
	}, nil
}

// NewKeyCDN returns a provider for tools.keycdn.com. Please pay
// attention that this service requires user agent in a form of
// keycdn-tools:https://yoursite.com.
func NewKeyCDN(client beaconlib.HTTPClient) beaconlib.Provider {
	return keycdnProvider{
		client: client,
	}
}
