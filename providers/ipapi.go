package providers

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/9seconds/beacon/beaconlib"
)

const ipapiFields = "status,message,country,countryCode,region,regionName,city,zip,lat,lon,isp,org,timezone,query"

type ipapiResponse struct {
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	Query       string   `json:"query"`
	Country     string   `json:"country"`
	CountryCode string   `json:"countryCode"`
	RegionName  string   `json:"regionName"`
	City        string   `json:"city"`
	Zip         string   `json:"zip"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	ISP         string   `json:"isp"`
	Org         string   `json:"org"`
	Timezone    string   `json:"timezone"`
}

type ipapiProvider struct {
	client  beaconlib.HTTPClient
	baseURL string
	apiKey  string
}

func (i ipapiProvider) Name() string {
	return NameIPAPI
}

func (i ipapiProvider) Lookup(ctx context.Context, ip net.IP) (beaconlib.Location, error) {
	jsonResponse := ipapiResponse{}

	if err := fetchJSON(ctx, i.client, i.buildURL(ip), "", &jsonResponse); err != nil {
		return beaconlib.Location{}, err
	}

	if jsonResponse.Status != "success" {
		return beaconlib.Location{}, fmt.Errorf("%w: status=%s, message=%s",
			ErrLookupFailed, jsonResponse.Status, jsonResponse.Message)
	}

	return beaconlib.Location{
		IP:          jsonResponse.Query,
		Country:     jsonResponse.Country,
		CountryCode: jsonResponse.CountryCode,
		Region:      jsonResponse.RegionName,
		City:        jsonResponse.City,
		Zip:         jsonResponse.Zip,
		Lat:         jsonResponse.Lat,
		Lon:         jsonResponse.Lon,
		ISP:         jsonResponse.ISP,
		Org:         jsonResponse.Org,
		Timezone:    jsonResponse.Timezone,
	}, nil
}

func (i ipapiProvider) buildURL(ip net.IP) string {
	getQuery := url.Values{}

	getQuery.Set("fields", ipapiFields)

	if i.apiKey != "" {
		getQuery.Set("key", i.apiKey)
	}

	return i.baseURL + url.PathEscape(ip.String()) + "?" + getQuery.Encode()
}

// NewIPAPI returns a provider for ip-api.com. Free endpoint is
// HTTP-only. If you have a pro key, pass it as auth_token parameter.
func NewIPAPI(client beaconlib.HTTPClient, parameters map[string]string) beaconlib.Provider {
	rv := ipapiProvider{
		client:  client,
		baseURL: "http://ip-api.com/json/",
	}

	if token := parameters["auth_token"]; token != "" {
		rv.baseURL = "https://pro.ip-api.com/json/"
		rv.apiKey = token
	}

	return rv
}
