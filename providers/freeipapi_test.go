package providers_test

import (
	"context"
	"net"
	"net/http"
	"testing"

	"github.com/9seconds/beacon/beaconlib"
	"github.com/9seconds/beacon/providers"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/suite"
)

type MockedFreeIPAPITestSuite struct {
	MockedProviderTestSuite

	prov beaconlib.Provider
}

func (suite *MockedFreeIPAPITestSuite) SetupTest() {
	suite.MockedProviderTestSuite.SetupTest()

	suite.prov = providers.NewFreeIPAPI(suite.http, map[string]string{})
}

func (suite *MockedFreeIPAPITestSuite) TestName() {
	suite.Equal(providers.NameFreeIPAPI, suite.prov.Name())
}

func (suite *MockedFreeIPAPITestSuite) TestLookupFailed() {
	httpmock.RegisterResponder("GET",
		"https://freeipapi.com/api/json/1.1.1.1",
		httpmock.NewStringResponder(http.StatusTooManyRequests, ""))

	_, err := suite.prov.Lookup(context.Background(), net.ParseIP("1.1.1.1"))

	suite.Error(err)
}

func (suite *MockedFreeIPAPITestSuite) TestLookupEmpty() {
	httpmock.RegisterResponder("GET",
		"https://freeipapi.com/api/json/1.1.1.1",
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	_, err := suite.prov.Lookup(context.Background(), net.ParseIP("1.1.1.1"))

	suite.ErrorIs(err, providers.ErrNoData)
}

func (suite *MockedFreeIPAPITestSuite) TestLookupOk() {
	httpmock.RegisterResponder("GET",
		"https://freeipapi.com/api/json/1.1.1.1",
		httpmock.NewStringResponder(http.StatusOK, `{
  "ipVersion": 4,
  "ipAddress": "1.1.1.1",
  "latitude": -33.8688,
  "longitude": 151.209,
  "countryName": "Australia",
  "countryCode": "AU",
  "timeZones": ["Australia/Sydney", "Australia/Melbourne"],
  "zipCode": "2000",
  "cityName": "Sydney",
  "regionName": "New South Wales",
  "asnOrganization": "Cloudflare, Inc."
}`))

	result, err := suite.prov.Lookup(context.Background(), net.ParseIP("1.1.1.1"))

	suite.NoError(err)
	suite.Equal("1.1.1.1", result.IP)
	suite.Equal("Australia", result.Country)
	suite.Equal("AU", result.CountryCode)
	suite.Equal("New South Wales", result.Region)
	suite.Equal("Sydney", result.City)
	suite.Equal("2000", result.Zip)
	suite.Equal("Australia/Sydney", result.Timezone)
	suite.Equal("Cloudflare, Inc.", result.ISP)
	suite.InDelta(-33.8688, *result.Lat, 0.0001)
	suite.InDelta(151.209, *result.Lon, 0.0001)
}

func TestFreeIPAPI(t *testing.T) {
	suite.Run(t, &MockedFreeIPAPITestSuite{})
}
