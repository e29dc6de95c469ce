package providers_test

import (
	"net/http"
	"time"

	"github.com/9seconds/beacon/beaconlib"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/suite"
)

type ProviderTestSuite struct {
	suite.Suite

	http beaconlib.HTTPClient
}

func (suite *ProviderTestSuite) SetupTest() {
	suite.http = beaconlib.NewHTTPClient(&http.Client{},
		"keycdn-tools:https://example.com",
		time.Millisecond,
		100,
		0,
		time.Second)
}

type MockedProviderTestSuite struct {
	ProviderTestSuite
}

func (suite *MockedProviderTestSuite) SetupSuite() {
	httpmock.Activate()
}

func (suite *MockedProviderTestSuite) TearDownSuite() {
	httpmock.DeactivateAndReset()
}

func (suite *MockedProviderTestSuite) TearDownTest() {
	httpmock.Reset()
}
