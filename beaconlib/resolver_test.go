package beaconlib_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/9seconds/beacon/beaconlib"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ResolverTestSuite struct {
	suite.Suite

	r             *beaconlib.Resolver
	providerMocks []*ProviderMock
	logMock       *LoggerMock
}

func (suite *ResolverTestSuite) SetupTest() {
	suite.logMock = NewLoggerMock()
	suite.providerMocks = []*ProviderMock{{}, {}}

	suite.providerMocks[0].On("Name").Return("p0").Maybe()
	suite.providerMocks[1].On("Name").Return("p1").Maybe()

	suite.r = beaconlib.NewResolver([]beaconlib.Provider{
		suite.providerMocks[0],
		suite.providerMocks[1],
	}, suite.logMock, 100*time.Millisecond)
}

func (suite *ResolverTestSuite) TearDownTest() {
	for _, v := range suite.providerMocks {
		v.AssertExpectations(suite.T())
	}
}

func (suite *ResolverTestSuite) TestFirstProviderWins() {
	suite.providerMocks[0].
		On("Lookup", mock.Anything, mock.Anything).
		Return(beaconlib.Location{City: "Mountain View", CountryCode: "us"}, nil).
		Once()

	res := suite.r.Resolve(context.Background(), net.ParseIP("8.8.8.8"))

	suite.True(res.Resolved)
	suite.Equal("p0", res.Provider)
	suite.Equal("Mountain View", res.Location.City)
	suite.Equal("US", res.Location.CountryCode)
	suite.Equal("United States", res.Location.Country)
	suite.Equal("8.8.8.8", res.Location.IP)
}

func (suite *ResolverTestSuite) TestFallbackOnTimeout() {
	suite.providerMocks[0].
		On("Lookup", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(beaconlib.Location{}, context.DeadlineExceeded).
		Once()
	suite.providerMocks[1].
		On("Lookup", mock.Anything, mock.Anything).
		Return(beaconlib.Location{
			City:    "Mountain View",
			Country: "United States",
		}, nil).
		Once()

	started := time.Now()
	res := suite.r.Resolve(context.Background(), net.ParseIP("8.8.8.8"))

	suite.True(res.Resolved)
	suite.Equal("p1", res.Provider)
	suite.Equal("Mountain View", res.Location.City)
	suite.Equal("United States", res.Location.Country)
	suite.Less(time.Since(started), time.Second)

	suite.logMock.AssertCalled(suite.T(), "LookupError", net.ParseIP("8.8.8.8"), "p0", mock.Anything)
}

func (suite *ResolverTestSuite) TestMalformedAnswerFallsThrough() {
	suite.providerMocks[0].
		On("Lookup", mock.Anything, mock.Anything).
		Return(beaconlib.Location{City: "Nowhere"}, nil).
		Once()
	suite.providerMocks[1].
		On("Lookup", mock.Anything, mock.Anything).
		Return(beaconlib.Location{CountryCode: "FR", City: "Paris"}, nil).
		Once()

	res := suite.r.Resolve(context.Background(), net.ParseIP("81.2.69.142"))

	suite.True(res.Resolved)
	suite.Equal("p1", res.Provider)
	suite.Equal("France", res.Location.Country)
}

func (suite *ResolverTestSuite) TestAllFailed() {
	suite.providerMocks[0].
		On("Lookup", mock.Anything, mock.Anything).
		Return(beaconlib.Location{}, io.EOF).
		Once()
	suite.providerMocks[1].
		On("Lookup", mock.Anything, mock.Anything).
		Return(beaconlib.Location{}, io.ErrUnexpectedEOF).
		Once()

	res := suite.r.Resolve(context.Background(), net.ParseIP("8.8.8.8"))

	suite.False(res.Resolved)
	suite.Empty(res.Provider)
	suite.Equal(beaconlib.Location{}, res.Location)

	stats := suite.r.UsageStats()

	suite.Len(stats, 2)
	suite.Equal("p0", stats[0].Name)
}

func (suite *ResolverTestSuite) TestUnroutableAddresses() {
	for _, v := range []string{"127.0.0.1", "::1", "10.0.0.1", "192.168.1.1", "fe80::1", "0.0.0.0"} {
		res := suite.r.Resolve(context.Background(), net.ParseIP(v))

		suite.False(res.Resolved, v)
		suite.Equal(beaconlib.Location{}, res.Location, v)
	}

	res := suite.r.Resolve(context.Background(), nil)

	suite.False(res.Resolved)
}

func (suite *ResolverTestSuite) TestClosedContext() {
	ctx, cancel := context.WithCancel(context.Background())

	cancel()

	res := suite.r.Resolve(ctx, net.ParseIP("8.8.8.8"))

	suite.False(res.Resolved)
}

func (suite *ResolverTestSuite) TestProbe() {
	suite.providerMocks[0].
		On("Lookup", mock.Anything, mock.Anything).
		Return(beaconlib.Location{}, io.EOF).
		Once()
	suite.providerMocks[1].
		On("Lookup", mock.Anything, mock.Anything).
		Return(beaconlib.Location{CountryCode: "de"}, nil).
		Once()

	probes := suite.r.Probe(context.Background(), net.ParseIP("8.8.8.8"))

	suite.Len(probes, 2)
	suite.Equal("p0", probes[0].Provider)
	suite.Equal("EOF", probes[0].Error)
	suite.Nil(probes[0].Location)
	suite.Equal("p1", probes[1].Provider)
	suite.Equal("de", probes[1].Location.CountryCode)
}

func TestResolver(t *testing.T) {
	suite.Run(t, &ResolverTestSuite{})
}
