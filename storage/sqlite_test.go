package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/9seconds/beacon/beaconlib"
	"github.com/9seconds/beacon/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type SQLiteTestSuite struct {
	suite.Suite

	ctx   context.Context
	store *storage.SQLite
	now   time.Time
}

func (suite *SQLiteTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	store, err := storage.NewSQLite(suite.ctx,
		filepath.Join(suite.T().TempDir(), "beacon.db"))

	suite.Require().NoError(err)

	suite.store = store
}

func (suite *SQLiteTestSuite) TearDownTest() {
	suite.store.Close()
}

func (suite *SQLiteTestSuite) makeVisit(ip, city string, ago time.Duration) *beaconlib.Visit {
	visit := &beaconlib.Visit{
		SessionID: uuid.NewString(),
		IP:        ip,
		Country:   beaconlib.UnknownValue,
		Region:    beaconlib.UnknownValue,
		City:      city,
		UserAgent: "curl/8.0",
		Referer:   beaconlib.DirectReferer,
		Timestamp: suite.now.Add(-ago),
	}

	suite.Require().NoError(suite.store.Create(suite.ctx, visit))

	return visit
}

func (suite *SQLiteTestSuite) TestCreateGet() {
	lat := 37.4224
	visit := &beaconlib.Visit{
		SessionID:    uuid.NewString(),
		IP:           "8.8.8.8",
		Country:      "United States",
		CountryCode:  "US",
		Region:       "California",
		City:         "Mountain View",
		Lat:          &lat,
		ISP:          "Google LLC",
		UserAgent:    "curl/8.0",
		Referer:      beaconlib.DirectReferer,
		LookupSource: "ipapi",
		Timestamp:    suite.now,
	}

	suite.NoError(suite.store.Create(suite.ctx, visit))
	suite.NotZero(visit.ID)

	stored, err := suite.store.Get(suite.ctx, visit.ID)

	suite.NoError(err)
	suite.Equal(visit.SessionID, stored.SessionID)
	suite.Equal("Mountain View", stored.City)
	suite.Equal("ipapi", stored.LookupSource)
	suite.InDelta(lat, *stored.Lat, 0.00001)
	suite.Nil(stored.Lon)
	suite.True(suite.now.Equal(stored.Timestamp))
}

func (suite *SQLiteTestSuite) TestDuplicateSession() {
	visit := suite.makeVisit("1.1.1.1", "Sydney", 0)
	duplicate := *visit
	duplicate.ID = 0

	suite.Error(suite.store.Create(suite.ctx, &duplicate))
}

func (suite *SQLiteTestSuite) TestGetAbsent() {
	_, err := suite.store.Get(suite.ctx, 100)

	suite.ErrorIs(err, beaconlib.ErrVisitNotFound)
}

func (suite *SQLiteTestSuite) TestListOrder() {
	oldest := suite.makeVisit("1.1.1.1", "Sydney", time.Hour)
	first := suite.makeVisit("2.2.2.2", "Paris", 0)
	second := suite.makeVisit("3.3.3.3", "Berlin", 0)

	visits, err := suite.store.List(suite.ctx, 0, 10)

	suite.NoError(err)
	suite.Len(visits, 3)
	suite.Equal(second.ID, visits[0].ID)
	suite.Equal(first.ID, visits[1].ID)
	suite.Equal(oldest.ID, visits[2].ID)

	visits, err = suite.store.List(suite.ctx, 1, 1)

	suite.NoError(err)
	suite.Len(visits, 1)
	suite.Equal(first.ID, visits[0].ID)

	visits, err = suite.store.List(suite.ctx, 10, 10)

	suite.NoError(err)
	suite.NotNil(visits)
	suite.Empty(visits)
}

func (suite *SQLiteTestSuite) TestCount() {
	suite.makeVisit("1.1.1.1", "Sydney", 0)
	suite.makeVisit("1.1.1.1", "Sydney", 0)

	count, err := suite.store.Count(suite.ctx)

	suite.NoError(err)
	suite.EqualValues(2, count)
}

func (suite *SQLiteTestSuite) TestStats() {
	for i := 0; i < 3; i++ {
		suite.makeVisit("1.1.1.1", "Sydney", 0)
	}

	suite.makeVisit("2.2.2.2", "Paris", 10*24*time.Hour)
	suite.makeVisit("3.3.3.3", beaconlib.UnknownValue, 0)

	stats, err := suite.store.Stats(suite.ctx, suite.now.Add(-7*24*time.Hour), 5)

	suite.NoError(err)
	suite.EqualValues(5, stats.Total)
	suite.EqualValues(4, stats.RecentCount)
	suite.Equal([]beaconlib.StatsItem{
		{Value: "Sydney", Count: 3},
		{Value: "Paris", Count: 1},
	}, stats.TopCities)
	suite.Empty(stats.TopCountries)
	suite.Empty(stats.TopISPs)

	stats, err = suite.store.Stats(suite.ctx, suite.now, 1)

	suite.NoError(err)
	suite.Len(stats.TopCities, 1)
}

func (suite *SQLiteTestSuite) TestDelete() {
	visit := suite.makeVisit("1.1.1.1", "Sydney", 0)

	suite.NoError(suite.store.Delete(suite.ctx, visit.ID))
	suite.ErrorIs(suite.store.Delete(suite.ctx, visit.ID), beaconlib.ErrVisitNotFound)

	_, err := suite.store.Get(suite.ctx, visit.ID)

	suite.ErrorIs(err, beaconlib.ErrVisitNotFound)
}

func (suite *SQLiteTestSuite) TestDeleteAll() {
	suite.makeVisit("1.1.1.1", "Sydney", 0)
	suite.makeVisit("2.2.2.2", "Paris", 0)

	deleted, err := suite.store.DeleteAll(suite.ctx)

	suite.NoError(err)
	suite.EqualValues(2, deleted)

	deleted, err = suite.store.DeleteAll(suite.ctx)

	suite.NoError(err)
	suite.EqualValues(0, deleted)
}

func (suite *SQLiteTestSuite) TestUpdateLatestPending() {
	older := suite.makeVisit("1.1.1.1", beaconlib.UnknownValue, 2*time.Minute)
	latest := suite.makeVisit("1.1.1.1", beaconlib.UnknownValue, time.Minute)
	suite.makeVisit("2.2.2.2", beaconlib.UnknownValue, 0)

	lat := 48.8566
	lon := 2.3522

	visit, err := suite.store.UpdateLatestPending(suite.ctx,
		"1.1.1.1",
		suite.now.Add(-30*time.Minute),
		beaconlib.LocationUpdate{
			City:         "Paris",
			Country:      "France",
			CountryCode:  "FR",
			Lat:          &lat,
			Lon:          &lon,
			LookupSource: "browser",
		})

	suite.NoError(err)
	suite.Equal(latest.ID, visit.ID)
	suite.Equal("Paris", visit.City)
	suite.Equal("France", visit.Country)
	suite.Equal("FR", visit.CountryCode)
	suite.Equal(beaconlib.UnknownValue, visit.Region)
	suite.Equal("browser", visit.LookupSource)
	suite.InDelta(lat, *visit.Lat, 0.00001)
	suite.InDelta(lon, *visit.Lon, 0.00001)
	suite.Equal(latest.SessionID, visit.SessionID)

	stored, err := suite.store.Get(suite.ctx, older.ID)

	suite.NoError(err)
	suite.Equal(beaconlib.UnknownValue, stored.City)

	visit, err = suite.store.UpdateLatestPending(suite.ctx,
		"1.1.1.1",
		suite.now.Add(-30*time.Minute),
		beaconlib.LocationUpdate{City: "Lyon", LookupSource: "browser"})

	suite.NoError(err)
	suite.Equal(older.ID, visit.ID)
}

func (suite *SQLiteTestSuite) TestUpdateLatestPendingOutsideWindow() {
	suite.makeVisit("1.1.1.1", beaconlib.UnknownValue, time.Hour)

	_, err := suite.store.UpdateLatestPending(suite.ctx,
		"1.1.1.1",
		suite.now.Add(-30*time.Minute),
		beaconlib.LocationUpdate{City: "Paris"})

	suite.ErrorIs(err, beaconlib.ErrVisitNotFound)
}

func (suite *SQLiteTestSuite) TestUpdateLatestPendingResolved() {
	suite.makeVisit("1.1.1.1", "Sydney", 0)

	_, err := suite.store.UpdateLatestPending(suite.ctx,
		"1.1.1.1",
		suite.now.Add(-30*time.Minute),
		beaconlib.LocationUpdate{City: "Paris"})

	suite.ErrorIs(err, beaconlib.ErrVisitNotFound)
}

func (suite *SQLiteTestSuite) TestPing() {
	suite.NoError(suite.store.Ping(suite.ctx))
	suite.store.Close()
	suite.Error(suite.store.Ping(suite.ctx))
}

func TestSQLite(t *testing.T) {
	suite.Run(t, &SQLiteTestSuite{})
}

func TestDriverName(t *testing.T) {
	testData := map[string]string{
		"libsql://beacon.turso.io?authToken=x": storage.DriverLibSQL,
		"https://beacon.turso.io":              storage.DriverLibSQL,
		"ws://127.0.0.1:8080":                  storage.DriverLibSQL,
		"beacon.db":                            storage.DriverSQLite,
		"/var/lib/beacon/visits.db":            storage.DriverSQLite,
		"file:beacon.db":                       storage.DriverSQLite,
	}

	for input, expected := range testData {
		assert.Equal(t, expected, storage.DriverName(input), input)
	}
}

func TestNewSQLiteBadPath(t *testing.T) {
	_, err := storage.NewSQLite(context.Background(),
		filepath.Join(t.TempDir(), "absent", "dir", "beacon.db"))

	assert.Error(t, err)
}

var _ beaconlib.Store = &storage.SQLite{}
