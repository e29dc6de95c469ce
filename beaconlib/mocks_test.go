package beaconlib_test

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/9seconds/beacon/beaconlib"
	"github.com/stretchr/testify/mock"
)

type ProviderMock struct {
	mock.Mock
}

func (m *ProviderMock) Lookup(ctx context.Context, ip net.IP) (beaconlib.Location, error) {
	args := m.Called(ctx, ip)

	return args.Get(0).(beaconlib.Location), args.Error(1)
}

func (m *ProviderMock) Name() string {
	return m.Called().String(0)
}

type LoggerMock struct {
	mock.Mock
}

func (m *LoggerMock) LookupError(ip net.IP, name string, err error) {
	m.Called(ip, name, err)
}

func (m *LoggerMock) TrackInfo(visit *beaconlib.Visit) {
	m.Called(visit)
}

func (m *LoggerMock) TrackError(ip string, err error) {
	m.Called(ip, err)
}

func (m *LoggerMock) HubInfo(msg string, clients int) {
	m.Called(msg, clients)
}

func (m *LoggerMock) HubError(err error) {
	m.Called(err)
}

func (m *LoggerMock) HTTPRequest(req *http.Request, status int, elapsed time.Duration) {
	m.Called(req, status, elapsed)
}

func (m *LoggerMock) HTTPError(req *http.Request, err error) {
	m.Called(req, err)
}

func NewLoggerMock() *LoggerMock {
	logger := &LoggerMock{}

	logger.On("LookupError", mock.Anything, mock.Anything, mock.Anything).Maybe()
	logger.On("TrackInfo", mock.Anything).Maybe()
	logger.On("TrackError", mock.Anything, mock.Anything).Maybe()
	logger.On("HubInfo", mock.Anything, mock.Anything).Maybe()
	logger.On("HubError", mock.Anything).Maybe()
	logger.On("HTTPRequest", mock.Anything, mock.Anything, mock.Anything).Maybe()
	logger.On("HTTPError", mock.Anything, mock.Anything).Maybe()

	return logger
}

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) Create(ctx context.Context, visit *beaconlib.Visit) error {
	return m.Called(ctx, visit).Error(0)
}

func (m *StoreMock) Get(ctx context.Context, id int64) (*beaconlib.Visit, error) {
	args := m.Called(ctx, id)

	if v := args.Get(0); v != nil {
		return v.(*beaconlib.Visit), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *StoreMock) List(ctx context.Context, offset, limit int) ([]beaconlib.Visit, error) {
	args := m.Called(ctx, offset, limit)

	if v := args.Get(0); v != nil {
		return v.([]beaconlib.Visit), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *StoreMock) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)

	return args.Get(0).(int64), args.Error(1)
}

func (m *StoreMock) Stats(ctx context.Context, since time.Time, top int) (*beaconlib.Stats, error) {
	args := m.Called(ctx, since, top)

	if v := args.Get(0); v != nil {
		return v.(*beaconlib.Stats), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *StoreMock) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *StoreMock) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)

	return args.Get(0).(int64), args.Error(1)
}

func (m *StoreMock) UpdateLatestPending(ctx context.Context,
	ip string,
	since time.Time,
	update beaconlib.LocationUpdate) (*beaconlib.Visit, error) {
	args := m.Called(ctx, ip, since, update)

	if v := args.Get(0); v != nil {
		return v.(*beaconlib.Visit), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *StoreMock) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) Broadcast(event string, visit *beaconlib.Visit) {
	m.Called(event, visit)
}
