package main

import (
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/9seconds/beacon/beaconlib"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

type logger struct {
	lookupLog     zerolog.Logger
	trackLog      zerolog.Logger
	realtimeLog   zerolog.Logger
	httpLog       zerolog.Logger
	supervisorLog zerolog.Logger
}

func (l *logger) LookupError(ip net.IP, name string, err error) {
	l.lookupLog.Warn().Str("provider", name).Stringer("ip", ip).Err(err).Msg("")
}

func (l *logger) TrackInfo(visit *beaconlib.Visit) {
	l.trackLog.Info().
		Int64("id", visit.ID).
		Str("ip", visit.IP).
		Str("city", visit.City).
		Str("country", visit.Country).
		Str("lookup_source", visit.LookupSource).
		Msg("Visit was recorded")
}

func (l *logger) TrackError(ip string, err error) {
	l.trackLog.Error().Str("ip", ip).Err(err).Msg("")
}

func (l *logger) HubInfo(msg string, clients int) {
	l.realtimeLog.Debug().Int("clients", clients).Msg(msg)
}

func (l *logger) HubError(err error) {
	l.realtimeLog.Warn().Err(err).Msg("")
}

func (l *logger) HTTPRequest(req *http.Request, status int, elapsed time.Duration) {
	l.httpLog.Debug().
		Str("request_id", middleware.GetReqID(req.Context())).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("ip", beaconlib.ClientIP(req)).
		Int("status", status).
		Dur("elapsed", elapsed).
		Msg("")
}

func (l *logger) HTTPError(req *http.Request, err error) {
	l.httpLog.Error().
		Str("request_id", middleware.GetReqID(req.Context())).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Err(err).
		Msg("")
}

func (l *logger) SupervisorEvent(evt suture.Event) {
	l.supervisorLog.Warn().Fields(evt.Map()).Msg(evt.String())
}

func (l *logger) Info(msg string, fields map[string]interface{}) {
	l.supervisorLog.Info().Fields(fields).Msg(msg)
}

func (l *logger) Error(msg string, err error) {
	l.supervisorLog.Error().Err(err).Msg(msg)
}

func (l *logger) Fatal(msg string, err error) {
	l.supervisorLog.Fatal().Err(err).Msg(msg)
}

func newLogger(debug bool, format string) *logger {
	var output io.Writer = os.Stderr

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if format == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	makeLogger := func(eventName string) zerolog.Logger {
		return zerolog.New(output).
			Level(level).
			With().
			Timestamp().
			Str("event_name", eventName).
			Logger()
	}

	return &logger{
		lookupLog:     makeLogger("lookup"),
		trackLog:      makeLogger("track"),
		realtimeLog:   makeLogger("realtime"),
		httpLog:       makeLogger("http"),
		supervisorLog: makeLogger("supervisor"),
	}
}
