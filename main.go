package main

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/9seconds/beacon/beaconlib"
	"github.com/9seconds/beacon/storage"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/thejerf/suture/v4"
)

const (
	version = "0.1.0"

	readHeaderTimeout = 10 * time.Second
)

var (
	app = kingpin.New(
		"beacon",
		"Visitor tracker with realtime admin dashboard")

	debug = app.Flag("debug", "Run in debug mode.").
		Short('d').
		Envar("BEACON_DEBUG").
		Bool()
	logFormat = app.Flag("log-format", "Log format: json or console. Overrides config.").
			Envar("BEACON_LOG_FORMAT").
			Enum("json", "console")
	envFile = app.Flag("env-file", "Path to .env file.").
		Default(".env").
		String()
	configFile = app.Arg("config-path", "Path to the config.").
			Envar("BEACON_CONFIG").
			Required().
			File()
)

func init() {
	app.Version(version)
	app.HelpFlag.Short('h')
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		app.Fatalf("cannot load env file: %v", err)
	}

	conf, err := parseConfig(*configFile)
	(*configFile).Close()

	app.FatalIfError(err, "cannot parse config")

	format := conf.GetLogFormat()
	if *logFormat != "" {
		format = *logFormat
	}

	log := newLogger(*debug, format)
	ctx, cancel := makeRootContext()

	defer cancel()

	store, err := storage.NewSQLite(ctx, conf.GetDatabaseURL())
	if err != nil {
		log.Fatal("cannot initialize a store", err)
	}

	defer store.Close()

	provs, closers, err := makeProviders(conf, afero.NewOsFs())
	if err != nil {
		log.Fatal("cannot initialize providers", err)
	}

	defer closeAll(closers)

	resolver := beaconlib.NewResolver(provs, log, conf.GetAttemptTimeout())
	hub := beaconlib.NewHub(store, log, beaconlib.HubOptions{
		BackfillSize:   conf.GetBackfillSize(),
		AllowedOrigins: conf.GetAllowedOrigins(),
	})
	recorder := beaconlib.NewRecorder(resolver, store, hub, log, beaconlib.RecorderOptions{
		WorkerPoolSize: conf.GetWorkerPoolSize(),
		TrackTimeout:   conf.GetTrackTimeout(),
		PendingWindow:  conf.GetPendingWindow(),
		SkipResolve:    !conf.GetResolveOnVisit(),
	})
	handler := beaconlib.NewHTTPHandler(resolver, recorder, hub, store, log, beaconlib.HTTPOptions{
		PublicFS:        afero.NewBasePathFs(afero.NewOsFs(), conf.GetPublicDir()),
		AdminPassword:   conf.GetAdminPassword(),
		AdminCookieTTL:  conf.GetAdminCookieTTL(),
		SecureCookie:    conf.GetSecureCookie(),
		UpdateRateLimit: conf.GetUpdateRateLimit(),
		AllowedOrigins:  conf.GetAllowedOrigins(),
	})

	supervisor := suture.New("beacon", suture.Spec{
		EventHook: log.SupervisorEvent,
		Timeout:   conf.GetShutdownTimeout(),
	})

	supervisor.Add(hubService{hub: hub})
	supervisor.Add(&httpService{
		server: &http.Server{
			Addr:              conf.GetListen(),
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		shutdownTimeout: conf.GetShutdownTimeout(),
	})

	providerNames := make([]string, 0, len(provs))
	for _, v := range provs {
		providerNames = append(providerNames, v.Name())
	}

	log.Info("Beacon has started", map[string]interface{}{
		"version":   version,
		"listen":    conf.GetListen(),
		"admin_url": "http://" + conf.GetListen() + "/admin",
		"providers": strings.Join(providerNames, ","),
		"admin":     conf.GetAdminPassword() != "",
	})

	if err := supervisor.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Error("supervisor has stopped", err)
	}

	if err := recorder.Shutdown(conf.GetShutdownTimeout()); err != nil {
		log.Error("recorder has not finished in time", err)
	}

	log.Info("Beacon has stopped", nil)
}
