package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"syscall"

	"github.com/9seconds/beacon/beaconlib"
	"github.com/9seconds/beacon/providers"
	"github.com/spf13/afero"
)

func makeRootContext() (context.Context, context.CancelFunc) {
	rootCtx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)

	go func() {
		for range sigChan {
			cancel()
		}
	}()

	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	return rootCtx, cancel
}

// makeProviders returns providers in the order of a config. Some of
// them hold resources, these are returned as closers.
func makeProviders(conf *config, fs afero.Fs) ([]beaconlib.Provider, []io.Closer, error) {
	rv := make([]beaconlib.Provider, 0, len(conf.GetProviders()))
	closers := []io.Closer{}

	for _, v := range conf.GetProviders() {
		var (
			prov beaconlib.Provider
			err  error
		)

		httpClient := makeNewHTTPClient(v)
		params := v.GetSpecificParameters()

		switch v.GetName() {
		case providers.NameIPAPI:
			prov = providers.NewIPAPI(httpClient, params)
		case providers.NameFreeIPAPI:
			prov = providers.NewFreeIPAPI(httpClient, params)
		case providers.NameIPInfo:
			prov = providers.NewIPInfo(httpClient, params)
		case providers.NameKeyCDN:
			prov = providers.NewKeyCDN(httpClient)
		case providers.NameIPStack:
			prov, err = providers.NewIPStack(httpClient, params)
		case providers.NameMaxmind:
			prov, err = providers.NewMaxmind(fs, params)
		default:
			err = fmt.Errorf("unsupported provider name: %s", v.GetName())
		}

		if err != nil {
			closeAll(closers)

			return nil, nil, fmt.Errorf("cannot create %s provider: %w", v.GetName(), err)
		}

		if closer, ok := prov.(io.Closer); ok {
			closers = append(closers, closer)
		}

		if items := v.GetCacheItems(); items > 0 {
			prov = beaconlib.NewCachingProvider(prov, items, v.GetCacheTTL())
		}

		rv = append(rv, prov)
	}

	return rv, closers, nil
}

func makeNewHTTPClient(conf configProvider) beaconlib.HTTPClient {
	jar, err := cookiejar.New(nil)
	if err != nil {
		panic(err)
	}

	httpClient := &http.Client{
		Timeout: conf.GetHTTPTimeout(),
		Jar:     jar,
	}

	userAgent := "beacon/" + version
	if value := conf.GetSpecificParameters()["user_agent"]; value != "" {
		userAgent = value
	}

	return beaconlib.NewHTTPClient(httpClient,
		userAgent,
		conf.GetRateLimitInterval(),
		conf.GetRateLimitBurst(),
		conf.GetCircuitBreakerThreshold(),
		conf.GetCircuitBreakerOpenTimeout())
}

func closeAll(closers []io.Closer) {
	for _, v := range closers {
		v.Close() // nolint: errcheck
	}
}
