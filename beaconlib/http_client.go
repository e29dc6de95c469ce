package beaconlib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

type httpClient struct {
	userAgent      string
	client         *http.Client
	rateLimiter    *rate.Limiter
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
}

func (h httpClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	req.Header.Set("User-Agent", h.userAgent)

	return h.circuitBreaker.Execute(func() (*http.Response, error) {
		if err := h.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := h.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= http.StatusBadRequest {
			flushResponse(resp.Body)

			return nil, fmt.Errorf("netloc has responded with %s", resp.Status)
		}

		return resp, nil
	})
}

func flushResponse(body io.ReadCloser) {
	io.Copy(io.Discard, body) // nolint: errcheck
	body.Close()
}

// NewHTTPClient prepares a new HTTP client, wraps it with rate limiter,
// circuit breaker, sets a user agent etc.
//
// Please see https://pkg.go.dev/golang.org/x/time/rate to get a meaning
// of rate limiter parameters.
//
// A meaning of circuit breaker parameters:
//
// circuitBreakerThreshold - a number of consecutive failures after which
// circuit breaker becomes OPEN and rejects requests without touching a
// network. This is what makes fallback to the next provider fast if
// a current one is down.
//
// circuitBreakerOpenTimeout - how long circuit breaker stays OPEN. After
// this period it goes into HALF_OPEN state and allows 1 attempt. If this
// attempt fails, then it goes into OPEN state again. If succeed - goes to
// CLOSED.
func NewHTTPClient(client *http.Client,
	userAgent string,
	rateLimiterInterval time.Duration,
	rateLimitBurst int,
	circuitBreakerThreshold uint32,
	circuitBreakerOpenTimeout time.Duration) HTTPClient {
	settings := gobreaker.Settings{
		Name:        userAgent,
		MaxRequests: 1,
		Timeout:     circuitBreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return circuitBreakerThreshold > 0 && counts.ConsecutiveFailures >= circuitBreakerThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return httpClient{
		userAgent:      userAgent,
		client:         client,
		rateLimiter:    rate.NewLimiter(rate.Every(rateLimiterInterval), rateLimitBurst),
		circuitBreaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
	}
}
