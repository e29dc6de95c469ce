package providers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/9seconds/beacon/beaconlib"
	"github.com/goccy/go-json"
)

func flushResponse(resp io.ReadCloser) {
	io.Copy(io.Discard, resp) // nolint: errcheck
	resp.Close()
}

func fetchJSON(ctx context.Context,
	client beaconlib.HTTPClient,
	url string,
	authToken string,
	dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("cannot build a request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("cannot send a request: %w", err)
	}

	defer flushResponse(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(bufio.NewReader(resp.Body)).Decode(dst); err != nil {
		return fmt.Errorf("cannot parse a response: %w", err)
	}

	return nil
}

// parseCoordinates parses "lat,lon" string.
func parseCoordinates(value string) (*float64, *float64) {
	latStr, lonStr, ok := strings.Cut(value, ",")
	if !ok {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return nil, nil
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return nil, nil
	}

	return &lat, &lon
}

// stripASN removes AS number from organization names like
// "AS15169 Google LLC".
func stripASN(org string) string {
	if first, rest, ok := strings.Cut(org, " "); ok && len(first) > 2 && strings.EqualFold(first[:2], "AS") {
		if _, err := strconv.ParseUint(first[2:], 10, 32); err == nil {
			return strings.TrimSpace(rest)
		}
	}

	return org
}
