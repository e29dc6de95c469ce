package providers

import "errors"

var (
	// ErrAuthTokenIsRequired is returned if you are trying to initialize
	// a provider which requires some token to work.
	ErrAuthTokenIsRequired = errors.New("auth token is required")

	// ErrDatabasePathIsRequired is returned if offline provider was
	// initialized without a path to its database.
	ErrDatabasePathIsRequired = errors.New("path to database is required")

	// ErrLookupFailed is returned if provider has explicitly reported
	// that it cannot geolocate an address.
	ErrLookupFailed = errors.New("provider has failed to geolocate address")

	// ErrNoData is returned if provider knows nothing about an address.
	ErrNoData = errors.New("no data for this address")
)
