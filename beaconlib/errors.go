package beaconlib

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	// ErrVisitNotFound is returned by Store if there is no such visit.
	ErrVisitNotFound = errors.New("visit is not found")

	// ErrNoPendingVisit is returned if there is no visit of the given
	// address which waits for a location update.
	ErrNoPendingVisit = errors.New("no pending visit for this address")

	// ErrEmptyLocation is returned if location update has neither city
	// nor country.
	ErrEmptyLocation = errors.New("location has neither city nor country")

	// ErrRecorderShutdown is returned if recorder does not accept new
	// visits anymore.
	ErrRecorderShutdown = errors.New("recorder was shutdown")

	// ErrMalformedLocation is returned if provider has responded with
	// something which cannot be treated as a location.
	ErrMalformedLocation = errors.New("location is malformed")

	// ErrUnroutableIP is returned for addresses which cannot be
	// geolocated by definition: loopback, private networks etc.
	ErrUnroutableIP = errors.New("ip address is not routable")
)

type jsonAPIError struct {
	Error struct {
		Message string `json:"message"`
		Context string `json:"context"`
	} `json:"error"`
}

type apiError struct {
	message    string
	err        error
	statusCode int
}

func (a *apiError) Message() string {
	if a == nil {
		return ""
	}

	return a.message
}

func (a *apiError) Context() string {
	if err := a.Unwrap(); err != nil {
		return err.Error()
	}

	return ""
}

func (a *apiError) StatusCode() int {
	if a != nil && a.statusCode != 0 {
		return a.statusCode
	}

	return http.StatusInternalServerError
}

func (a *apiError) Unwrap() error {
	if a == nil {
		return nil
	}

	return a.err
}

func (a *apiError) Error() string {
	switch {
	case a == nil:
		return ""
	case a.err != nil && a.message != "":
		return a.message + ": " + a.err.Error()
	case a.err != nil:
		return a.err.Error()
	}

	return a.message
}

func (a *apiError) MarshalJSON() ([]byte, error) {
	value := jsonAPIError{}
	value.Error.Message = a.Message()
	value.Error.Context = a.Context()

	return json.Marshal(&value)
}

func newAPIError(statusCode int, message string, err error) *apiError {
	return &apiError{
		message:    message,
		err:        err,
		statusCode: statusCode,
	}
}
