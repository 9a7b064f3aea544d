package osm

import (
	"errors"
	"fmt"
)

// ErrQueryFailed marks an Overpass call that failed after all retries.
var ErrQueryFailed = errors.New("building query failed")

// QueryFailedError carries the last underlying error of an exhausted retry loop.
type QueryFailedError struct {
	Attempts int
	Err      error
}

func (e *QueryFailedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrQueryFailed, e.Attempts, e.Err)
}

func (e *QueryFailedError) Unwrap() error {
	return e.Err
}

func (e *QueryFailedError) Is(target error) bool {
	return target == ErrQueryFailed
}

// statusError is returned for non-2xx Overpass responses.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("overpass returned HTTP %d: %s", e.StatusCode, e.Body)
}
