package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrFetchFailed matches any *FetchError via errors.Is.
var ErrFetchFailed = errors.New("fetch failed")

// errNoData signals the terminal's no-data status. It never escapes Fetch.
var errNoData = errors.New("no data")

// APIError is a non-success HTTP response. It is treated as transient and
// retried.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("thetadata api error %d: %s", e.StatusCode, e.Message)
}

// FetchError is returned once a page request has exhausted its retries, or
// its body could not be decoded.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Reason     string
	Retries    int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s failed", e.Endpoint)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d %s)", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Retries > 0 {
		msg += fmt.Sprintf(" after %d retries", e.Retries)
	}
	return msg + ": " + e.Reason
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }
