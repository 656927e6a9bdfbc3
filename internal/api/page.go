package api

import (
	"maps"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/thetafeed/internal/model"
)

// Header is the metadata block of every response.
type Header struct {
	LatencyMS int      `json:"latency_ms"`
	ErrorType string   `json:"error_type"`
	ErrorMsg  string   `json:"error_msg"`
	NextPage  string   `json:"next_page"`
	Format    []string `json:"format"`
}

// HasNext reports whether another page follows.
func (h Header) HasNext() bool {
	return h.NextPage != "" && h.NextPage != "null"
}

// Page is one decoded response.
type Page[T any] struct {
	Header   Header `json:"header"`
	Response []T    `json:"response"`
}

// FetchRequest describes a logical query before pagination or fan-out.
type FetchRequest struct {
	Endpoint string
	Params   url.Values

	// Range is the inclusive date span, sent as start_date/end_date. A zero
	// Range means the endpoint takes no dates.
	Range model.DateRange

	// Interval is the sampling interval of the data. It only steers fan-out
	// sizing; endpoints receive it through Params ("ivl").
	Interval time.Duration
}

// HasRange reports whether the request carries a date span.
func (r FetchRequest) HasRange() bool {
	return !r.Range.Start.IsZero() && !r.Range.End.IsZero()
}

// WithRange returns a copy of r restricted to rg. Params are cloned so
// parallel clones never share a map.
func (r FetchRequest) WithRange(rg model.DateRange) FetchRequest {
	clone := r
	clone.Params = maps.Clone(r.Params)
	clone.Range = rg
	return clone
}

// Query returns the encoded query parameters including the date span.
func (r FetchRequest) Query() url.Values {
	q := url.Values{}
	for k, v := range r.Params {
		q[k] = append([]string(nil), v...)
	}
	if r.HasRange() {
		q.Set("start_date", strconv.Itoa(r.Range.Start.Int()))
		q.Set("end_date", strconv.Itoa(r.Range.End.Int()))
	}
	return q
}
