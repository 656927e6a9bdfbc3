package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
)

// Fetch lazily walks every page of req in vendor link order. Each page is
// requested only when the consumer asks for it. A no-data response ends the
// sequence without error; a failed page yields a single error and ends it.
func Fetch[T any](ctx context.Context, c *Client, req FetchRequest) iter.Seq2[*Page[T], error] {
	return func(yield func(*Page[T], error) bool) {
		path := req.Endpoint
		rawQuery := req.Query().Encode()

		for n := 0; ; n++ {
			body, err := c.doWithRetry(ctx, path, rawQuery)
			if errors.Is(err, errNoData) {
				c.logger.Debug("no data", "endpoint", path, "page", n)
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}

			var page Page[T]
			if err := json.Unmarshal(body, &page); err != nil {
				yield(nil, &FetchError{
					Endpoint: path,
					Reason:   "decode response: " + err.Error(),
					Err:      err,
				})
				return
			}

			if !yield(&page, nil) {
				return
			}
			if !page.Header.HasNext() {
				return
			}

			path, rawQuery, err = nextPage(page.Header.NextPage)
			if err != nil {
				yield(nil, &FetchError{Endpoint: req.Endpoint, Reason: err.Error(), Err: err})
				return
			}
		}
	}
}

// Collect drains a page sequence into a single row slice.
func Collect[T any](seq iter.Seq2[*Page[T], error]) ([]T, error) {
	var rows []T
	for page, err := range seq {
		if err != nil {
			return nil, err
		}
		rows = append(rows, page.Response...)
	}
	return rows, nil
}

// nextPage turns a next_page link into a path relative to the client's base
// URL, dropping the API version prefix the link carries.
func nextPage(link string) (path, rawQuery string, err error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", "", fmt.Errorf("parse next_page %q: %w", link, err)
	}
	path = strings.TrimPrefix(u.Path, apiVersionPrefix)
	if path == "" {
		return "", "", fmt.Errorf("next_page %q has no path", link)
	}
	return path, u.RawQuery, nil
}
