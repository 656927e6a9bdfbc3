package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// doRequest performs one rate-limited GET against path?rawQuery.
func (c *Client) doRequest(ctx context.Context, path, rawQuery string) ([]byte, error) {
	fullURL := c.baseURL + path
	if rawQuery != "" {
		fullURL += "?" + rawQuery
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == c.noDataStatus {
		return nil, errNoData
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}

// doWithRetry retries every failure except no-data and cancellation, waiting
// retry*retryDelay before retry number retry.
func (c *Client) doWithRetry(ctx context.Context, path, rawQuery string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * c.retryDelay
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", wait,
				"path", path,
				"error", lastErr,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		body, err := c.doRequest(ctx, path, rawQuery)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, errNoData) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = err
	}

	fe := &FetchError{
		Endpoint: path,
		Reason:   lastErr.Error(),
		Retries:  c.maxRetries,
		Err:      lastErr,
	}
	var apiErr *APIError
	if errors.As(lastErr, &apiErr) {
		fe.StatusCode = apiErr.StatusCode
	}
	c.logger.Warn("request failed", "path", path, "retries", c.maxRetries, "error", lastErr)
	return nil, fe
}
