package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// pageBody builds a response body in the terminal's envelope.
func pageBody(format, rows, next string) string {
	if next == "" {
		next = "null"
	}
	return fmt.Sprintf(`{"header":{"latency_ms":3,"error_type":"null","error_msg":"null","next_page":%q,"format":%s},"response":%s}`,
		next, format, rows)
}

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:25510/v2")

		if c.baseURL != "http://127.0.0.1:25510/v2" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "http://127.0.0.1:25510/v2")
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != DefaultMaxRetries {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, DefaultMaxRetries)
		}
		if c.retryDelay != DefaultRetryDelay {
			t.Errorf("retryDelay = %v, want %v", c.retryDelay, DefaultRetryDelay)
		}
		if c.noDataStatus != 472 {
			t.Errorf("noDataStatus = %d, want 472", c.noDataStatus)
		}
		if c.fanOutConcurrency != 4 {
			t.Errorf("fanOutConcurrency = %d, want 4", c.fanOutConcurrency)
		}
		if c.logger == nil || c.limiter == nil {
			t.Error("logger and limiter should not be nil")
		}
	})

	t.Run("with options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		limiter := NewRateLimiter(10, 2)
		hc := &http.Client{Timeout: 10 * time.Second}
		c := NewClient("http://localhost",
			WithHTTPClient(hc),
			WithTimeout(15*time.Second),
			WithRetries(5, 500*time.Millisecond),
			WithLogger(logger),
			WithRateLimiter(limiter),
			WithNoDataStatus(404),
			WithFanOutConcurrency(8),
		)
		if c.httpClient != hc || c.httpClient.Timeout != 15*time.Second {
			t.Errorf("http client not configured, timeout = %v", c.httpClient.Timeout)
		}
		if c.maxRetries != 5 || c.retryDelay != 500*time.Millisecond {
			t.Errorf("retries = %d/%v", c.maxRetries, c.retryDelay)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
		if c.limiter != limiter {
			t.Error("limiter not set correctly")
		}
		if c.noDataStatus != 404 {
			t.Errorf("noDataStatus = %d, want 404", c.noDataStatus)
		}
		if c.fanOutConcurrency != 8 {
			t.Errorf("fanOutConcurrency = %d, want 8", c.fanOutConcurrency)
		}
	})

	t.Run("nil logger and zero concurrency ignored", func(t *testing.T) {
		c := NewClient("http://localhost", WithLogger(nil), WithFanOutConcurrency(0))
		if c.logger == nil {
			t.Error("logger should fall back to default")
		}
		if c.fanOutConcurrency != DefaultFanOutConcurrency {
			t.Errorf("fanOutConcurrency = %d", c.fanOutConcurrency)
		}
	})
}

// TestErrors tests the error types.
func TestErrors(t *testing.T) {
	apiErr := &APIError{StatusCode: 500, Message: "Internal Server Error"}
	if apiErr.Error() != "thetadata api error 500: Internal Server Error" {
		t.Errorf("Error() = %q", apiErr.Error())
	}

	fe := &FetchError{Endpoint: "/hist/option/quote", StatusCode: 500, Reason: "boom", Retries: 2, Err: apiErr}
	if !errors.Is(fe, ErrFetchFailed) {
		t.Error("FetchError should match ErrFetchFailed")
	}
	var got *APIError
	if !errors.As(fe, &got) || got != apiErr {
		t.Error("FetchError should unwrap to APIError")
	}
	want := "fetch /hist/option/quote failed (status 500 Internal Server Error) after 2 retries: boom"
	if fe.Error() != want {
		t.Errorf("Error() = %q, want %q", fe.Error(), want)
	}
}

// TestDoRequest tests the HTTP request functionality.
func TestDoRequest(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("Accept header = %q, want %q", r.Header.Get("Accept"), "application/json")
			}
			if r.URL.Path != "/hist/option/eod" {
				t.Errorf("path = %q", r.URL.Path)
			}
			if r.URL.Query().Get("root") != "AAPL" {
				t.Errorf("root = %q, want AAPL", r.URL.Query().Get("root"))
			}
			w.Write([]byte(`{"status": "ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		body, err := c.doRequest(context.Background(), "/hist/option/eod", "root=AAPL")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"status": "ok"}` {
			t.Errorf("body = %q", string(body))
		}
	})

	t.Run("no data status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(472)
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.doRequest(context.Background(), "/x", "")
		if !errors.Is(err, errNoData) {
			t.Fatalf("expected errNoData, got %v", err)
		}
	})

	t.Run("error status returns APIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`not found`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.doRequest(context.Background(), "/x", "")
		apiErr, ok := err.(*APIError)
		if !ok {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.StatusCode != 404 {
			t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, 404)
		}
		if !strings.Contains(string(apiErr.Body), "not found") {
			t.Errorf("Body = %q", string(apiErr.Body))
		}
	})
}

// TestDoWithRetry tests the retry logic.
func TestDoWithRetry(t *testing.T) {
	t.Run("retries and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(2, time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), "/x", ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("client errors are retried too", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(2, time.Millisecond))
		_, err := c.doWithRetry(context.Background(), "/x", "")

		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected *FetchError, got %v", err)
		}
		if fe.StatusCode != 400 || fe.Retries != 2 || fe.Endpoint != "/x" {
			t.Errorf("FetchError = %+v", fe)
		}
		// 1 initial + 2 retries = 3 attempts
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("no data is not retried", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(472)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(2, time.Millisecond))
		_, err := c.doWithRetry(context.Background(), "/x", "")
		if !errors.Is(err, errNoData) {
			t.Fatalf("expected errNoData, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("timeouts are retried", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				time.Sleep(200 * time.Millisecond)
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithTimeout(50*time.Millisecond), WithRetries(2, time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), "/x", ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 2 {
			t.Errorf("attempts = %d, want 2", attempts)
		}
	})

	t.Run("context cancellation during retry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(5, 50*time.Millisecond))
		ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
		defer cancel()

		_, err := c.doWithRetry(ctx, "/x", "")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("error should be context-related, got %v", err)
		}
		if errors.Is(err, ErrFetchFailed) {
			t.Error("cancellation should not be reported as a fetch failure")
		}
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("paces requests", func(t *testing.T) {
		l := NewRateLimiter(20, 1)
		start := time.Now()
		for i := 0; i < 4; i++ {
			if err := l.Acquire(context.Background()); err != nil {
				t.Fatalf("Acquire: %v", err)
			}
		}
		// first token is immediate, the next three wait ~50ms each
		if elapsed := time.Since(start); elapsed < 120*time.Millisecond {
			t.Errorf("4 acquisitions at 20/s took %v", elapsed)
		}
	})

	t.Run("unlimited", func(t *testing.T) {
		l := NewRateLimiter(0, 0)
		start := time.Now()
		for i := 0; i < 1000; i++ {
			if err := l.Acquire(context.Background()); err != nil {
				t.Fatalf("Acquire: %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("unlimited limiter took %v", elapsed)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		l := NewRateLimiter(0.01, 1)
		l.Acquire(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := l.Acquire(ctx); err == nil {
			t.Error("expected error from cancelled Acquire")
		}
	})
}
