package diag

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestOnce_Warn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	o := New()

	if !o.Warn(logger, "index/quote", "unsupported request", "class", "INDEX") {
		t.Error("first Warn should fire")
	}
	if o.Warn(logger, "index/quote", "unsupported request", "class", "INDEX") {
		t.Error("second Warn should not fire")
	}
	if !o.Warn(logger, "equity/oi", "unsupported request") {
		t.Error("distinct key should fire")
	}

	if n := strings.Count(buf.String(), "unsupported request"); n != 2 {
		t.Errorf("logged %d lines, want 2:\n%s", n, buf.String())
	}
	if !strings.Contains(buf.String(), "diag_key=index/quote") {
		t.Errorf("missing diag_key attribute:\n%s", buf.String())
	}
	if !o.Seen("equity/oi") || o.Seen("other") {
		t.Error("Seen reports wrong state")
	}
}

func TestOnce_Concurrent(t *testing.T) {
	o := New()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	var fired int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if o.Warn(logger, "same", "msg") {
				atomic.AddInt32(&fired, 1)
			}
		}()
	}
	wg.Wait()

	if fired != 1 {
		t.Errorf("fired %d times, want 1", fired)
	}
}
