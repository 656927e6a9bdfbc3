package poller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/thetafeed/internal/api"
	"github.com/rickgao/thetafeed/internal/model"
	"github.com/rickgao/thetafeed/internal/symbol"
)

func page(format, rows string) string {
	return fmt.Sprintf(`{"header":{"latency_ms":1,"error_type":"null","error_msg":"null","next_page":"null","format":%s},"response":%s}`, format, rows)
}

// chainServer serves two expirations per root, one already expired, with
// two strikes each.
func chainServer(t *testing.T, delay time.Duration, inFlight, maxInFlight *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inFlight != nil {
			current := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := maxInFlight.Load()
				if current <= old || maxInFlight.CompareAndSwap(old, current) {
					break
				}
			}
		}
		time.Sleep(delay)

		switch r.URL.Path {
		case "/list/expirations":
			w.Write([]byte(page(`["date"]`, `[20240621,20240308,20240315]`)))
		case "/list/strikes":
			w.Write([]byte(page(`["strike"]`, `[180000,182500]`)))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func fixedNow() time.Time {
	return time.Date(2024, time.March, 12, 15, 0, 0, 0, time.UTC)
}

func TestPoller_PollAll(t *testing.T) {
	server := chainServer(t, 0, nil, nil)
	defer server.Close()

	client := api.NewClient(server.URL, api.WithTimeout(5*time.Second))
	codec := symbol.NewCodec()

	var mu sync.Mutex
	chains := make(map[string]Chain)
	handler := ChainHandlerFunc(func(ctx context.Context, c Chain) error {
		mu.Lock()
		chains[c.Root] = c
		mu.Unlock()
		return nil
	})

	cfg := Config{
		Roots:          []string{"aapl", "MSFT"},
		Interval:       time.Hour, // Long interval, we'll trigger manually.
		Concurrency:    2,
		MaxExpirations: 1,
	}
	p := New(cfg, client, codec, handler, nil)
	p.now = fixedNow

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p.ctx = ctx

	p.pollAll()

	if len(chains) != 2 {
		t.Fatalf("chains = %d, want 2", len(chains))
	}
	aapl := chains["AAPL"]
	// Nearest unexpired expiration only: 2 strikes x 2 rights.
	if len(aapl.Contracts) != 4 {
		t.Fatalf("AAPL contracts = %d, want 4", len(aapl.Contracts))
	}
	for _, key := range aapl.Contracts {
		if key.Expiry != model.NewDate(2024, time.March, 15) {
			t.Errorf("contract %v has expiry %v, want 2024-03-15", key, key.Expiry)
		}
	}
	if first := aapl.Contracts[0]; first.StrikeMilli != 180000 || first.Right != model.Call || first.Class != model.Option {
		t.Errorf("first contract = %+v", first)
	}

	if codec.Len() != 8 {
		t.Errorf("codec.Len() = %d, want 8", codec.Len())
	}
	if _, err := codec.Decode("MSFT,20240315,182500,P"); err != nil {
		t.Errorf("Decode registered contract: %v", err)
	}

	stats := p.Stats()
	if stats.Cycles != 1 || stats.Chains != 2 || stats.Contracts != 8 || stats.Errors != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestPoller_HandlerError(t *testing.T) {
	server := chainServer(t, 0, nil, nil)
	defer server.Close()

	client := api.NewClient(server.URL)
	handler := ChainHandlerFunc(func(ctx context.Context, c Chain) error {
		return fmt.Errorf("subscribe %s: refused", c.Root)
	})

	p := New(Config{Roots: []string{"AAPL"}}, client, nil, handler, nil)
	p.now = fixedNow
	p.ctx = context.Background()

	p.pollAll()

	if e := p.Stats().Errors; e != 1 {
		t.Errorf("Errors = %d, want 1", e)
	}
}

func TestPoller_StartStop(t *testing.T) {
	server := chainServer(t, 0, nil, nil)
	defer server.Close()

	client := api.NewClient(server.URL)

	var called atomic.Bool
	handler := ChainHandlerFunc(func(ctx context.Context, c Chain) error {
		called.Store(true)
		return nil
	})

	cfg := Config{
		Roots:       []string{"AAPL"},
		Interval:    100 * time.Millisecond,
		Concurrency: 1,
	}
	p := New(cfg, client, nil, handler, nil)
	p.now = fixedNow

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait for at least one poll.
	time.Sleep(150 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if !called.Load() {
		t.Error("handler was never called")
	}
}

func TestPoller_Concurrency(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32

	server := chainServer(t, 20*time.Millisecond, &inFlight, &maxInFlight)
	defer server.Close()

	client := api.NewClient(server.URL)

	var roots []string
	for i := range 10 {
		roots = append(roots, "R"+string(rune('A'+i)))
	}

	cfg := Config{
		Roots:          roots,
		Interval:       time.Hour,
		Concurrency:    3, // Limit to 3 concurrent roots.
		MaxExpirations: 1,
	}
	p := New(cfg, client, nil, nil, nil)
	p.now = fixedNow

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	p.ctx = ctx

	p.pollAll()

	if got := maxInFlight.Load(); got > 3 {
		t.Errorf("maxInFlight = %d, want <= 3", got)
	}
	if c := p.Stats().Chains; c != 10 {
		t.Errorf("Chains = %d, want 10", c)
	}
}
