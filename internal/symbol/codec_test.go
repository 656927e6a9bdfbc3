package symbol

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/thetafeed/internal/model"
)

func mustOption(t *testing.T, root string, strike string, right model.Right) model.InstrumentKey {
	t.Helper()
	k, err := model.NewOption(root, model.Option, "usa", right,
		decimal.RequireFromString(strike), model.NewDate(2024, time.March, 15))
	if err != nil {
		t.Fatalf("NewOption: %v", err)
	}
	return k
}

func TestFormat(t *testing.T) {
	opt := mustOption(t, "AAPL", "182.5", model.Call)
	if got := Format(opt); got != "AAPL,20240315,182500,C" {
		t.Errorf("Format(option) = %q", got)
	}

	eq, _ := model.NewSecurity("SPY", model.Equity, "usa")
	if got := Format(eq); got != "SPY" {
		t.Errorf("Format(equity) = %q", got)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	c := NewCodec()

	strikes := []string{"0.5", "1", "17.125", "182.5", "4512.999", "99999.001"}
	for _, s := range strikes {
		for _, right := range []model.Right{model.Call, model.Put} {
			k := mustOption(t, "SPXW", s, right)
			ticker := c.Encode(k)

			got, err := c.Decode(ticker)
			if err != nil {
				t.Fatalf("Decode(%q): %v", ticker, err)
			}
			if got != k {
				t.Errorf("round trip %q: got %+v, want %+v", ticker, got, k)
			}
			if !got.Strike().Equal(decimal.RequireFromString(s)) {
				t.Errorf("strike %s lost precision: %s", s, got.Strike())
			}
		}
	}
}

func TestCodec_DecodeUnknown(t *testing.T) {
	c := NewCodec()

	_, err := c.Decode("AAPL,20240315,182500,C")
	if !errors.Is(err, ErrUnknownInstrument) {
		t.Fatalf("expected ErrUnknownInstrument, got %v", err)
	}

	k, err := c.DecodeWith("AAPL,20240315,182500,C", model.Option, "usa")
	if err != nil {
		t.Fatalf("DecodeWith failed: %v", err)
	}
	if k != mustOption(t, "AAPL", "182.5", model.Call) {
		t.Errorf("DecodeWith = %+v", k)
	}

	// Subsequent decodes can rely on the cache.
	again, err := c.Decode("AAPL,20240315,182500,C")
	if err != nil {
		t.Fatalf("Decode after DecodeWith: %v", err)
	}
	if again != k {
		t.Errorf("cached decode = %+v, want %+v", again, k)
	}
	if ticker := c.Encode(k); ticker != "AAPL,20240315,182500,C" {
		t.Errorf("Encode after DecodeWith = %q", ticker)
	}
}

func TestCodec_DecodeWithClassOverride(t *testing.T) {
	c := NewCodec()

	idx, err := c.DecodeWith("SPX", model.Index, "usa")
	if err != nil {
		t.Fatalf("DecodeWith index: %v", err)
	}
	eq, err := c.DecodeWith("SPX", model.Equity, "usa")
	if err != nil {
		t.Fatalf("DecodeWith equity: %v", err)
	}
	if idx == eq {
		t.Error("index and equity keys should differ")
	}
	got, _ := c.Decode("SPX")
	if got.Class != model.Equity {
		t.Errorf("latest context should win, got %s", got.Class)
	}
}

func TestCodec_DecodeWithNonCanonical(t *testing.T) {
	c := NewCodec()

	k, err := c.DecodeWith("aapl,20240315,182500,c", model.Option, "USA")
	if err != nil {
		t.Fatalf("DecodeWith: %v", err)
	}
	want := mustOption(t, "AAPL", "182.5", model.Call)
	if k != want {
		t.Fatalf("DecodeWith = %+v, want %+v", k, want)
	}

	if ticker := c.Encode(k); ticker != "AAPL,20240315,182500,C" {
		t.Errorf("Encode = %q, want canonical ticker", ticker)
	}
	for _, ticker := range []string{"AAPL,20240315,182500,C", "aapl,20240315,182500,c"} {
		got, err := c.Decode(ticker)
		if err != nil {
			t.Errorf("Decode(%q): %v", ticker, err)
			continue
		}
		if got != want {
			t.Errorf("Decode(%q) = %+v, want %+v", ticker, got, want)
		}
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCodec_EncodeCollision(t *testing.T) {
	c := NewCodec()

	idx, _ := model.NewSecurity("SPX", model.Index, "usa")
	eq, _ := model.NewSecurity("SPX", model.Equity, "usa")

	if got := c.Encode(idx); got != "SPX" {
		t.Fatalf("Encode(index) = %q", got)
	}
	if got := c.Encode(eq); got != "SPX" {
		t.Fatalf("Encode(equity) = %q", got)
	}

	got, err := c.Decode("SPX")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != idx {
		t.Errorf("Decode(SPX) = %+v, want first-bound index key", got)
	}
	if c.Collisions() != 1 {
		t.Errorf("Collisions() = %d, want 1", c.Collisions())
	}

	// Re-encoding the bound key is not a collision.
	c.Encode(idx)
	if c.Collisions() != 1 {
		t.Errorf("Collisions() after re-encode = %d, want 1", c.Collisions())
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		ticker string
		class  model.SecurityClass
	}{
		{"too few option fields", "AAPL,20240315,182500", model.Option},
		{"bad expiry", "AAPL,2024-03-15,182500,C", model.Option},
		{"bad strike", "AAPL,20240315,abc,C", model.Option},
		{"bad right", "AAPL,20240315,182500,X", model.Option},
		{"equity with option fields", "AAPL,20240315,182500,C", model.Equity},
		{"empty root", "", model.Equity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.ticker, tt.class, "usa"); err == nil {
				t.Errorf("Parse(%q) expected error", tt.ticker)
			}
		})
	}
}

func TestCodec_Concurrent(t *testing.T) {
	c := NewCodec()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 1; i <= 200; i++ {
				k, _ := model.NewOption("QQQ", model.Option, "usa", model.Call,
					decimal.NewFromInt(int64(i)), model.NewDate(2024, time.June, 21))
				ticker := c.Encode(k)
				if _, err := c.Decode(ticker); err != nil {
					t.Errorf("goroutine %d: %v", g, err)
					return
				}
				c.DecodeWith(fmt.Sprintf("QQQ,20240621,%d,P", i*1000), model.Option, "usa")
			}
		}(g)
	}
	wg.Wait()

	if c.Len() != 400 {
		t.Errorf("Len() = %d, want 400", c.Len())
	}
}
