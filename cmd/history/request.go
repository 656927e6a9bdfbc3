package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/thetafeed/internal/history"
	"github.com/rickgao/thetafeed/internal/model"
)

// requestFlags holds the raw command-line query.
type requestFlags struct {
	root       string
	class      string
	market     string
	expiry     string
	strike     string
	right      string
	resolution string
	tick       string
	start      string
	end        string
}

// buildRequest turns flags into a history request. Dates are YYYYMMDD in loc
// and cover the whole end day; RFC 3339 instants are used as given.
func buildRequest(f requestFlags, loc *time.Location) (history.Request, error) {
	if f.root == "" {
		return history.Request{}, errors.New("-root is required")
	}

	class, err := model.ParseSecurityClass(f.class)
	if err != nil {
		return history.Request{}, err
	}

	var key model.InstrumentKey
	if class.IsOption() {
		expiry, err := model.ParseDate(f.expiry)
		if err != nil {
			return history.Request{}, fmt.Errorf("-expiry: %w", err)
		}
		strike, err := decimal.NewFromString(f.strike)
		if err != nil {
			return history.Request{}, fmt.Errorf("-strike: %w", err)
		}
		right, err := model.ParseRight(f.right)
		if err != nil {
			return history.Request{}, fmt.Errorf("-right: %w", err)
		}
		key, err = model.NewOption(f.root, class, f.market, right, strike, expiry)
		if err != nil {
			return history.Request{}, err
		}
	} else {
		key, err = model.NewSecurity(f.root, class, f.market)
		if err != nil {
			return history.Request{}, err
		}
	}

	res, ok := model.ParseResolution(strings.ToLower(f.resolution))
	if !ok {
		return history.Request{}, fmt.Errorf("-resolution: unknown resolution %q", f.resolution)
	}
	tick, ok := model.ParseTickType(f.tick)
	if !ok {
		return history.Request{}, fmt.Errorf("-tick: unknown tick type %q", f.tick)
	}

	start, err := parseInstant(f.start, loc, false)
	if err != nil {
		return history.Request{}, fmt.Errorf("-start: %w", err)
	}
	end, err := parseInstant(f.end, loc, true)
	if err != nil {
		return history.Request{}, fmt.Errorf("-end: %w", err)
	}

	return history.Request{
		Key:        key,
		Resolution: res,
		TickType:   tick,
		Start:      start,
		End:        end,
	}, nil
}

func parseInstant(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return d.AddDays(1).In(loc).Add(-time.Nanosecond), nil
	}
	return d.In(loc), nil
}

// outputLine is one JSON line written per record.
type outputLine struct {
	Kind   string       `json:"kind"`
	Ticker string       `json:"ticker"`
	Time   time.Time    `json:"time"`
	Record model.Record `json:"record"`
}

func recordKind(r model.Record) string {
	switch r.(type) {
	case model.TradeBar:
		return "trade_bar"
	case model.QuoteBar:
		return "quote_bar"
	case model.TickRecord:
		return "tick"
	case model.OpenInterest:
		return "open_interest"
	}
	return "unknown"
}
