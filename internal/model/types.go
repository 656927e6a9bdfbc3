package model

import (
	"strings"
	"time"
)

// Resolution is the sampling granularity of a historical request.
type Resolution int

const (
	Tick Resolution = iota
	Second
	Minute
	Hour
	Daily
)

var resolutionNames = [...]string{"tick", "second", "minute", "hour", "daily"}

func (r Resolution) String() string {
	if r < 0 || int(r) >= len(resolutionNames) {
		return "unknown"
	}
	return resolutionNames[r]
}

// ParseResolution parses the lower-case names used in config and flags.
func ParseResolution(s string) (Resolution, bool) {
	for i, name := range resolutionNames {
		if name == s {
			return Resolution(i), true
		}
	}
	return 0, false
}

// Period returns the bar length. Tick returns zero.
func (r Resolution) Period() time.Duration {
	switch r {
	case Second:
		return time.Second
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Daily:
		return 24 * time.Hour
	}
	return 0
}

// TickType selects trade, quote or open-interest data.
type TickType string

const (
	TradeData        TickType = "TRADE"
	QuoteData        TickType = "QUOTE"
	OpenInterestData TickType = "OPEN_INTEREST"
)

// ParseTickType accepts "trade", "quote" and "open_interest" in any case.
func ParseTickType(s string) (TickType, bool) {
	t := TickType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TradeData, QuoteData, OpenInterestData:
		return t, true
	}
	return "", false
}

// Record is one decoded historical data point.
type Record interface {
	Instrument() InstrumentKey
	Timestamp() time.Time
}

// TradeBar is an OHLCV bar.
type TradeBar struct {
	Key    InstrumentKey
	Time   time.Time
	Period time.Duration
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Count  int64
}

func (b TradeBar) Instrument() InstrumentKey { return b.Key }
func (b TradeBar) Timestamp() time.Time      { return b.Time }

// QuoteBar is a top-of-book sample taken at the end of each interval.
type QuoteBar struct {
	Key     InstrumentKey
	Time    time.Time
	Period  time.Duration
	Bid     float64
	BidSize float64
	Ask     float64
	AskSize float64
}

func (b QuoteBar) Instrument() InstrumentKey { return b.Key }
func (b QuoteBar) Timestamp() time.Time      { return b.Time }

// TickRecord is a single trade or quote print.
type TickRecord struct {
	Key       InstrumentKey
	Time      time.Time
	Type      TickType
	Price     float64
	Size      float64
	Bid       float64
	BidSize   float64
	Ask       float64
	AskSize   float64
	Exchange  int
	Condition int
}

func (t TickRecord) Instrument() InstrumentKey { return t.Key }
func (t TickRecord) Timestamp() time.Time      { return t.Time }

// OpenInterest is a daily open-interest observation.
type OpenInterest struct {
	Key   InstrumentKey
	Time  time.Time
	Value float64
}

func (o OpenInterest) Instrument() InstrumentKey { return o.Key }
func (o OpenInterest) Timestamp() time.Time      { return o.Time }

// QuoteSnapshot is the last known best bid/offer of a streamed contract.
type QuoteSnapshot struct {
	Bid          float64
	BidSize      int64
	BidExchange  int
	BidCondition int
	Ask          float64
	AskSize      int64
	AskExchange  int
	AskCondition int
	Time         time.Time
}

// TradeSnapshot is the last known trade of a streamed contract.
type TradeSnapshot struct {
	Price     float64
	Size      int64
	Exchange  int
	Condition int
	Sequence  int64
	Time      time.Time
}

// Update is pushed downstream whenever a streamed contract's snapshot changes.
// Exactly one of Quote or Trade is set.
type Update struct {
	Key        InstrumentKey
	Ticker     string
	Quote      *QuoteSnapshot
	Trade      *TradeSnapshot
	ReceivedAt time.Time
}

// Equal reports whether two quote snapshots carry the same values.
func (q QuoteSnapshot) Equal(o QuoteSnapshot) bool {
	return q.Bid == o.Bid && q.BidSize == o.BidSize &&
		q.BidExchange == o.BidExchange && q.BidCondition == o.BidCondition &&
		q.Ask == o.Ask && q.AskSize == o.AskSize &&
		q.AskExchange == o.AskExchange && q.AskCondition == o.AskCondition &&
		q.Time.Equal(o.Time)
}

// Equal reports whether two trade snapshots carry the same values.
func (t TradeSnapshot) Equal(o TradeSnapshot) bool {
	return t.Price == o.Price && t.Size == o.Size &&
		t.Exchange == o.Exchange && t.Condition == o.Condition &&
		t.Sequence == o.Sequence && t.Time.Equal(o.Time)
}
