// Package symbol maps InstrumentKeys to and from the vendor's flat ticker
// encoding ("root,expiry,strike,right" for options, bare root otherwise).
//
// A ticker alone does not say whether "SPX" is an index or an equity, or
// which market it trades in, so every key seen in either direction is kept
// in a process-wide bidirectional cache. Entries are never evicted.
//
// The cache always stores the canonical ticker produced by Format, whatever
// spelling a caller decoded. Two keys that encode to the same ticker (an
// equity and an index sharing a root) collide: Encode keeps the first key
// bound to the ticker and counts the collision, while DecodeWith rebinds it
// because the caller named the class explicitly.
package symbol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rickgao/thetafeed/internal/model"
)

// ErrUnknownInstrument is returned by Decode for a ticker that has not been
// seen before and no disambiguating context was supplied.
var ErrUnknownInstrument = errors.New("unknown instrument")

// Codec is safe for concurrent use by the REST and streaming paths.
type Codec struct {
	mu         sync.RWMutex
	byTicker   map[string]model.InstrumentKey
	byKey      map[model.InstrumentKey]string
	collisions int
}

// NewCodec creates an empty codec.
func NewCodec() *Codec {
	return &Codec{
		byTicker: make(map[string]model.InstrumentKey),
		byKey:    make(map[model.InstrumentKey]string),
	}
}

// Encode returns the vendor ticker for key and caches both directions.
func (c *Codec) Encode(key model.InstrumentKey) string {
	c.mu.RLock()
	ticker, ok := c.byKey[key]
	c.mu.RUnlock()
	if ok {
		return ticker
	}

	ticker = Format(key)

	c.mu.Lock()
	c.byKey[key] = ticker
	if bound, ok := c.byTicker[ticker]; ok && bound != key {
		c.collisions++
	} else {
		c.byTicker[ticker] = key
	}
	c.mu.Unlock()

	return ticker
}

// Decode resolves a ticker seen earlier through Encode or DecodeWith.
func (c *Codec) Decode(ticker string) (model.InstrumentKey, error) {
	c.mu.RLock()
	key, ok := c.byTicker[ticker]
	c.mu.RUnlock()
	if !ok {
		return model.InstrumentKey{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, ticker)
	}
	return key, nil
}

// DecodeWith resolves ticker using the cache, or parses it with the given
// security class and market and caches the result under its canonical
// ticker. A non-canonical spelling ("aapl,20240315,182500,c") is also kept
// as an alias for Decode. A cached key with a different class or market is
// replaced.
func (c *Codec) DecodeWith(ticker string, class model.SecurityClass, market string) (model.InstrumentKey, error) {
	c.mu.RLock()
	key, ok := c.byTicker[ticker]
	c.mu.RUnlock()
	if ok && key.Class == class && key.Market == strings.ToLower(market) {
		return key, nil
	}

	key, err := Parse(ticker, class, market)
	if err != nil {
		return model.InstrumentKey{}, err
	}

	canonical := Format(key)

	c.mu.Lock()
	c.byTicker[canonical] = key
	if ticker != canonical {
		c.byTicker[ticker] = key
	}
	c.byKey[key] = canonical
	c.mu.Unlock()

	return key, nil
}

// Len returns the number of cached instruments.
func (c *Codec) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byKey)
}

// Collisions returns how many Encode calls found their ticker already bound
// to a different key.
func (c *Codec) Collisions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collisions
}

// Format encodes key without touching any cache.
func Format(key model.InstrumentKey) string {
	if !key.IsOption() {
		return key.Root
	}
	return key.Root + "," + key.Expiry.String() + "," + strconv.FormatInt(key.StrikeMilli, 10) + "," + string(key.Right)
}

// Parse decodes a ticker given its class and market.
func Parse(ticker string, class model.SecurityClass, market string) (model.InstrumentKey, error) {
	parts := strings.Split(ticker, ",")

	if !class.IsOption() {
		if len(parts) != 1 {
			return model.InstrumentKey{}, fmt.Errorf("parse ticker %q: %s ticker has option fields", ticker, class)
		}
		return model.NewSecurity(parts[0], class, market)
	}

	if len(parts) != 4 {
		return model.InstrumentKey{}, fmt.Errorf("parse ticker %q: want root,expiry,strike,right", ticker)
	}
	expiry, err := model.ParseDate(parts[1])
	if err != nil {
		return model.InstrumentKey{}, fmt.Errorf("parse ticker %q: %w", ticker, err)
	}
	milli, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return model.InstrumentKey{}, fmt.Errorf("parse ticker %q: strike: %w", ticker, err)
	}
	right, err := model.ParseRight(parts[3])
	if err != nil {
		return model.InstrumentKey{}, fmt.Errorf("parse ticker %q: %w", ticker, err)
	}
	return model.NewOption(parts[0], class, market, right, model.StrikeFromWire(milli), expiry)
}
