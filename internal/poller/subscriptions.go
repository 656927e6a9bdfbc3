package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/thetafeed/internal/model"
	"github.com/rickgao/thetafeed/internal/symbol"
)

// Subscriber is the part of the stream manager a chain drives.
type Subscriber interface {
	Subscribe(ctx context.Context, keys ...model.InstrumentKey) error
	Unsubscribe(ctx context.Context, keys ...model.InstrumentKey) error
}

// Subscriptions keeps a subscriber in step with each root's latest chain.
// Contracts that drop out of a chain, such as an expiry rolling off, are
// unsubscribed before the refreshed chain is subscribed.
type Subscriptions struct {
	sub    Subscriber
	logger *slog.Logger

	mu   sync.Mutex
	last map[string]map[string]model.InstrumentKey // root -> ticker -> key
}

var _ ChainHandler = (*Subscriptions)(nil)

// NewSubscriptions creates a handler driving sub.
func NewSubscriptions(sub Subscriber, logger *slog.Logger) *Subscriptions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriptions{
		sub:    sub,
		logger: logger,
		last:   make(map[string]map[string]model.InstrumentKey),
	}
}

// HandleChain unsubscribes contracts missing from chain, then subscribes
// chain. The error of Subscribe is returned unchanged so callers can inspect
// capacity errors.
func (s *Subscriptions) HandleChain(ctx context.Context, chain Chain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[string]model.InstrumentKey, len(chain.Contracts))
	for _, key := range chain.Contracts {
		current[symbol.Format(key)] = key
	}

	var removed []model.InstrumentKey
	for ticker, key := range s.last[chain.Root] {
		if _, ok := current[ticker]; !ok {
			removed = append(removed, key)
		}
	}

	if len(removed) > 0 {
		if err := s.sub.Unsubscribe(ctx, removed...); err != nil {
			return fmt.Errorf("unsubscribe %d contracts of %s: %w", len(removed), chain.Root, err)
		}
		s.logger.Info("contracts left chain",
			"root", chain.Root,
			"removed", len(removed),
		)
	}

	s.last[chain.Root] = current
	return s.sub.Subscribe(ctx, chain.Contracts...)
}

// Tracked returns the number of contracts held across all roots.
func (s *Subscriptions) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, keys := range s.last {
		n += len(keys)
	}
	return n
}
