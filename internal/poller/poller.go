package poller

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/thetafeed/internal/api"
	"github.com/rickgao/thetafeed/internal/calendar"
	"github.com/rickgao/thetafeed/internal/model"
	"github.com/rickgao/thetafeed/internal/symbol"
)

// Lister is the subset of the REST client the poller needs.
type Lister interface {
	ListExpirations(ctx context.Context, root string) ([]model.Date, error)
	ListStrikes(ctx context.Context, root string, expiry model.Date) ([]int64, error)
}

var _ Lister = (*api.Client)(nil)

// Chain is the listed contracts of one root.
type Chain struct {
	Root      string
	AsOf      time.Time
	Contracts []model.InstrumentKey
}

// ChainHandler receives refreshed chains.
type ChainHandler interface {
	HandleChain(ctx context.Context, chain Chain) error
}

// ChainHandlerFunc is a function adapter for ChainHandler.
type ChainHandlerFunc func(context.Context, Chain) error

func (f ChainHandlerFunc) HandleChain(ctx context.Context, c Chain) error {
	return f(ctx, c)
}

// Config holds poller configuration.
type Config struct {
	Roots          []string            // Option roots to refresh
	Class          model.SecurityClass // Option or IndexOption (default: Option)
	Market         string              // Market of generated keys (default: usa)
	Interval       time.Duration       // Poll interval (default: 15m)
	Concurrency    int                 // Max roots refreshed at once (default: 4)
	Timeout        time.Duration       // Per-root timeout (default: 2m)
	MaxExpirations int                 // Nearest expirations kept per root, 0 = all
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Class:       model.Option,
		Market:      "usa",
		Interval:    15 * time.Minute,
		Concurrency: 4,
		Timeout:     2 * time.Minute,
	}
}

// Stats summarizes poll activity.
type Stats struct {
	Cycles    int64
	Chains    int64
	Contracts int64
	Errors    int64
}

// Poller periodically refreshes option chains via the REST API.
type Poller struct {
	cfg     Config
	client  Lister
	codec   *symbol.Codec
	handler ChainHandler
	logger  *slog.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycles, chains, contracts, errors atomic.Int64
}

// New creates a new Poller.
func New(cfg Config, client Lister, codec *symbol.Codec, handler ChainHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Class == "" {
		cfg.Class = def.Class
	}
	if cfg.Market == "" {
		cfg.Market = def.Market
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if codec == nil {
		codec = symbol.NewCodec()
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		codec:   codec,
		handler: handler,
		logger:  logger,
		now:     time.Now,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("chain poller started",
		"roots", len(p.cfg.Roots),
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("chain poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns poll counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Cycles:    p.cycles.Load(),
		Chains:    p.chains.Load(),
		Contracts: p.contracts.Load(),
		Errors:    p.errors.Load(),
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll refreshes every root concurrently.
func (p *Poller) pollAll() {
	start := time.Now()

	if len(p.cfg.Roots) == 0 {
		p.logger.Debug("no roots to poll")
		return
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, failed atomic.Int64

	for _, root := range p.cfg.Roots {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			if err := p.pollRoot(root); err != nil {
				p.logger.Warn("failed to refresh chain",
					"root", root,
					"error", err,
				)
				failed.Add(1)
				return
			}
			fetched.Add(1)
		}()
	}

	wg.Wait()

	p.cycles.Add(1)
	p.errors.Add(failed.Load())

	p.logger.Info("poll cycle complete",
		"roots", len(p.cfg.Roots),
		"fetched", fetched.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
}

// pollRoot lists unexpired expirations and their strikes for one root.
func (p *Poller) pollRoot(root string) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	root = strings.ToUpper(strings.TrimSpace(root))
	now := p.now()
	today := model.DateOf(now.In(calendar.VendorLocation()))

	exps, err := p.client.ListExpirations(ctx, root)
	if err != nil {
		return err
	}

	slices.SortFunc(exps, func(a, b model.Date) int { return a.Int() - b.Int() })

	var keep []model.Date
	for _, exp := range exps {
		if exp.Before(today) {
			continue
		}
		keep = append(keep, exp)
		if p.cfg.MaxExpirations > 0 && len(keep) == p.cfg.MaxExpirations {
			break
		}
	}

	chain := Chain{Root: root, AsOf: now}
	for _, exp := range keep {
		strikes, err := p.client.ListStrikes(ctx, root, exp)
		if err != nil {
			return err
		}
		for _, milli := range strikes {
			for _, right := range []model.Right{model.Call, model.Put} {
				key, err := model.NewOption(root, p.cfg.Class, p.cfg.Market, right, model.StrikeFromWire(milli), exp)
				if err != nil {
					return fmt.Errorf("build contract %s %s %d: %w", root, exp, milli, err)
				}
				p.codec.Encode(key)
				chain.Contracts = append(chain.Contracts, key)
			}
		}
	}

	p.chains.Add(1)
	p.contracts.Add(int64(len(chain.Contracts)))

	if p.handler != nil {
		if err := p.handler.HandleChain(ctx, chain); err != nil {
			return err
		}
	}
	return nil
}
