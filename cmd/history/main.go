// history fetches historical records through the REST gateway and prints
// them as JSON lines.
// Usage: go run ./cmd/history --root AAPL --class option --expiry 20240315 \
//
//	--strike 170 --right C --resolution minute --tick quote \
//	--start 20240301 --end 20240308
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/thetafeed/internal/api"
	"github.com/rickgao/thetafeed/internal/calendar"
	"github.com/rickgao/thetafeed/internal/config"
	"github.com/rickgao/thetafeed/internal/history"
	"github.com/rickgao/thetafeed/internal/logging"
	"github.com/rickgao/thetafeed/internal/model"
	"github.com/rickgao/thetafeed/internal/plan"
	"github.com/rickgao/thetafeed/internal/symbol"
)

func main() {
	var f requestFlags
	configPath := flag.String("config", "configs/gatherer.local.yaml", "path to config file")
	planName := flag.String("plan", "", "plan tier (overrides config)")
	flag.StringVar(&f.root, "root", "", "underlying root symbol")
	flag.StringVar(&f.class, "class", "option", "security class: option, stock, index, index_option")
	flag.StringVar(&f.market, "market", "", "market (defaults to config)")
	flag.StringVar(&f.expiry, "expiry", "", "option expiration, YYYYMMDD")
	flag.StringVar(&f.strike, "strike", "", "option strike, e.g. 172.5")
	flag.StringVar(&f.right, "right", "", "option right, C or P")
	flag.StringVar(&f.resolution, "resolution", "minute", "tick, second, minute, hour or daily")
	flag.StringVar(&f.tick, "tick", "trade", "trade, quote or open_interest")
	flag.StringVar(&f.start, "start", "", "start date (YYYYMMDD) or RFC 3339 instant")
	flag.StringVar(&f.end, "end", "", "end date (YYYYMMDD) or RFC 3339 instant")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	// Records go to stdout, logs to stderr
	logger, logCloser, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	tierName := cfg.Plan.Tier
	if *planName != "" {
		tierName = *planName
	}
	tier, err := plan.Lookup(tierName)
	if err != nil {
		logger.Error("invalid plan", "error", err)
		os.Exit(1)
	}

	if f.market == "" {
		f.market = cfg.Market.ID
	}
	req, err := buildRequest(f, calendar.VendorLocation())
	if err != nil {
		logger.Error("invalid request", "error", err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := api.NewClient(
		cfg.API.RestURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryDelay),
		api.WithRateLimiter(api.NewRateLimiter(cfg.API.RateLimit, cfg.API.RateBurst)),
		api.WithNoDataStatus(cfg.API.NoDataStatus),
		api.WithFanOutConcurrency(cfg.API.FanOutConcurrency),
	)

	var hours history.HoursLookup
	if cfg.Market.MIC != "" {
		fixed := calendar.New(cfg.Market.MIC, logger)
		hours = history.HoursFunc(func(model.InstrumentKey) history.MarketHours { return fixed })
	} else {
		reg := calendar.NewRegistry(logger)
		hours = history.HoursFunc(func(k model.InstrumentKey) history.MarketHours { return reg.ForKey(k) })
	}

	orch := history.New(client, symbol.NewCodec(), tier, hours,
		history.WithLogger(logger),
		history.WithVendorLocation(calendar.VendorLocation()),
	)

	records, ok := orch.GetHistory(ctx, req)
	if !ok {
		logger.Warn("nothing to fetch", "ticker", symbol.Format(req.Key))
		return
	}

	enc := json.NewEncoder(os.Stdout)
	count := 0
	for rec, err := range records {
		if err != nil {
			logger.Error("history fetch failed", "error", err, "records", count)
			os.Exit(1)
		}
		line := outputLine{
			Kind:   recordKind(rec),
			Ticker: symbol.Format(rec.Instrument()),
			Time:   rec.Timestamp(),
			Record: rec,
		}
		if err := enc.Encode(line); err != nil {
			logger.Error("write record", "error", err)
			os.Exit(1)
		}
		count++
	}

	logger.Info("history complete", "records", count)
}
