package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/thetafeed/internal/api"
	"github.com/rickgao/thetafeed/internal/config"
	"github.com/rickgao/thetafeed/internal/connection"
	"github.com/rickgao/thetafeed/internal/database"
	"github.com/rickgao/thetafeed/internal/logging"
	"github.com/rickgao/thetafeed/internal/metrics"
	"github.com/rickgao/thetafeed/internal/model"
	"github.com/rickgao/thetafeed/internal/plan"
	"github.com/rickgao/thetafeed/internal/poller"
	"github.com/rickgao/thetafeed/internal/router"
	"github.com/rickgao/thetafeed/internal/symbol"
	"github.com/rickgao/thetafeed/internal/version"
	"github.com/rickgao/thetafeed/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/gatherer.local.yaml", "path to config file")
	flag.Parse()

	// Bootstrap logger until the configured one exists
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting gatherer", append(version.Attrs(), "config", *configPath)...)

	tier, err := plan.Lookup(cfg.Plan.Tier)
	if err != nil {
		logger.Error("invalid plan", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.RestURL,
		"ws_url", cfg.Stream.WSURL,
		"plan", tier.Name,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Timescale.Host,
		"port", cfg.Database.Timescale.Port,
		"database", cfg.Database.Timescale.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database.Timescale)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to create schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	apiClient := api.NewClient(
		cfg.API.RestURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryDelay),
		api.WithRateLimiter(api.NewRateLimiter(cfg.API.RateLimit, cfg.API.RateBurst)),
		api.WithNoDataStatus(cfg.API.NoDataStatus),
		api.WithFanOutConcurrency(cfg.API.FanOutConcurrency),
	)

	codec := symbol.NewCodec()
	stats := metrics.NewRegistry()

	// Stream -> queues -> writers
	quotes := router.NewQueue[model.Update](1024, cfg.Stream.QueueSize)
	trades := router.NewQueue[model.Update](1024, cfg.Stream.QueueSize)

	writerCfg := writer.WriterConfig{
		BatchSize:     cfg.Writers.BatchSize,
		FlushInterval: cfg.Writers.FlushInterval,
	}
	quoteWriter := writer.NewQuoteWriter(writerCfg, quotes, pool, logger)
	tradeWriter := writer.NewTradeWriter(writerCfg, trades, pool, logger)
	if err := quoteWriter.Start(ctx); err != nil {
		logger.Error("failed to start quote writer", "error", err)
		os.Exit(1)
	}
	if err := tradeWriter.Start(ctx); err != nil {
		logger.Error("failed to start trade writer", "error", err)
		os.Exit(1)
	}

	managerCfg := connection.DefaultManagerConfig()
	managerCfg.Client.URL = cfg.Stream.WSURL
	managerCfg.Client.HandshakeTimeout = cfg.Stream.HandshakeTimeout
	managerCfg.Client.PingTimeout = cfg.Stream.PingTimeout
	managerCfg.Market = cfg.Market.ID
	managerCfg.MaxContracts = tier.MaxStreamedContracts()
	managerCfg.ReconnectBaseWait = cfg.Stream.ReconnectBaseDelay
	managerCfg.ReconnectMaxWait = cfg.Stream.ReconnectMaxDelay
	managerCfg.MaxReconnectAttempts = cfg.Stream.MaxReconnectAttempts

	sink := connection.SplitSink{Quotes: quotes, Trades: trades}
	manager := connection.NewManager(managerCfg, codec, sink, logger.With("component", "stream"))
	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to start stream manager", "error", err)
		os.Exit(1)
	}

	streaming := tier.MaxStreamedContracts() > 0
	if !streaming {
		logger.Warn("plan does not include streaming, only the chain poller runs", "plan", tier.Name)
	} else if err := subscribeConfigured(ctx, manager, codec, cfg); err != nil {
		logger.Error("failed to subscribe configured contracts", "error", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-manager.Errors():
				// The next poll cycle re-subscribes, which redials.
				logger.Error("stream manager gave up reconnecting", "error", err)
			}
		}
	}()

	// Chain poller feeds the stream manager
	pollerCfg := poller.DefaultConfig()
	pollerCfg.Roots = cfg.Poller.Roots
	pollerCfg.Market = cfg.Market.ID
	pollerCfg.Interval = cfg.Poller.Interval
	pollerCfg.Concurrency = cfg.Poller.Concurrency

	chains := poller.New(pollerCfg, apiClient, codec, chainHandler(manager, streaming, logger), logger.With("component", "poller"))
	if err := chains.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}

	stats.Register("stream", func() any { return manager.Stats() })
	stats.Register("quote_writer", func() any { return quoteWriter.Stats() })
	stats.Register("trade_writer", func() any { return tradeWriter.Stats() })
	stats.Register("quote_queue", func() any { return quotes.Stats() })
	stats.Register("trade_queue", func() any { return trades.Stats() })
	stats.Register("poller", func() any { return chains.Stats() })
	stats.Register("codec", func() any {
		return map[string]int{"instruments": codec.Len(), "collisions": codec.Collisions()}
	})

	exporter := metrics.NewExporter()
	if err := registerPrometheus(exporter, manager, quoteWriter, tradeWriter, quotes, trades, chains); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	mux := createHealthHandler(pool, manager, stats, cfg.Metrics.Path)
	mux.Handle(cfg.Metrics.PrometheusPath, exporter.Handler())

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("gatherer running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	chains.Stop(shutdownCtx)
	manager.Stop(shutdownCtx)
	quotes.Close()
	trades.Close()
	quoteWriter.Stop(shutdownCtx)
	tradeWriter.Stop(shutdownCtx)
	healthServer.Shutdown(shutdownCtx)

	logger.Info("gatherer stopped")
}

// subscribeConfigured streams the contracts listed in stream.contracts.
func subscribeConfigured(ctx context.Context, manager connection.Manager, codec *symbol.Codec, cfg *config.GathererConfig) error {
	if len(cfg.Stream.Contracts) == 0 {
		return nil
	}

	class, err := model.ParseSecurityClass(cfg.Stream.SecurityType)
	if err != nil {
		return err
	}

	keys := make([]model.InstrumentKey, 0, len(cfg.Stream.Contracts))
	for _, ticker := range cfg.Stream.Contracts {
		key, err := codec.DecodeWith(ticker, class, cfg.Market.ID)
		if err != nil {
			return fmt.Errorf("stream.contracts: %w", err)
		}
		keys = append(keys, key)
	}

	err = manager.Subscribe(ctx, keys...)
	if errors.Is(err, connection.ErrSubscriptionLimitExceeded) {
		slog.Warn("configured contracts exceed plan capacity", "error", err)
		return nil
	}
	return err
}

// chainHandler keeps the stream manager subscribed to each refreshed chain,
// dropping contracts that have left it.
func chainHandler(manager connection.Manager, streaming bool, logger *slog.Logger) poller.ChainHandler {
	subs := poller.NewSubscriptions(manager, logger.With("component", "subscriptions"))
	return poller.ChainHandlerFunc(func(ctx context.Context, chain poller.Chain) error {
		if !streaming {
			logger.Debug("chain refreshed", "root", chain.Root, "contracts", len(chain.Contracts))
			return nil
		}

		err := subs.HandleChain(ctx, chain)
		var limitErr *connection.LimitError
		if errors.As(err, &limitErr) {
			logger.Warn("chain exceeds plan capacity",
				"root", chain.Root,
				"inactive", len(limitErr.Keys),
				"limit", limitErr.Limit,
			)
			return nil
		}
		return err
	})
}

// registerPrometheus exports the numeric component counters.
func registerPrometheus(
	e *metrics.Exporter,
	manager connection.Manager,
	quoteWriter *writer.QuoteWriter,
	tradeWriter *writer.TradeWriter,
	quotes, trades *router.Queue[model.Update],
	chains *poller.Poller,
) error {
	counter := func(subsystem, name, help string, fn func() int64) error {
		return e.Counter(subsystem, name, help, func() float64 { return float64(fn()) })
	}
	gauge := func(subsystem, name, help string, fn func() int64) error {
		return e.Gauge(subsystem, name, help, func() float64 { return float64(fn()) })
	}

	errs := []error{
		gauge("stream", "state", "Stream connection state (0 disconnected, 1 connecting, 2 connected, 3 degraded).",
			func() int64 { return int64(manager.State()) }),
		gauge("stream", "active_contracts", "Contracts with an active stream slot.",
			func() int64 { return int64(manager.Stats().Active) }),
		counter("stream", "messages_sent_total", "Subscription requests sent.",
			func() int64 { return manager.Stats().MessagesSent }),
		counter("stream", "messages_received_total", "Stream frames received.",
			func() int64 { return manager.Stats().MessagesReceived }),
		counter("stream", "updates_published_total", "Changed snapshots published.",
			func() int64 { return manager.Stats().UpdatesPublished }),
		counter("stream", "reconnects_total", "Successful reconnects.",
			func() int64 { return manager.Stats().Reconnects }),
		counter("quote_writer", "inserts_total", "Quote rows inserted.",
			func() int64 { return quoteWriter.Stats().Inserts }),
		counter("quote_writer", "errors_total", "Failed quote batches.",
			func() int64 { return quoteWriter.Stats().Errors }),
		counter("trade_writer", "inserts_total", "Trade rows inserted.",
			func() int64 { return tradeWriter.Stats().Inserts }),
		counter("trade_writer", "errors_total", "Failed trade batches.",
			func() int64 { return tradeWriter.Stats().Errors }),
		gauge("quote_queue", "depth", "Quote updates waiting to be written.",
			func() int64 { return int64(quotes.Stats().Count) }),
		counter("quote_queue", "dropped_total", "Quote updates dropped on a full queue.",
			func() int64 { return quotes.Stats().Dropped }),
		gauge("trade_queue", "depth", "Trade updates waiting to be written.",
			func() int64 { return int64(trades.Stats().Count) }),
		counter("trade_queue", "dropped_total", "Trade updates dropped on a full queue.",
			func() int64 { return trades.Stats().Dropped }),
		counter("poller", "cycles_total", "Chain poll cycles.",
			func() int64 { return chains.Stats().Cycles }),
		counter("poller", "errors_total", "Failed chain polls.",
			func() int64 { return chains.Stats().Errors }),
	}
	return errors.Join(errs...)
}

// createHealthHandler creates the HTTP handler for health checks and stats.
func createHealthHandler(pool *pgxpool.Pool, manager connection.Manager, stats *metrics.Registry, statsPath string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		// Check database
		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["timescaledb"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["timescaledb"] = "connected"
		}

		// Check stream
		st := manager.Stats()
		health.Components["stream"] = map[string]any{
			"state":  st.State.String(),
			"active": st.Active,
		}
		if st.State != connection.Connected && health.Status == "healthy" && st.Slots > 0 {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.Handle(statsPath, stats.Handler())

	return mux
}
