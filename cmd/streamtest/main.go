// streamtest connects to the stream gateway and prints snapshot updates to
// the console.
// Usage: go run ./cmd/streamtest --config configs/gatherer.local.yaml \
//
//	--contracts AAPL,20240315,170000,C --class option
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/thetafeed/internal/config"
	"github.com/rickgao/thetafeed/internal/connection"
	"github.com/rickgao/thetafeed/internal/model"
	"github.com/rickgao/thetafeed/internal/router"
	"github.com/rickgao/thetafeed/internal/symbol"
)

func main() {
	configPath := flag.String("config", "configs/gatherer.example.yaml", "path to config file")
	contracts := flag.String("contracts", "", "semicolon-separated tickers (defaults to stream.contracts)")
	class := flag.String("class", "", "security class of the tickers (defaults to stream.security_type)")
	verbose := flag.Bool("verbose", false, "print full update JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load config
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	tickers := cfg.Stream.Contracts
	if *contracts != "" {
		tickers = strings.Split(*contracts, ";")
	}
	if len(tickers) == 0 {
		logger.Error("no contracts to stream, set --contracts or stream.contracts")
		os.Exit(1)
	}

	secType := cfg.Stream.SecurityType
	if *class != "" {
		secType = *class
	}
	secClass, err := model.ParseSecurityClass(secType)
	if err != nil {
		logger.Error("invalid security class", "error", err)
		os.Exit(1)
	}

	codec := symbol.NewCodec()
	keys := make([]model.InstrumentKey, 0, len(tickers))
	for _, t := range tickers {
		key, err := codec.DecodeWith(strings.TrimSpace(t), secClass, cfg.Market.ID)
		if err != nil {
			logger.Error("invalid ticker", "ticker", t, "error", err)
			os.Exit(1)
		}
		keys = append(keys, key)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	updates := router.NewQueue[model.Update](1000, 100000)

	connCfg := connection.DefaultManagerConfig()
	connCfg.Client.URL = cfg.Stream.WSURL
	connCfg.Market = cfg.Market.ID
	connCfg.MaxContracts = len(keys)

	connMgr := connection.NewManager(connCfg, codec, connection.QueueSink{Queue: updates}, logger)

	logger.Info("starting connection manager", "url", connCfg.Client.URL)
	if err := connMgr.Start(ctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		os.Exit(1)
	}
	if err := connMgr.Subscribe(ctx, keys...); err != nil {
		logger.Error("failed to subscribe", "error", err)
		os.Exit(1)
	}

	go printUpdates(ctx, updates, *verbose)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-connMgr.Errors():
				logger.Error("stream failed", "error", err)
			case <-ticker.C:
				st := connMgr.Stats()
				qs := updates.Stats()
				logger.Info("stats",
					"state", st.State.String(),
					"session_id", st.Session,
					"active", st.Active,
					"received", st.MessagesReceived,
					"published", st.UpdatesPublished,
					"parse_errors", st.Decoder.ParseErrors,
					"queue_len", qs.Count,
					"queue_dropped", qs.Dropped,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop", "contracts", len(keys))

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	connMgr.Stop(shutdownCtx)
	updates.Close()

	logger.Info("shutdown complete")
}

func printUpdates(ctx context.Context, q *router.Queue[model.Update], verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			u, ok := q.TryReceive()
			if !ok {
				time.Sleep(10 * time.Millisecond)
				continue
			}

			if verbose {
				data, _ := json.MarshalIndent(u, "", "  ")
				fmt.Printf("[UPDATE] %s\n", data)
				continue
			}

			switch {
			case u.Quote != nil:
				fmt.Printf("[QUOTE] ticker=%s bid=%.4f x %d ask=%.4f x %d time=%s\n",
					u.Ticker, u.Quote.Bid, u.Quote.BidSize, u.Quote.Ask, u.Quote.AskSize,
					u.Quote.Time.Format(time.RFC3339Nano))
			case u.Trade != nil:
				fmt.Printf("[TRADE] ticker=%s price=%.4f size=%d seq=%d time=%s\n",
					u.Ticker, u.Trade.Price, u.Trade.Size, u.Trade.Sequence,
					u.Trade.Time.Format(time.RFC3339Nano))
			}
		}
	}
}
