package writer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/thetafeed/internal/model"
	"github.com/rickgao/thetafeed/internal/router"
)

var errNoDatabase = errors.New("writer has no database")

// batchWriter drains a queue of updates into batched inserts. R is the row
// type of one table.
type batchWriter[R any] struct {
	name   string
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the stream manager
	input *router.Queue[model.Update]

	// Database
	db BatchSender

	// transform reports false for updates this writer does not store.
	transform func(model.Update) (R, bool)
	// queue adds the insert statement for one row.
	queue func(*pgx.Batch, R)

	// Batching
	batch       []R
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

func newBatchWriter[R any](
	name string,
	cfg WriterConfig,
	input *router.Queue[model.Update],
	db BatchSender,
	logger *slog.Logger,
	transform func(model.Update) (R, bool),
	queue func(*pgx.Batch, R),
) *batchWriter[R] {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &batchWriter[R]{
		name:      name,
		cfg:       cfg,
		input:     input,
		db:        db,
		logger:    logger.With("writer", name),
		transform: transform,
		queue:     queue,
		batch:     make([]R, 0, cfg.BatchSize),
	}
}

// Start begins consuming updates and writing to the database.
func (w *batchWriter[R]) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains the goroutines and flushes what is left using ctx.
func (w *batchWriter[R]) Stop(ctx context.Context) error {
	w.logger.Info("stopping writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("writer stop timed out")
	}

	// Final flush
	w.flush(ctx)

	w.logger.Info("writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *batchWriter[R]) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop drains the input queue and accumulates batches.
func (w *batchWriter[R]) consumeLoop() {
	defer w.wg.Done()

	for {
		updates := w.input.DrainTo(w.cfg.BatchSize)
		if len(updates) == 0 {
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		for _, u := range updates {
			w.handleUpdate(u)
		}

		if w.ctx.Err() != nil {
			return
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *batchWriter[R]) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleUpdate transforms and adds an update to the batch.
func (w *batchWriter[R]) handleUpdate(u model.Update) {
	row, ok := w.transform(u)

	w.batchMu.Lock()
	if !ok {
		w.metrics.Skipped++
		w.batchMu.Unlock()
		return
	}
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// flush writes the current batch to the database.
func (w *batchWriter[R]) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]R, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed rows",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch. Rows rejected by ON CONFLICT
// DO NOTHING are counted as conflicts.
func (w *batchWriter[R]) batchInsert(ctx context.Context, rows []R) (conflicts int, err error) {
	if w.db == nil {
		return 0, errNoDatabase
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		w.queue(batch, r)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
