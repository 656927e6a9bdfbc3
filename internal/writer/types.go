package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     1000,
		FlushInterval: 5 * time.Second,
	}
}

// BatchSender sends a pgx batch. *pgxpool.Pool satisfies it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// contractColumns are shared by quote and trade rows. Expiration is NULL
// and Strike/Right are zero for non-option contracts.
type contractColumns struct {
	Ticker     string
	Root       string
	Expiration pgtype.Date
	Strike     int64 // Thousandths of a dollar
	Right      string
}

// quoteRow represents a row for the option_quotes table.
type quoteRow struct {
	contractColumns
	QuoteTs      time.Time
	ReceivedAt   time.Time
	Bid          int64 // Ten-thousandths
	BidSize      int64
	BidExchange  int
	BidCondition int
	Ask          int64
	AskSize      int64
	AskExchange  int
	AskCondition int
}

// tradeRow represents a row for the option_trades table.
type tradeRow struct {
	contractColumns
	TradeTs    time.Time
	ReceivedAt time.Time
	Sequence   int64
	Price      int64 // Ten-thousandths
	Size       int64
	Exchange   int
	Condition  int
}

// WriterMetrics holds metrics for a writer.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Skipped   int64 // Updates of the other kind
}
