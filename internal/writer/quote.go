package writer

import (
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/thetafeed/internal/model"
	"github.com/rickgao/thetafeed/internal/router"
)

const insertQuote = `
	INSERT INTO option_quotes (quote_ts, received_at, ticker, root, expiration, strike, "right",
		bid, bid_size, bid_exchange, bid_condition, ask, ask_size, ask_exchange, ask_condition)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (ticker, quote_ts) DO NOTHING
`

// QuoteWriter consumes quote updates and writes to the option_quotes table.
type QuoteWriter struct {
	*batchWriter[quoteRow]
}

// NewQuoteWriter creates a new QuoteWriter. Trade updates on input are
// skipped.
func NewQuoteWriter(
	cfg WriterConfig,
	input *router.Queue[model.Update],
	db BatchSender,
	logger *slog.Logger,
) *QuoteWriter {
	return &QuoteWriter{
		batchWriter: newBatchWriter("quotes", cfg, input, db, logger, transformQuote, queueQuote),
	}
}

// transformQuote converts a quote update to a quoteRow.
func transformQuote(u model.Update) (quoteRow, bool) {
	if u.Quote == nil {
		return quoteRow{}, false
	}
	q := u.Quote
	return quoteRow{
		contractColumns: contractOf(u),
		QuoteTs:         q.Time,
		ReceivedAt:      u.ReceivedAt,
		Bid:             priceToInternal(q.Bid),
		BidSize:         q.BidSize,
		BidExchange:     q.BidExchange,
		BidCondition:    q.BidCondition,
		Ask:             priceToInternal(q.Ask),
		AskSize:         q.AskSize,
		AskExchange:     q.AskExchange,
		AskCondition:    q.AskCondition,
	}, true
}

func queueQuote(b *pgx.Batch, r quoteRow) {
	b.Queue(insertQuote,
		r.QuoteTs, r.ReceivedAt, r.Ticker, r.Root, r.Expiration, r.Strike, r.Right,
		r.Bid, r.BidSize, r.BidExchange, r.BidCondition, r.Ask, r.AskSize, r.AskExchange, r.AskCondition)
}
