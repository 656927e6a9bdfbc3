package writer

import (
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/thetafeed/internal/model"
	"github.com/rickgao/thetafeed/internal/router"
)

const insertTrade = `
	INSERT INTO option_trades (trade_ts, received_at, ticker, root, expiration, strike, "right",
		sequence, price, size, exchange, condition)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (ticker, trade_ts, sequence) DO NOTHING
`

// TradeWriter consumes trade updates and writes to the option_trades table.
type TradeWriter struct {
	*batchWriter[tradeRow]
}

// NewTradeWriter creates a new TradeWriter. Quote updates on input are
// skipped.
func NewTradeWriter(
	cfg WriterConfig,
	input *router.Queue[model.Update],
	db BatchSender,
	logger *slog.Logger,
) *TradeWriter {
	return &TradeWriter{
		batchWriter: newBatchWriter("trades", cfg, input, db, logger, transformTrade, queueTrade),
	}
}

// transformTrade converts a trade update to a tradeRow.
func transformTrade(u model.Update) (tradeRow, bool) {
	if u.Trade == nil {
		return tradeRow{}, false
	}
	t := u.Trade
	return tradeRow{
		contractColumns: contractOf(u),
		TradeTs:         t.Time,
		ReceivedAt:      u.ReceivedAt,
		Sequence:        t.Sequence,
		Price:           priceToInternal(t.Price),
		Size:            t.Size,
		Exchange:        t.Exchange,
		Condition:       t.Condition,
	}, true
}

func queueTrade(b *pgx.Batch, r tradeRow) {
	b.Queue(insertTrade,
		r.TradeTs, r.ReceivedAt, r.Ticker, r.Root, r.Expiration, r.Strike, r.Right,
		r.Sequence, r.Price, r.Size, r.Exchange, r.Condition)
}
