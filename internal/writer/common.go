package writer

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/rickgao/thetafeed/internal/model"
)

// priceToInternal converts a dollar price (e.g., 1.2525) to integer
// ten-thousandths (12525).
func priceToInternal(price float64) int64 {
	return decimal.NewFromFloat(price).Shift(4).Round(0).IntPart()
}

// contractOf builds the contract columns of an update.
func contractOf(u model.Update) contractColumns {
	cols := contractColumns{
		Ticker: u.Ticker,
		Root:   u.Key.Root,
	}
	if !u.Key.IsOption() {
		return cols
	}
	cols.Expiration = pgtype.Date{Time: u.Key.Expiry.In(time.UTC), Valid: true}
	cols.Strike = u.Key.StrikeMilli
	cols.Right = string(u.Key.Right)
	return cols
}
