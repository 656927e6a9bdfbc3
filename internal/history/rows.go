package history

import (
	"fmt"
	"time"

	"github.com/rickgao/thetafeed/internal/api"
	"github.com/rickgao/thetafeed/internal/model"
)

// decoder turns response rows into records for one request.
type decoder struct {
	kind   rowKind
	key    model.InstrumentKey
	period time.Duration
	vendor *time.Location
	home   *time.Location
}

// decode returns the record for row, or nil when the row carries no
// activity (all-zero prices).
func (d *decoder) decode(cols api.Columns, row []float64) (model.Record, error) {
	t, err := d.rowTime(cols, row)
	if err != nil {
		return nil, err
	}

	switch d.kind {
	case tradeTickRows:
		price := cols.Float(row, "price")
		if price == 0 {
			return nil, nil
		}
		return model.TickRecord{
			Key:       d.key,
			Time:      t,
			Type:      model.TradeData,
			Price:     price,
			Size:      cols.Float(row, "size"),
			Exchange:  int(cols.Int(row, "exchange")),
			Condition: int(cols.Int(row, "condition")),
		}, nil

	case quoteTickRows:
		bid, ask := cols.Float(row, "bid"), cols.Float(row, "ask")
		if bid == 0 && ask == 0 {
			return nil, nil
		}
		return model.TickRecord{
			Key:       d.key,
			Time:      t,
			Type:      model.QuoteData,
			Bid:       bid,
			BidSize:   cols.Float(row, "bid_size"),
			Ask:       ask,
			AskSize:   cols.Float(row, "ask_size"),
			Exchange:  int(cols.Int(row, "bid_exchange")),
			Condition: int(cols.Int(row, "bid_condition")),
		}, nil

	case ohlcRows, eodTradeRows:
		bar := model.TradeBar{
			Key:    d.key,
			Time:   t,
			Period: d.period,
			Open:   cols.Float(row, "open"),
			High:   cols.Float(row, "high"),
			Low:    cols.Float(row, "low"),
			Close:  cols.Float(row, "close"),
			Volume: cols.Float(row, "volume"),
			Count:  cols.Int(row, "count"),
		}
		if bar.Open == 0 && bar.High == 0 && bar.Low == 0 && bar.Close == 0 {
			return nil, nil
		}
		return bar, nil

	case quoteBarRows, eodQuoteRows:
		bar := model.QuoteBar{
			Key:     d.key,
			Time:    t,
			Period:  d.period,
			Bid:     cols.Float(row, "bid"),
			BidSize: cols.Float(row, "bid_size"),
			Ask:     cols.Float(row, "ask"),
			AskSize: cols.Float(row, "ask_size"),
		}
		if bar.Bid == 0 && bar.Ask == 0 {
			return nil, nil
		}
		return bar, nil

	case indexPriceRows:
		price := cols.Float(row, "price")
		if price == 0 {
			return nil, nil
		}
		if d.period == 0 {
			return model.TickRecord{Key: d.key, Time: t, Type: model.TradeData, Price: price}, nil
		}
		return model.TradeBar{
			Key: d.key, Time: t, Period: d.period,
			Open: price, High: price, Low: price, Close: price,
		}, nil

	case openInterestRows:
		return model.OpenInterest{
			Key:   d.key,
			Time:  t,
			Value: cols.Float(row, "open_interest"),
		}, nil
	}

	return nil, fmt.Errorf("unknown row kind %d", d.kind)
}

// rowTime places a row in the instrument's home zone. Daily rows are stamped
// at midnight of their date; intraday rows add ms_of_day.
func (d *decoder) rowTime(cols api.Columns, row []float64) (time.Time, error) {
	if d.kind.daily() {
		date, err := model.DateFromInt(int(cols.Int(row, "date")))
		if err != nil {
			return time.Time{}, fmt.Errorf("decode row: %w", err)
		}
		return date.In(d.vendor).In(d.home), nil
	}
	t, err := cols.RowTime(row, d.vendor)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode row: %w", err)
	}
	return t.In(d.home), nil
}
