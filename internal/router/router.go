// Package router decodes inbound stream messages and carries decoded
// updates to writers through bounded queues.
package router

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rickgao/thetafeed/internal/calendar"
	"github.com/rickgao/thetafeed/internal/model"
)

// Decoder parses stream messages and counts what it saw.
type Decoder struct {
	loc *time.Location

	decoded     atomic.Int64
	parseErrors atomic.Int64
	unknown     atomic.Int64
}

// DecoderStats contains decoder counters.
type DecoderStats struct {
	Decoded     int64
	ParseErrors int64
	Unknown     int64
}

// NewDecoder creates a decoder interpreting dates and ms_of_day in loc
// (nil means the vendor's zone).
func NewDecoder(loc *time.Location) *Decoder {
	if loc == nil {
		loc = calendar.VendorLocation()
	}
	return &Decoder{loc: loc}
}

// Decode parses one message. Unknown kinds decode without error and are
// counted; the caller decides whether to log them.
func (d *Decoder) Decode(data []byte, receivedAt time.Time) (Message, error) {
	var wire envelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		d.parseErrors.Add(1)
		return Message{}, fmt.Errorf("decode stream message: %w", err)
	}

	msg := Message{
		Kind:       Kind(wire.Header.Type),
		Status:     wire.Header.Status,
		ReceivedAt: receivedAt,
	}
	if wire.Contract != nil {
		msg.Contract = &Contract{
			SecurityType: wire.Contract.SecurityType,
			Root:         wire.Contract.Root,
			Expiration:   wire.Contract.Expiration,
			StrikeMilli:  wire.Contract.Strike,
			Right:        wire.Contract.Right,
		}
	}

	switch msg.Kind {
	case KindQuote:
		if wire.Quote == nil || msg.Contract == nil {
			d.parseErrors.Add(1)
			return Message{}, fmt.Errorf("decode stream message: quote without payload or contract")
		}
		q := wire.Quote
		msg.Quote = &model.QuoteSnapshot{
			Bid:          q.Bid,
			BidSize:      q.BidSize,
			BidExchange:  q.BidExchange,
			BidCondition: q.BidCondition,
			Ask:          q.Ask,
			AskSize:      q.AskSize,
			AskExchange:  q.AskExchange,
			AskCondition: q.AskCondition,
			Time:         d.stamp(q.Date, q.MsOfDay, receivedAt),
		}

	case KindTrade:
		if wire.Trade == nil || msg.Contract == nil {
			d.parseErrors.Add(1)
			return Message{}, fmt.Errorf("decode stream message: trade without payload or contract")
		}
		tr := wire.Trade
		msg.Trade = &model.TradeSnapshot{
			Price:     tr.Price,
			Size:      tr.Size,
			Exchange:  tr.Exchange,
			Condition: tr.Condition,
			Sequence:  tr.Sequence,
			Time:      d.stamp(tr.Date, tr.MsOfDay, receivedAt),
		}

	case KindStatus:
	default:
		d.unknown.Add(1)
		return msg, nil
	}

	d.decoded.Add(1)
	return msg, nil
}

// Stats returns decoder counters.
func (d *Decoder) Stats() DecoderStats {
	return DecoderStats{
		Decoded:     d.decoded.Load(),
		ParseErrors: d.parseErrors.Load(),
		Unknown:     d.unknown.Load(),
	}
}

// stamp builds the event time, falling back to the receive time when the
// payload has no date.
func (d *Decoder) stamp(date int, msOfDay int64, receivedAt time.Time) time.Time {
	day, err := model.DateFromInt(date)
	if err != nil {
		return receivedAt
	}
	return day.In(d.loc).Add(time.Duration(msOfDay) * time.Millisecond)
}

// IsOption reports whether the contract carries expiry, strike and right.
func (c *Contract) IsOption() bool {
	return c.SecurityType == "OPTION"
}

// Ticker returns the vendor ticker of the contract in the same encoding the
// symbol codec uses.
func (c *Contract) Ticker() string {
	if !c.IsOption() {
		return c.Root
	}
	return c.Root + "," + strconv.Itoa(c.Expiration) + "," + strconv.FormatInt(c.StrikeMilli, 10) + "," + c.Right
}

// Class maps the wire security type to a security class. Index options are
// reported as OPTION on the wire and resolve through the codec cache.
func (c *Contract) Class() model.SecurityClass {
	switch c.SecurityType {
	case "OPTION":
		return model.Option
	case "INDEX":
		return model.Index
	default:
		return model.Equity
	}
}
