package history

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/thetafeed/internal/model"
)

// rowKind selects how response rows become records.
type rowKind int

const (
	tradeTickRows rowKind = iota
	quoteTickRows
	ohlcRows
	quoteBarRows
	eodTradeRows
	eodQuoteRows
	openInterestRows
	indexPriceRows
)

func (k rowKind) daily() bool {
	return k == eodTradeRows || k == eodQuoteRows || k == openInterestRows
}

// route is one catalog entry.
type route struct {
	endpoint string
	kind     rowKind
	// interval sends ivl (milliseconds) with the request.
	interval bool
}

type routeKey struct {
	class string
	tick  model.TickType
	res   model.Resolution
}

var catalog = buildCatalog()

func buildCatalog() map[routeKey]route {
	m := make(map[routeKey]route)
	intraday := []model.Resolution{model.Second, model.Minute, model.Hour}

	for _, class := range []string{"option", "stock"} {
		base := "/hist/" + class
		m[routeKey{class, model.TradeData, model.Tick}] = route{base + "/trade", tradeTickRows, false}
		m[routeKey{class, model.QuoteData, model.Tick}] = route{base + "/quote", quoteTickRows, true}
		for _, res := range intraday {
			m[routeKey{class, model.TradeData, res}] = route{base + "/ohlc", ohlcRows, true}
			m[routeKey{class, model.QuoteData, res}] = route{base + "/quote", quoteBarRows, true}
		}
		m[routeKey{class, model.TradeData, model.Daily}] = route{base + "/eod", eodTradeRows, false}
		m[routeKey{class, model.QuoteData, model.Daily}] = route{base + "/eod", eodQuoteRows, false}
	}
	m[routeKey{"option", model.OpenInterestData, model.Daily}] = route{"/hist/option/open_interest", openInterestRows, false}

	m[routeKey{"index", model.TradeData, model.Tick}] = route{"/hist/index/price", indexPriceRows, true}
	for _, res := range intraday {
		m[routeKey{"index", model.TradeData, res}] = route{"/hist/index/price", indexPriceRows, true}
	}
	m[routeKey{"index", model.TradeData, model.Daily}] = route{"/hist/index/eod", eodTradeRows, false}

	return m
}

func endpointClass(class model.SecurityClass) string {
	switch class {
	case model.Option, model.IndexOption:
		return "option"
	case model.Equity:
		return "stock"
	case model.Index:
		return "index"
	}
	return ""
}

func lookupRoute(class model.SecurityClass, tick model.TickType, res model.Resolution) (route, bool) {
	r, ok := catalog[routeKey{endpointClass(class), tick, res}]
	return r, ok
}

// params builds the contract and interval query parameters for key.
func params(key model.InstrumentKey, rt route, res model.Resolution) url.Values {
	q := url.Values{"root": {key.Root}}
	if key.IsOption() {
		q.Set("exp", strconv.Itoa(key.Expiry.Int()))
		q.Set("strike", strconv.FormatInt(key.StrikeMilli, 10))
		q.Set("right", string(key.Right))
	}
	if rt.interval {
		q.Set("ivl", strconv.FormatInt(res.Period().Milliseconds(), 10))
	}
	return q
}

func comboKey(class model.SecurityClass, tick model.TickType, res model.Resolution) string {
	return fmt.Sprintf("unsupported/%s/%s/%s", class, tick, res)
}
