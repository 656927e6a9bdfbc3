package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rickgao/thetafeed/internal/model"
)

// Contract is one row of the option contract listing.
type Contract struct {
	Root        string
	Expiry      model.Date
	StrikeMilli int64
	Right       model.Right
}

// ListRoots returns every root symbol of the given class.
func (c *Client) ListRoots(ctx context.Context, class model.SecurityClass) ([]string, error) {
	var kind string
	switch class {
	case model.Option, model.IndexOption:
		kind = "option"
	case model.Equity:
		kind = "stock"
	case model.Index:
		kind = "index"
	default:
		return nil, fmt.Errorf("list roots: unsupported class %q", class)
	}

	roots, err := Collect(Fetch[string](ctx, c, FetchRequest{Endpoint: "/list/roots/" + kind}))
	if err != nil {
		return nil, fmt.Errorf("list roots %s: %w", kind, err)
	}
	return roots, nil
}

// ListExpirations returns every listed expiration of an option root.
func (c *Client) ListExpirations(ctx context.Context, root string) ([]model.Date, error) {
	req := FetchRequest{
		Endpoint: "/list/expirations",
		Params:   url.Values{"root": {strings.ToUpper(root)}},
	}
	raw, err := Collect(Fetch[int](ctx, c, req))
	if err != nil {
		return nil, fmt.Errorf("list expirations %s: %w", root, err)
	}

	dates := make([]model.Date, 0, len(raw))
	for _, v := range raw {
		d, err := model.DateFromInt(v)
		if err != nil {
			return nil, fmt.Errorf("list expirations %s: %w", root, err)
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// ListStrikes returns wire-scale strikes for one expiration.
func (c *Client) ListStrikes(ctx context.Context, root string, expiry model.Date) ([]int64, error) {
	req := FetchRequest{
		Endpoint: "/list/strikes",
		Params: url.Values{
			"root": {strings.ToUpper(root)},
			"exp":  {strconv.Itoa(expiry.Int())},
		},
	}
	strikes, err := Collect(Fetch[int64](ctx, c, req))
	if err != nil {
		return nil, fmt.Errorf("list strikes %s %s: %w", root, expiry, err)
	}
	return strikes, nil
}

// ListContracts returns option contracts that had trade or quote activity on
// date. An empty root lists every root.
func (c *Client) ListContracts(ctx context.Context, tick model.TickType, date model.Date, root string) ([]Contract, error) {
	var kind string
	switch tick {
	case model.TradeData:
		kind = "trade"
	case model.QuoteData:
		kind = "quote"
	default:
		return nil, fmt.Errorf("list contracts: unsupported tick type %q", tick)
	}

	params := url.Values{"start_date": {strconv.Itoa(date.Int())}}
	if root != "" {
		params.Set("root", strings.ToUpper(root))
	}
	req := FetchRequest{Endpoint: "/list/contracts/option/" + kind, Params: params}

	var contracts []Contract
	for page, err := range Fetch[[]any](ctx, c, req) {
		if err != nil {
			return nil, fmt.Errorf("list contracts %s: %w", kind, err)
		}
		cols := contractColumns(page.Header)
		for _, row := range page.Response {
			ct, err := parseContract(cols, row)
			if err != nil {
				return nil, fmt.Errorf("list contracts %s: %w", kind, err)
			}
			contracts = append(contracts, ct)
		}
	}
	return contracts, nil
}

func contractColumns(h Header) Columns {
	if len(h.Format) == 0 {
		return Columns{"root": 0, "expiration": 1, "strike": 2, "right": 3}
	}
	return ColumnsOf(h)
}

func parseContract(cols Columns, row []any) (Contract, error) {
	if !cols.Has("root", "expiration", "strike", "right") {
		return Contract{}, fmt.Errorf("contract row missing columns")
	}
	field := func(name string) any {
		if i := cols[name]; i < len(row) {
			return row[i]
		}
		return nil
	}

	root, ok := field("root").(string)
	if !ok || root == "" {
		return Contract{}, fmt.Errorf("contract row: bad root %v", field("root"))
	}
	exp, ok := field("expiration").(float64)
	if !ok {
		return Contract{}, fmt.Errorf("contract row %s: bad expiration %v", root, field("expiration"))
	}
	expiry, err := model.DateFromInt(int(exp))
	if err != nil {
		return Contract{}, fmt.Errorf("contract row %s: %w", root, err)
	}
	strike, ok := field("strike").(float64)
	if !ok {
		return Contract{}, fmt.Errorf("contract row %s: bad strike %v", root, field("strike"))
	}
	rs, _ := field("right").(string)
	right, err := model.ParseRight(rs)
	if err != nil {
		return Contract{}, fmt.Errorf("contract row %s: %w", root, err)
	}

	return Contract{
		Root:        root,
		Expiry:      expiry,
		StrikeMilli: int64(strike),
		Right:       right,
	}, nil
}
