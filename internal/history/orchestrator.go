package history

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/rickgao/thetafeed/internal/api"
	"github.com/rickgao/thetafeed/internal/diag"
	"github.com/rickgao/thetafeed/internal/model"
	"github.com/rickgao/thetafeed/internal/symbol"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// MarketHours describes one instrument's exchange.
type MarketHours interface {
	Location() *time.Location
	IsOpen(t time.Time) bool
}

// HoursLookup resolves the market hours of an instrument.
type HoursLookup interface {
	HoursFor(key model.InstrumentKey) MarketHours
}

// HoursFunc adapts a function to HoursLookup.
type HoursFunc func(key model.InstrumentKey) MarketHours

func (f HoursFunc) HoursFor(key model.InstrumentKey) MarketHours { return f(key) }

// Plan is the caller's entitlement.
type Plan interface {
	EarliestAccess() model.Date
	Permits(res model.Resolution) bool
}

// Request is a normalized history query. Start and End are instants; the
// window is inclusive at both ends.
type Request struct {
	Key        model.InstrumentKey
	Resolution model.Resolution
	TickType   model.TickType
	Start      time.Time
	End        time.Time
}

// Records is a lazy sequence of decoded records. A non-nil error ends it.
type Records = iter.Seq2[model.Record, error]

// Orchestrator serves history requests against one REST client.
type Orchestrator struct {
	client *api.Client
	codec  *symbol.Codec
	plan   Plan
	hours  HoursLookup
	clock  Clock
	diag   *diag.Once
	vendor *time.Location
	logger *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDiagnostics replaces the process-wide warn-once set.
func WithDiagnostics(d *diag.Once) Option {
	return func(o *Orchestrator) { o.diag = d }
}

// WithVendorLocation sets the zone of the vendor's dates and ms_of_day.
func WithVendorLocation(loc *time.Location) Option {
	return func(o *Orchestrator) {
		if loc != nil {
			o.vendor = loc
		}
	}
}

// New creates an orchestrator.
func New(client *api.Client, codec *symbol.Codec, plan Plan, hours HoursLookup, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client: client,
		codec:  codec,
		plan:   plan,
		hours:  hours,
		clock:  SystemClock{},
		diag:   diag.Process(),
		vendor: time.UTC,
		logger: slog.Default(),
	}
	if loc, err := time.LoadLocation(model.VendorZone); err == nil {
		o.vendor = loc
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GetHistory returns the records for req, or false when there is nothing to
// fetch: the combination is unsupported, the plan excludes it, or the window
// is empty after clamping. Fetch failures surface as the sequence's error.
func (o *Orchestrator) GetHistory(ctx context.Context, req Request) (Records, bool) {
	key := req.Key
	logger := o.logger.With("ticker", o.codec.Encode(key), "resolution", req.Resolution.String(), "tick_type", string(req.TickType))

	rt, ok := lookupRoute(key.Class, req.TickType, req.Resolution)
	if !ok {
		o.diag.Warn(logger, comboKey(key.Class, req.TickType, req.Resolution),
			"unsupported history request", "class", string(key.Class))
		return nil, false
	}
	if !o.plan.Permits(req.Resolution) {
		o.diag.Warn(logger, "plan/"+req.Resolution.String(),
			"resolution not included in plan")
		return nil, false
	}

	if !req.Start.Before(req.End) {
		logger.Debug("empty history window", "start", req.Start, "end", req.End)
		return nil, false
	}

	start, end := req.Start, req.End
	if earliest := o.plan.EarliestAccess().In(o.vendor); start.Before(earliest) {
		start = earliest
	}
	if now := o.clock.Now(); end.After(now) {
		end = now
	}
	if !start.Before(end) {
		logger.Debug("window outside plan access", "start", start, "end", end)
		return nil, false
	}

	fetch := api.FetchRequest{
		Endpoint: rt.endpoint,
		Params:   params(key, rt, req.Resolution),
		Range: model.DateRange{
			Start: model.DateOf(start.In(o.vendor)),
			End:   model.DateOf(end.In(o.vendor)),
		},
		Interval: req.Resolution.Period(),
	}

	hours := o.hours.HoursFor(key)
	dec := &decoder{
		kind:   rt.kind,
		key:    key,
		period: req.Resolution.Period(),
		vendor: o.vendor,
		home:   hours.Location(),
	}
	intraday := req.Resolution != model.Daily

	logger.Debug("history request",
		"endpoint", fetch.Endpoint,
		"range", fetch.Range.String(),
	)

	return func(yield func(model.Record, error) bool) {
		for page, err := range api.Execute[[]float64](ctx, o.client, fetch) {
			if err != nil {
				yield(nil, err)
				return
			}
			cols := api.ColumnsOf(page.Header)
			for _, row := range page.Response {
				rec, err := dec.decode(cols, row)
				if err != nil {
					yield(nil, err)
					return
				}
				if rec == nil {
					continue
				}
				t := rec.Timestamp()
				if t.Before(req.Start) || t.After(req.End) {
					continue
				}
				if intraday && !hours.IsOpen(t) {
					continue
				}
				if !yield(rec, nil) {
					return
				}
			}
		}
	}, true
}

// Collect drains records into a slice.
func Collect(records Records) ([]model.Record, error) {
	var out []model.Record
	for rec, err := range records {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}
