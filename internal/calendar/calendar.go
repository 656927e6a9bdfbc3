// Package calendar answers exchange-hours questions using scmhub/calendar.
package calendar

import (
	"log/slog"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	exchcal "github.com/scmhub/calendar"

	"github.com/rickgao/thetafeed/internal/model"
)

// DefaultMIC is the exchange used when a market has no mapping.
const DefaultMIC = "xnys"

// FirstYear is the earliest year any subscription plan can request.
const FirstYear = 2010

// yearsAhead bounds the calendar span past the current year.
const yearsAhead = 5

var marketMICs = map[string]string{
	"usa":    "xnys",
	"cboe":   "xcbo",
	"nyse":   "xnys",
	"nasdaq": "xnas",
}

// MICFor maps a market identifier to an exchange MIC.
func MICFor(market string) string {
	if mic, ok := marketMICs[strings.ToLower(market)]; ok {
		return mic
	}
	return DefaultMIC
}

// Hours reports trading sessions for one exchange.
type Hours struct {
	mic      string
	cal      *exchcal.Calendar
	loc      *time.Location
	fallback bool

	// Instants outside [startYear, endYear] use the weekday session.
	startYear int
	endYear   int
}

// New loads the calendar for mic. Unknown MICs fall back to NYSE, and if no
// calendar loads at all a Mon-Fri 09:30-16:00 New York session is assumed.
func New(mic string, logger *slog.Logger) *Hours {
	if logger == nil {
		logger = slog.Default()
	}
	mic = strings.ToLower(mic)

	start, end := FirstYear, time.Now().Year()+yearsAhead
	cal := exchcal.GetCalendar(mic, start, end)
	if cal == nil && mic != DefaultMIC {
		logger.Warn("unknown exchange calendar, using default", "mic", mic, "default", DefaultMIC)
		cal = exchcal.GetCalendar(DefaultMIC, start, end)
	}
	if cal == nil {
		logger.Warn("no exchange calendar available, using weekday session", "mic", mic)
		return &Hours{mic: mic, loc: VendorLocation(), fallback: true}
	}

	loc := cal.Loc
	if loc == nil {
		loc = VendorLocation()
	}
	start, end = cal.Years()
	return &Hours{mic: mic, cal: cal, loc: loc, startYear: start, endYear: end}
}

// ForMarket is New(MICFor(market)).
func ForMarket(market string, logger *slog.Logger) *Hours {
	return New(MICFor(market), logger)
}

// MIC returns the exchange code.
func (h *Hours) MIC() string { return h.mic }

// Location returns the exchange's home time zone.
func (h *Hours) Location() *time.Location { return h.loc }

// IsTradingDay reports whether the exchange has a session on d.
func (h *Hours) IsTradingDay(d model.Date) bool {
	t := d.In(h.loc).Add(12 * time.Hour)
	if !h.covers(t) {
		return isWeekday(t)
	}
	return h.cal.IsBusinessDay(t)
}

// IsOpen reports whether the regular session is open at t.
func (h *Hours) IsOpen(t time.Time) bool {
	t = t.In(h.loc)
	if !h.covers(t) {
		return isWeekday(t) && inRegularSession(t)
	}
	return h.cal.IsOpen(t)
}

// covers reports whether the exchange calendar can answer for t.
func (h *Hours) covers(t time.Time) bool {
	if h.fallback || h.cal == nil {
		return false
	}
	y := t.Year()
	return y >= h.startYear && y <= h.endYear
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func inRegularSession(t time.Time) bool {
	mins := t.Hour()*60 + t.Minute()
	return mins >= 9*60+30 && mins < 16*60
}

// Registry caches Hours per market.
type Registry struct {
	mu     sync.Mutex
	hours  map[string]*Hours
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{hours: make(map[string]*Hours), logger: logger}
}

// ForMarket returns the cached Hours for market, loading it on first use.
func (r *Registry) ForMarket(market string) *Hours {
	mic := MICFor(market)

	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hours[mic]
	if !ok {
		h = New(mic, r.logger)
		r.hours[mic] = h
	}
	return h
}

// ForKey returns the Hours of the instrument's market.
func (r *Registry) ForKey(key model.InstrumentKey) *Hours {
	return r.ForMarket(key.Market)
}

var vendorLoc = func() *time.Location {
	loc, err := time.LoadLocation(model.VendorZone)
	if err != nil {
		slog.Warn("vendor time zone unavailable, using UTC", "zone", model.VendorZone, "error", err)
		return time.UTC
	}
	return loc
}()

// VendorLocation returns the vendor's zone, America/New_York.
func VendorLocation() *time.Location { return vendorLoc }
