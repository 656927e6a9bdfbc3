// Package plan describes the vendor subscription tiers and what each one
// entitles: resolutions, history depth and streamed contracts.
package plan

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rickgao/thetafeed/internal/model"
)

// Plan is one subscription tier.
type Plan struct {
	Name        string
	Resolutions []model.Resolution
	Earliest    model.Date
	MaxStreams  int
}

var allResolutions = []model.Resolution{model.Tick, model.Second, model.Minute, model.Hour, model.Daily}

var tiers = map[string]Plan{
	"free": {
		Name:        "free",
		Resolutions: []model.Resolution{model.Daily},
		Earliest:    model.NewDate(2023, time.June, 1),
	},
	"value": {
		Name:        "value",
		Resolutions: []model.Resolution{model.Minute, model.Hour, model.Daily},
		Earliest:    model.NewDate(2020, time.January, 1),
	},
	"standard": {
		Name:        "standard",
		Resolutions: allResolutions,
		Earliest:    model.NewDate(2016, time.January, 1),
		MaxStreams:  10000,
	},
	"pro": {
		Name:        "pro",
		Resolutions: allResolutions,
		Earliest:    model.NewDate(2012, time.June, 1),
		MaxStreams:  15000,
	},
}

// Names lists the known tiers.
func Names() []string {
	names := make([]string, 0, len(tiers))
	for n := range tiers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the tier by case-insensitive name.
func Lookup(name string) (Plan, error) {
	p, ok := tiers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Plan{}, fmt.Errorf("unknown plan %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// EarliestAccess is the first vendor-local date the tier may query.
func (p Plan) EarliestAccess() model.Date { return p.Earliest }

// Permits reports whether historical data at res is included.
func (p Plan) Permits(res model.Resolution) bool {
	return slices.Contains(p.Resolutions, res)
}

// MaxStreamedContracts is the number of concurrent stream slots. Zero means
// streaming is not included.
func (p Plan) MaxStreamedContracts() int { return p.MaxStreams }
