package plan

import (
	"testing"
	"time"

	"github.com/rickgao/thetafeed/internal/model"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name       string
		permits    []model.Resolution
		denies     []model.Resolution
		earliest   model.Date
		maxStreams int
	}{
		{"free", []model.Resolution{model.Daily}, []model.Resolution{model.Tick, model.Minute, model.Hour}, model.NewDate(2023, time.June, 1), 0},
		{"Value", []model.Resolution{model.Minute, model.Hour, model.Daily}, []model.Resolution{model.Tick, model.Second}, model.NewDate(2020, time.January, 1), 0},
		{"standard", []model.Resolution{model.Tick, model.Second, model.Daily}, nil, model.NewDate(2016, time.January, 1), 10000},
		{" PRO ", []model.Resolution{model.Tick, model.Hour}, nil, model.NewDate(2012, time.June, 1), 15000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Lookup(tt.name)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			for _, r := range tt.permits {
				if !p.Permits(r) {
					t.Errorf("%s should permit %s", p.Name, r)
				}
			}
			for _, r := range tt.denies {
				if p.Permits(r) {
					t.Errorf("%s should not permit %s", p.Name, r)
				}
			}
			if p.EarliestAccess() != tt.earliest {
				t.Errorf("EarliestAccess = %v, want %v", p.EarliestAccess(), tt.earliest)
			}
			if p.MaxStreamedContracts() != tt.maxStreams {
				t.Errorf("MaxStreamedContracts = %d, want %d", p.MaxStreamedContracts(), tt.maxStreams)
			}
		})
	}

	if _, err := Lookup("platinum"); err == nil {
		t.Error("expected error for unknown plan")
	}
}
