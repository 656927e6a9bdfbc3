package api

import (
	"fmt"
	"time"

	"github.com/rickgao/thetafeed/internal/model"
)

// Columns maps column names from header.format to row positions.
type Columns map[string]int

// ColumnsOf indexes a page's format header.
func ColumnsOf(h Header) Columns {
	cols := make(Columns, len(h.Format))
	for i, name := range h.Format {
		cols[name] = i
	}
	return cols
}

// Has reports whether every named column is present.
func (c Columns) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := c[n]; !ok {
			return false
		}
	}
	return true
}

// Float returns the named numeric column, or 0 if absent or out of range.
func (c Columns) Float(row []float64, name string) float64 {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return 0
	}
	return row[i]
}

// Int returns the named column truncated to an integer.
func (c Columns) Int(row []float64, name string) int64 {
	return int64(c.Float(row, name))
}

// RowTime combines the "date" (YYYYMMDD) and "ms_of_day" columns into an
// instant in loc. Rows without ms_of_day are placed at midnight.
func (c Columns) RowTime(row []float64, loc *time.Location) (time.Time, error) {
	if !c.Has("date") {
		return time.Time{}, fmt.Errorf("row has no date column")
	}
	d, err := model.DateFromInt(int(c.Int(row, "date")))
	if err != nil {
		return time.Time{}, err
	}
	ms := c.Int(row, "ms_of_day")
	return d.In(loc).Add(time.Duration(ms) * time.Millisecond), nil
}
