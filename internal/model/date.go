package model

import (
	"fmt"
	"strconv"
	"time"
)

// Date is a calendar day with no time-of-day or zone. It is comparable and
// safe to use as a map key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns a normalized Date (e.g. Feb 30 becomes Mar 1 or 2).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses the vendor's YYYYMMDD representation.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateFromInt converts a YYYYMMDD integer (as sent in JSON payloads).
func DateFromInt(v int) (Date, error) {
	if v <= 0 {
		return Date{}, fmt.Errorf("invalid date %d", v)
	}
	return ParseDate(strconv.Itoa(v))
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return d.Int() < o.Int()
}

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool {
	return d.Int() > o.Int()
}

// DaysUntil returns the number of days from d to o (negative if o is earlier).
func (d Date) DaysUntil(o Date) int {
	return int(o.In(time.UTC).Sub(d.In(time.UTC)).Hours() / 24)
}

// Int returns d as YYYYMMDD.
func (d Date) Int() int {
	return d.Year*10000 + int(d.Month)*100 + d.Day
}

// String returns d in YYYYMMDD form, the vendor's wire format.
func (d Date) String() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}

// DateRange is a closed interval [Start, End] of calendar days.
type DateRange struct {
	Start Date
	End   Date
}

// Days returns the inclusive number of days in the range.
func (r DateRange) Days() int {
	return r.Start.DaysUntil(r.End) + 1
}

func (r DateRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}
