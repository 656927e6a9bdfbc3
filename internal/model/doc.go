// Package model defines shared data types used across the feed client.
//
// Conventions:
//   - Strikes: carried on the wire as integer thousandths (strike × 1000, truncated)
//   - Calendar dates: Date values in the vendor's local calendar (America/New_York)
//   - Timestamps: time.Time in the instrument's home time zone once decoded
//   - Tickers: VendorTicker strings produced by the symbol package
package model

// VendorZone is the time zone the vendor uses for dates and ms_of_day.
const VendorZone = "America/New_York"
