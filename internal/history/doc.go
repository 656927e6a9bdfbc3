// Package history turns historical data requests into lazy record
// sequences.
//
// A request names an instrument, a resolution, a tick type and a UTC window.
// The orchestrator validates the combination against a static endpoint
// catalog and the caller's plan, clamps the window to what the plan and the
// clock allow, fetches pages through api.Execute (splitting long spans into
// parallel sub-ranges) and decodes rows into model records stamped in the
// instrument's home time zone.
//
// Invalid requests never fail: they report no data, and unsupported
// combinations log a single warning per process.
package history
