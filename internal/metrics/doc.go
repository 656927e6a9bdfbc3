// Package metrics exposes component statistics over HTTP, as a JSON
// snapshot and in Prometheus format.
//
// Components register a stats function under a name; the handler calls
// every function on each request so values are always current:
//   - stream manager state and message counts
//   - writer inserts, conflicts and flush errors
//   - queue utilization and drops
//   - chain poller cycles
//
// Exporter publishes the numeric counters for Prometheus scrapes.
package metrics
