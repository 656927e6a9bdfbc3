// Package writer persists streamed snapshots to TimescaleDB.
//
// Writers:
//   - Quote writer (option_quotes)
//   - Trade writer (option_trades)
//
// Both consume a router.Queue of model.Update, batch rows and flush on size
// or interval with INSERT ... ON CONFLICT DO NOTHING. Prices are stored as
// integer ten-thousandths of a dollar.
package writer
