// Package connection implements the streaming side of the feed.
//
// The Manager:
//   - Owns one WebSocket connection to the terminal's stream endpoint
//   - Turns Subscribe/Unsubscribe calls into STREAM messages (TRADE and QUOTE per contract)
//   - Enforces the plan's maximum streamed contracts
//   - Tracks a snapshot per contract and publishes only changed updates
//   - Resubscribes everything after a DISCONNECTED status or a socket reconnect
package connection
