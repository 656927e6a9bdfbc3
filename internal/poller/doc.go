// Package poller periodically refreshes option chains for configured roots
// over the vendor's list endpoints, registers every contract with the symbol
// codec and hands the chain to a handler (typically the stream manager).
package poller
