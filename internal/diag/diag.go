// Package diag emits diagnostics at most once per key.
package diag

import (
	"log/slog"
	"sync"
)

// Once remembers which diagnostic keys have already fired.
type Once struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates an empty set.
func New() *Once {
	return &Once{seen: make(map[string]struct{})}
}

// Warn logs msg at warn level the first time key is seen and reports whether
// it did.
func (o *Once) Warn(logger *slog.Logger, key, msg string, args ...any) bool {
	o.mu.Lock()
	_, dup := o.seen[key]
	if !dup {
		o.seen[key] = struct{}{}
	}
	o.mu.Unlock()

	if dup {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn(msg, append(args, "diag_key", key)...)
	return true
}

// Seen reports whether key has fired.
func (o *Once) Seen(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.seen[key]
	return ok
}

var process = New()

// Process returns the process-wide set.
func Process() *Once { return process }

// Warn fires key on the process-wide set.
func Warn(logger *slog.Logger, key, msg string, args ...any) bool {
	return process.Warn(logger, key, msg, args...)
}
