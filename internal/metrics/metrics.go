// Package metrics is a minimal facade over a pluggable metrics backend.
//
// Pipeline code calls Count/Observe unconditionally; unless a backend has
// been installed with SetBackend the calls are no-ops. This keeps the core
// packages free of any vendor SDK import.
package metrics

import "sync"

// Labels attach dimensions to a metric point.
type Labels map[string]string

// Backend receives metric points. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

// Count adds n to the named counter.
func Count(name string, n int64) {
	if n == 0 {
		return
	}
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.IncCounter(name, float64(n), nil)
}

// CountWith adds n to the named counter with labels.
func CountWith(name string, n int64, labels Labels) {
	if n == 0 {
		return
	}
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.IncCounter(name, float64(n), labels)
}

// Observe records one sample of the named histogram.
func Observe(name string, value float64, labels Labels) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.ObserveHistogram(name, value, labels)
}

// Flush forwards to the installed backend.
func Flush() error {
	mu.RLock()
	b := backend
	mu.RUnlock()
	return b.Flush()
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }
