package models

import "sync"

// ErrorList accumulates human-readable error descriptions across one
// category walk. It is append-only and safe for concurrent use; the
// orchestrator merges per-category lists with Merge rather than
// sharing one list across walks.
type ErrorList struct {
	mu   sync.Mutex
	errs []string
}

// Append records one error description.
func (l *ErrorList) Append(msg string) {
	l.mu.Lock()
	l.errs = append(l.errs, msg)
	l.mu.Unlock()
}

// Merge appends every entry of other, preserving its order.
func (l *ErrorList) Merge(other *ErrorList) {
	if other == nil || other == l {
		return
	}
	for _, msg := range other.Snapshot() {
		l.Append(msg)
	}
}

// Snapshot returns a copy of the accumulated descriptions.
func (l *ErrorList) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.errs))
	copy(out, l.errs)
	return out
}

// Len returns the number of accumulated descriptions.
func (l *ErrorList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errs)
}
