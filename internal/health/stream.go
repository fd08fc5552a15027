package health

import (
	"fmt"
	"sync"

	"github.com/breeze-rmm/cablerouter/internal/audio"
)

// DegradedAfter is the number of consecutive failed drain passes after
// which the stream is reported Degraded.
const DegradedAfter = 3

// StreamTracker turns per-pass routing outcomes into health updates. The
// monitor is only written when the reported status changes.
type StreamTracker struct {
	m    *Monitor
	name string

	mu       sync.Mutex
	failures int
	status   Status
}

// Stream returns a tracker reporting under name.
func (m *Monitor) Stream(name string) *StreamTracker {
	return &StreamTracker{m: m, name: name, status: Unknown}
}

// Success records a drain pass that moved audio.
func (t *StreamTracker) Success() {
	t.mu.Lock()
	t.failures = 0
	changed := t.status != Healthy
	t.status = Healthy
	t.mu.Unlock()

	if changed {
		t.m.Update(t.name, Healthy, "routing")
	}
}

// Failure records a drain pass abandoned at op. A vanished endpoint is
// Unhealthy straight away; other errors degrade after DegradedAfter passes
// in a row.
func (t *StreamTracker) Failure(op string, err error) {
	t.mu.Lock()
	t.failures++
	next := t.status
	switch {
	case audio.IsDeviceInvalidated(err):
		next = Unhealthy
	case t.failures >= DegradedAfter && next != Unhealthy:
		next = Degraded
	}
	changed := next != t.status
	t.status = next
	failures := t.failures
	t.mu.Unlock()

	if changed {
		t.m.Update(t.name, next, fmt.Sprintf("%s failed %d time(s) in a row: %v", op, failures, err))
	}
}

// ConsecutiveFailures returns the current failure streak.
func (t *StreamTracker) ConsecutiveFailures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}
