// Copyright 2025 Certen Protocol

package observer

import (
	"sync"
	"time"
)

// RateManager records a heartbeat per event type on each successful sync
// tick. A heartbeat older than the configured timeout fails the health
// check, per spec.md §4.2's liveness contract.
type RateManager struct {
	mu      sync.RWMutex
	timeout time.Duration
	last    map[EventType]time.Time
}

// NewRateManager creates a RateManager tracking the given event types. All
// types start with no heartbeat recorded, so Healthy reports unhealthy until
// the first successful tick.
func NewRateManager(types []EventType, timeout time.Duration) *RateManager {
	last := make(map[EventType]time.Time, len(types))
	for _, t := range types {
		last[t] = time.Time{} // zero value; treated as infinitely stale until Beat
	}
	return &RateManager{
		timeout: timeout,
		last:    last,
	}
}

// Beat records a successful sync for eventType at the current time.
func (r *RateManager) Beat(eventType EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[eventType] = timeNow()
}

// Healthy reports whether every tracked event type has a heartbeat younger
// than the configured timeout, along with each type's current age.
func (r *RateManager) Healthy() (bool, map[EventType]time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ages := make(map[EventType]time.Duration, len(r.last))
	now := timeNow()
	healthy := true
	for t, last := range r.last {
		age := now.Sub(last)
		ages[t] = age
		if age > r.timeout {
			healthy = false
		}
	}
	return healthy, ages
}

// timeNow is indirected so tests can stand up deterministic RateManager
// behavior if needed; production always uses the wall clock.
var timeNow = time.Now
