// Package idling tracks in-flight background work so external test harnesses
// can wait for the process to settle before asserting on observable state.
package idling

import (
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Counter counts work in flight. It is shared by every aggregation flow in
// the process and is injected rather than kept as package state, so tests can
// reset it between cases.
type Counter struct {
	inFlight int64
	logger   *log.Logger
}

// NewCounter creates a counter. A nil logger falls back to the logrus
// standard logger.
func NewCounter(logger *log.Logger) *Counter {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Counter{logger: logger}
}

// Increment records one unit of work starting.
func (c *Counter) Increment() {
	atomic.AddInt64(&c.inFlight, 1)
}

// Decrement records one unit of work finishing. The count never goes below
// zero; an unpaired decrement is logged and dropped because a counter stuck
// negative would report idle while work is still running.
func (c *Counter) Decrement() {
	for {
		cur := atomic.LoadInt64(&c.inFlight)
		if cur <= 0 {
			c.logger.Warn("idling counter decremented below zero")
			return
		}
		if atomic.CompareAndSwapInt64(&c.inFlight, cur, cur-1) {
			return
		}
	}
}

// IsIdle reports whether no work is in flight.
func (c *Counter) IsIdle() bool {
	return atomic.LoadInt64(&c.inFlight) == 0
}

// InFlight returns the current number of units in flight.
func (c *Counter) InFlight() int64 {
	return atomic.LoadInt64(&c.inFlight)
}

// Reset forces the counter back to idle. Tests use it between cases.
func (c *Counter) Reset() {
	atomic.StoreInt64(&c.inFlight, 0)
}
