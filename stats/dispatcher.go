package stats

import (
	"sync"
	"time"
)

const (
	defaultDispatchBuffer = 16
	dispatchHandoff       = 15 * time.Millisecond
)

// dispatcher runs queued callbacks on a single goroutine, in queue order. It
// stands in for the UI thread: every view mutation goes through it.
type dispatcher struct {
	jobs chan func()
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newDispatcher(buf int) *dispatcher {
	if buf <= 0 {
		buf = defaultDispatchBuffer
	}
	d := &dispatcher{
		jobs: make(chan func(), buf),
		done: make(chan struct{}),
	}
	go d.deliver()
	return d
}

func (d *dispatcher) deliver() {
	defer close(d.done)
	for job := range d.jobs {
		job()
	}
}

// Do queues fn for the delivery goroutine. It reports false when the
// dispatcher is closed or stays saturated past the handoff window; callers
// own cleanup for jobs that never ran.
func (d *dispatcher) Do(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	select {
	case d.jobs <- fn:
		return true
	default:
	}
	timer := time.NewTimer(dispatchHandoff)
	defer timer.Stop()
	select {
	case d.jobs <- fn:
		return true
	case <-timer.C:
		return false
	}
}

// Close stops accepting jobs, drains the ones already queued and waits for
// the delivery goroutine to exit.
func (d *dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	<-d.done
}
