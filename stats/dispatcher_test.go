package stats

import (
	"sync"
	"testing"
	"time"
)

func TestDispatcherRunsJobsInOrder(t *testing.T) {
	d := newDispatcher(4)
	defer d.Close()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 8; i++ {
		i := i
		if !d.Do(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}) {
			t.Fatalf("job %d rejected", i)
		}
	}

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 8
	})

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("jobs ran out of order: %v", got)
		}
	}
}

func TestDispatcherCloseDrainsQueuedJobs(t *testing.T) {
	d := newDispatcher(8)

	var (
		mu  sync.Mutex
		ran int
	)
	for i := 0; i < 5; i++ {
		if !d.Do(func() {
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			ran++
			mu.Unlock()
		}) {
			t.Fatal("job rejected before close")
		}
	}
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	if ran != 5 {
		t.Fatalf("ran = %d, want 5", ran)
	}
}

func TestDispatcherDoAfterClose(t *testing.T) {
	d := newDispatcher(1)
	d.Close()
	d.Close()

	if d.Do(func() {}) {
		t.Fatal("Do accepted a job after Close")
	}
}
