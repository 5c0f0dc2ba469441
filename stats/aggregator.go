package stats

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"stats-service/domain"
	"stats-service/idling"
)

// Aggregator runs fetch-and-compute flows against a TaskSource and pushes
// the outcome to a View. One Aggregator serves one view; the idling counter
// is shared across the process.
type Aggregator struct {
	source TaskSource
	view   View
	busy   *idling.Counter
	logger *log.Logger
	exec   *dispatcher

	mu       sync.Mutex
	cancel   context.CancelFunc
	lastFlow uint64
	active   uint64
	closed   bool
}

// NewAggregator wires an Aggregator. Source, view and busy are required; a
// nil logger falls back to the logrus standard logger.
func NewAggregator(source TaskSource, view View, busy *idling.Counter, logger *log.Logger) *Aggregator {
	if source == nil {
		panic("stats.NewAggregator: source is nil")
	}
	if view == nil {
		panic("stats.NewAggregator: view is nil")
	}
	if busy == nil {
		panic("stats.NewAggregator: busy counter is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Aggregator{
		source: source,
		view:   view,
		busy:   busy,
		logger: logger,
		exec:   newDispatcher(0),
	}
}

// Subscribe starts a new flow: mark the view loading, fetch the snapshot,
// deliver either the computed statistics or a load error. A flow already in
// flight is cancelled first so only the newest subscription reaches the view.
func (a *Aggregator) Subscribe() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if a.cancel != nil {
		a.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.lastFlow++
	flow := a.lastFlow
	a.active = flow
	a.mu.Unlock()

	a.busy.Increment()
	queued := a.exec.Do(func() {
		a.mu.Lock()
		if a.active != flow {
			a.mu.Unlock()
			a.settle()
			return
		}
		a.view.SetLoading(true)
		a.mu.Unlock()
		go a.run(ctx, flow)
	})
	if !queued {
		a.settle()
	}
}

// Unsubscribe cancels the flow in flight, if any. It is idempotent, safe
// without a prior Subscribe, and once it returns no callback from the
// cancelled flow will run.
func (a *Aggregator) Unsubscribe() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.active = 0
}

// Close unsubscribes and stops the delivery goroutine. The Aggregator must
// not be used afterwards.
func (a *Aggregator) Close() {
	a.Unsubscribe()
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.exec.Close()
}

func (a *Aggregator) run(ctx context.Context, flow uint64) {
	tasks, err := a.source.FetchTasks(ctx)
	if ctx.Err() != nil {
		a.settle()
		return
	}
	var result domain.Statistics
	if err != nil {
		a.logger.WithError(err).WithField("flow", flow).Error("statistics fetch failed")
	} else {
		result = domain.Compute(tasks)
	}
	queued := a.exec.Do(func() {
		a.finish(flow, result, err != nil)
	})
	if !queued {
		a.settle()
	}
}

func (a *Aggregator) finish(flow uint64, result domain.Statistics, failed bool) {
	defer a.settle()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != flow {
		return
	}
	if failed {
		a.view.ShowLoadError()
	} else {
		a.view.ShowStatistics(result.ActiveCount, result.CompletedCount)
	}
	a.view.SetLoading(false)
	a.active = 0
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

// settle releases the idling counter for one flow unless something else
// already drove it to idle.
func (a *Aggregator) settle() {
	if !a.busy.IsIdle() {
		a.busy.Decrement()
	}
}
