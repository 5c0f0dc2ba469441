package stats

import (
	"context"

	"stats-service/domain"
)

// TaskSource provides the task snapshot statistics are computed from. One
// call returns the full snapshot; there is no pagination contract.
type TaskSource interface {
	FetchTasks(ctx context.Context) ([]domain.Task, error)
}

// View receives the outcome of aggregation flows. Every method runs on the
// aggregator's single delivery goroutine; implementations must be cheap and
// must not call back into the Aggregator.
type View interface {
	SetLoading(loading bool)
	ShowStatistics(active, completed int)
	ShowLoadError()
}
