package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"stats-service/domain"
	"stats-service/idling"
	"stats-service/stats"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, busy *idling.Counter, broker *UpdateBroker, logger *log.Logger) {
	e.GET("/api/statistics", getStatistics(store, auth, busy, logger))
	e.GET("/api/statistics/stream", streamStatistics(store, auth, busy, broker, logger))
	e.GET("/healthz", healthz())
	e.GET("/idlez", idlez(busy))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		//TODO: check table storage and redis reachability
		return c.NoContent(http.StatusOK)
	}
}

type idleResponse struct {
	Idle     bool  `json:"idle"`
	InFlight int64 `json:"inFlight"`
}

func idlez(busy BusyState) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, idleResponse{Idle: busy.IsIdle(), InFlight: busy.InFlight()})
	}
}

// userSource narrows Storage to the single user a flow computes for.
type userSource struct {
	store  Storage
	userID string
}

func (s userSource) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	return s.store.FetchTasks(ctx, s.userID)
}

// resultView collects the single outcome of a one-shot statistics flow.
type resultView struct {
	done   chan struct{}
	once   sync.Once
	result domain.Statistics
	failed bool
}

func newResultView() *resultView {
	return &resultView{done: make(chan struct{})}
}

func (v *resultView) SetLoading(bool) {}

func (v *resultView) ShowStatistics(active, completed int) {
	v.result = domain.Statistics{ActiveCount: active, CompletedCount: completed}
	v.once.Do(func() { close(v.done) })
}

func (v *resultView) ShowLoadError() {
	v.failed = true
	v.once.Do(func() { close(v.done) })
}

func (v *resultView) Outcome() (domain.Statistics, bool) {
	return v.result, v.failed
}

func getStatistics(store Storage, auth Authenticator, busy *idling.Counter, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newStatsRequestMetrics(ctx, logger)
		if spanCtx != nil {
			req := c.Request().WithContext(spanCtx)
			c.SetRequest(req)
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		view := newResultView()
		agg := stats.NewAggregator(userSource{store: store, userID: userID}, view, busy, logger)
		defer agg.Close()

		flowStart := time.Now()
		agg.Subscribe()
		select {
		case <-view.done:
		case <-ctx.Done():
			metrics.SetErrorStage("client_gone")
			err = ctx.Err()
			return err
		}
		metrics.ObserveFlow(time.Since(flowStart))

		result, failed := view.Outcome()
		if failed {
			metrics.SetErrorStage("aggregate")
			err = c.String(http.StatusInternalServerError, "failed to load statistics")
			return err
		}
		metrics.SetCounts(result.ActiveCount, result.CompletedCount)

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, result)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}
