package api

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"stats-service/domain"
	"stats-service/idling"
	"stats-service/internal/consts"
	"stats-service/stats"
)

// UpdateBroker fans task-change notifications out to streaming connections.
type UpdateBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewUpdateBroker() *UpdateBroker {
	return &UpdateBroker{subs: make(map[string]map[chan struct{}]struct{})}
}

func (b *UpdateBroker) subscribe(userID string) chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	set, ok := b.subs[userID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		b.subs[userID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *UpdateBroker) unsubscribe(userID string, ch chan struct{}) {
	b.mu.Lock()
	if set, ok := b.subs[userID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(b.subs, userID)
		}
	}
	b.mu.Unlock()
}

// Notify wakes every stream attached to the user. A stream that has not
// drained its previous wakeup keeps a single pending one.
func (b *UpdateBroker) Notify(userID string) {
	b.mu.Lock()
	for ch := range b.subs[userID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}

type streamEvent struct {
	name string
	data []byte
}

// sseView translates view callbacks into SSE frames. Frames are handed to
// the connection goroutine through a channel; done unblocks a pending
// hand-off once the connection goes away.
type sseView struct {
	events chan streamEvent
	done   chan struct{}
}

func newSSEView() *sseView {
	return &sseView{
		events: make(chan streamEvent, 8),
		done:   make(chan struct{}),
	}
}

func (v *sseView) send(ev streamEvent) {
	select {
	case v.events <- ev:
	case <-v.done:
	}
}

func (v *sseView) SetLoading(loading bool) {
	v.send(streamEvent{name: "loading", data: strconv.AppendBool(nil, loading)})
}

func (v *sseView) ShowStatistics(active, completed int) {
	data, err := sonic.ConfigStd.Marshal(domain.Statistics{ActiveCount: active, CompletedCount: completed})
	if err != nil {
		return
	}
	v.send(streamEvent{data: data})
}

func (v *sseView) ShowLoadError() {
	v.send(streamEvent{name: "error", data: []byte(`{"error":"failed to load statistics"}`)})
}

func writeEvent(w *echo.Response, ev streamEvent) error {
	if ev.name != "" {
		if _, err := w.Write([]byte("event: " + ev.name + "\n")); err != nil {
			return err
		}
	}
	if _, err := w.Write([]byte(consts.SSEDataPrefix)); err != nil {
		return err
	}
	if _, err := w.Write(ev.data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n\n"))
	return err
}

func streamStatistics(store Storage, auth Authenticator, busy *idling.Counter, broker *UpdateBroker, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.QueryParam("token")
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" && token != "" {
			authHeader = "Bearer " + token
		}
		userID, err := auth.UserIDFromAuthHeader(authHeader)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		ctx := c.Request().Context()
		updates := broker.subscribe(userID)
		defer broker.unsubscribe(userID, updates)

		view := newSSEView()
		agg := stats.NewAggregator(userSource{store: store, userID: userID}, view, busy, logger)
		defer func() {
			close(view.done)
			agg.Close()
		}()

		agg.Subscribe()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-updates:
				agg.Subscribe()
			case ev := <-view.events:
				if err := writeEvent(c.Response(), ev); err != nil {
					c.Logger().Error(err)
					return err
				}
				flusher.Flush()
			}
		}
	}
}
