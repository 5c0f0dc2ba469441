package subscription

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Store refreshes a user's cached task snapshot from the backing storage.
type Store interface {
	RefreshTasks(ctx context.Context, userID string) error
}

// Deduper filters update events that were already processed.
type Deduper interface {
	Seen(ctx context.Context, userID, eventID string) (bool, error)
	Forget(ctx context.Context, userID, eventID string) error
}

// SubscribeUpdates listens for task change events, refreshes the cached
// snapshot and wakes streams attached to the affected user. It blocks until
// ctx is cancelled and reconnects when the pubsub channel drops.
func SubscribeUpdates(
	ctx context.Context,
	logger *log.Logger,
	rc *redis.Client,
	store Store,
	deduper Deduper,
	updatesChannel string,
	notify func(userID string),
) {
	for {
		sub := rc.Subscribe(ctx, updatesChannel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				handleUpdate(ctx, logger, store, deduper, notify, msg.Payload)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}

func handleUpdate(ctx context.Context, logger *log.Logger, store Store, deduper Deduper, notify func(string), payload string) {
	var ev struct {
		ID     string `json:"Id"`
		UserID string `json:"UserId"`
	}
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		logger.WithError(err).Error("unable to parse update")
		return
	}
	if ev.UserID == "" {
		logger.Warn("update event without user id")
		return
	}
	if deduper != nil && ev.ID != "" {
		seen, err := deduper.Seen(ctx, ev.UserID, ev.ID)
		if err != nil {
			logger.WithError(err).Error("dedupe check failed")
		} else if seen {
			return
		}
	}
	if err := store.RefreshTasks(ctx, ev.UserID); err != nil {
		logger.WithError(err).WithField("user", ev.UserID).Error("refresh tasks")
		if deduper != nil && ev.ID != "" {
			if forgetErr := deduper.Forget(ctx, ev.UserID, ev.ID); forgetErr != nil {
				logger.WithError(forgetErr).Error("release event key")
			}
		}
		return
	}
	notify(ev.UserID)
}
