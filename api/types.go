package api

import (
	"context"

	"stats-service/domain"
)

// Storage abstracts task snapshot reads for handlers.
type Storage interface {
	FetchTasks(ctx context.Context, userID string) ([]domain.Task, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// BusyState reports whether statistics flows are in flight, for idle probes.
type BusyState interface {
	IsIdle() bool
	InFlight() int64
}
