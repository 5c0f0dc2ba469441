package consts

const (
	// TasksKeyPrefix keys the cached task snapshot per user.
	TasksKeyPrefix = "tasks:"
	// SeenKeyPrefix keys refresh notifications that were already processed.
	SeenKeyPrefix = "seen:"
	// SSEDataPrefix starts every SSE data frame.
	SSEDataPrefix = "data: "
	// DefaultUpdatesChannel is the pub/sub channel task changes arrive on.
	DefaultUpdatesChannel = "read-model-updates"
)
