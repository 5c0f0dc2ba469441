package domain

// Statistics holds the aggregate counts computed from one task snapshot.
// Every task in the snapshot is either active or completed, so the two
// counts always partition it exactly.
type Statistics struct {
	ActiveCount    int `json:"activeCount"`
	CompletedCount int `json:"completedCount"`
}

// Compute reduces a task snapshot to its statistics in a single pass.
func Compute(tasks []Task) Statistics {
	var s Statistics
	for _, t := range tasks {
		if t.Done {
			s.CompletedCount++
		} else {
			s.ActiveCount++
		}
	}
	return s
}

// Total returns the size of the snapshot the statistics were computed from.
func (s Statistics) Total() int {
	return s.ActiveCount + s.CompletedCount
}
