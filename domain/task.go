package domain

// Task is a single item from the task read model. Statistics only inspect
// Done; the remaining fields ride along because the sources return them.
type Task struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Notes    string `json:"notes,omitempty"`
	Category string `json:"category"`
	Order    int    `json:"order"`
	Done     bool   `json:"done,omitempty"`
}
