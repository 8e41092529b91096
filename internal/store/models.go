package store

// Signal is a persisted trading signal. The ID is assigned exactly once by the
// store at creation; fields are never mutated afterward.
type Signal struct {
	ID        int64  `json:"id"`
	Ticker    string `json:"ticker"`
	Kind      string `json:"kind"`
	Note      string `json:"note"`
	CreatedAt int64  `json:"created_at"`
}
