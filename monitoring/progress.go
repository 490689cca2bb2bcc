package monitoring

import (
	"encoding/json"
	"sync"
	"time"
)

// A ProgressBar tracks how many trace records a simulator has replayed. A
// Total of 0 means the length of the trace is unknown.
type ProgressBar struct {
	sync.Mutex
	ID        string
	Name      string
	StartTime time.Time
	Total     uint64
	Finished  uint64
	Done      bool
}

type progressBarJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
	Done      bool      `json:"done"`
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// MarkDone marks the run as complete.
func (b *ProgressBar) MarkDone() {
	b.Lock()
	defer b.Unlock()

	b.Done = true
}

// MarshalJSON encodes the bar under its lock.
func (b *ProgressBar) MarshalJSON() ([]byte, error) {
	b.Lock()
	defer b.Unlock()

	return json.Marshal(progressBarJSON{
		ID:        b.ID,
		Name:      b.Name,
		StartTime: b.StartTime,
		Total:     b.Total,
		Finished:  b.Finished,
		Done:      b.Done,
	})
}
