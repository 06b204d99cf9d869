package download

import (
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Result is the terminal payload of a successful ingest.
type Result struct {
	Success  bool    `json:"success"`
	VideoID  string  `json:"video_id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration,omitempty"`
	Artwork  string  `json:"artwork,omitempty"`
	Filename string  `json:"filename"`
	URL      string  `json:"url"`
	Size     int64   `json:"size,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// Task tracks one ingest job from submission to its terminal state.
// The done channel is closed exactly once, after status, result and
// err have been written.
type Task struct {
	ID        string
	VideoID   string
	Format    string
	CreatedAt time.Time

	status Status
	result *Result
	err    error
	done   chan struct{}
}

// TaskStatus is the externally visible view of a task. QueuePosition
// counts still-pending tasks ahead of this one (best-effort).
type TaskStatus struct {
	TaskID        string    `json:"task_id"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	Result        *Result   `json:"result,omitempty"`
	Error         string    `json:"error,omitempty"`
	QueuePosition int       `json:"queue_position"`
}
