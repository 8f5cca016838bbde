// Package jobs runs document conversions in the background and tracks
// their status.
package jobs

import (
	"errors"
	"time"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotCompleted = errors.New("conversion not completed")
	ErrFileTooLarge    = errors.New("file too large")
)

// State is the lifecycle stage of a job
type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further updates will follow
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Progress milestones
const (
	ProgressExtracting   = 10
	ProgressSegmenting   = 30
	ProgressSynthesizing = 50
	ProgressSynthEnd     = 80
	ProgressMerging      = 85
	ProgressDone         = 100
)

// Status is the per-job record exposed to clients
type Status struct {
	JobID             string    `json:"job_id"`
	State             State     `json:"status"`
	Progress          int       `json:"progress"`
	Message           string    `json:"message"`
	Filename          string    `json:"filename"`
	AudioURL          string    `json:"audio_url,omitempty"`
	Format            string    `json:"format,omitempty"`
	EstimatedDuration float64   `json:"estimated_duration,omitempty"` // seconds
	SegmentsTotal     int       `json:"segments_total"`
	SegmentsFailed    int       `json:"segments_failed"`
	MergeStrategy     string    `json:"merge_strategy,omitempty"`
	OutputSize        int       `json:"output_size,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// AudioPath is where the merged artifact lives on disk
	AudioPath string `json:"-"`
}
