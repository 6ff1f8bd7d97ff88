package models

import (
	"time"
)

// ProcessingTask is an asynchronous extraction job
type ProcessingTask struct {
	ID        string            `json:"id"`
	Status    ProcessingStatus  `json:"status"`
	Type      string            `json:"type"`
	Priority  int               `json:"priority"`
	Progress  float64           `json:"progress"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty"`
}

type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusRunning   ProcessingStatus = "running"
	StatusCompleted ProcessingStatus = "completed"
	StatusFailed    ProcessingStatus = "failed"
	StatusCancelled ProcessingStatus = "cancelled"
)

// ParseProcessingStatus maps queue states onto ProcessingStatus.
func ParseProcessingStatus(s string) ProcessingStatus {
	switch s {
	case "active", "running":
		return StatusRunning
	case "completed":
		return StatusCompleted
	case "failed":
		return StatusFailed
	case "cancelled":
		return StatusCancelled
	default:
		return StatusPending
	}
}
