package queue

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

func TestQueueForPriority(t *testing.T) {
	assert.Equal(t, QueueCritical, queueFor(1))
	assert.Equal(t, QueueDefault, queueFor(2))
	assert.Equal(t, QueueLow, queueFor(3))
	assert.Equal(t, QueueLow, queueFor(0))
}

func TestConvertAsynqStatus(t *testing.T) {
	done := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		info     *asynq.TaskInfo
		status   string
		progress float64
		errMsg   string
	}{
		{"pending", &asynq.TaskInfo{ID: "a", State: asynq.TaskStatePending}, "pending", 0, ""},
		{"scheduled", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateScheduled}, "pending", 0, ""},
		{"active", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateActive}, "running", 0.5, ""},
		{"completed", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateCompleted, CompletedAt: done}, "completed", 1, ""},
		{"retry", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateRetry, LastErr: "boom"}, "pending", 0, "boom"},
		{"archived", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateArchived, LastErr: "gave up"}, "failed", 0, "gave up"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertAsynqStatus(tt.info)
			assert.Equal(t, "a", got.TaskID)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.progress, got.Progress)
			assert.Equal(t, tt.errMsg, got.Error)
		})
	}

	got := convertAsynqStatus(&asynq.TaskInfo{ID: "a", State: asynq.TaskStateCompleted, CompletedAt: done})
	assert.Equal(t, done, got.FinishedAt)
}

func TestStatusKey(t *testing.T) {
	assert.Equal(t, "task_status:abc", statusKey("abc"))
}
