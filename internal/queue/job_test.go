package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewJob(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	taskID := uuid.New()
	job := NewJob(JobTypeDueReminder, userID, &taskID)

	if job.ID == uuid.Nil {
		t.Error("job ID not assigned")
	}
	if job.Type != JobTypeDueReminder {
		t.Errorf("Type = %s, want %s", job.Type, JobTypeDueReminder)
	}
	if job.UserID != userID {
		t.Errorf("UserID = %s, want %s", job.UserID, userID)
	}
	if job.TaskID == nil || *job.TaskID != taskID {
		t.Errorf("TaskID = %v, want %s", job.TaskID, taskID)
	}
	if job.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", job.MaxRetries)
	}
	if job.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", job.RetryCount)
	}
}

func TestJob_ShouldProcess(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name      string
		notBefore *time.Time
		notAfter  *time.Time
		want      bool
	}{
		{name: "no window", want: true},
		{name: "not before in past", notBefore: &past, want: true},
		{name: "not before in future", notBefore: &future, want: false},
		{name: "not after in future", notAfter: &future, want: true},
		{name: "not after in past", notAfter: &past, want: false},
		{name: "inside window", notBefore: &past, notAfter: &future, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job := NewJob(JobTypeDueScan, uuid.New(), nil)
			job.NotBefore = tt.notBefore
			job.NotAfter = tt.notAfter
			if got := job.ShouldProcess(); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_IsExpired(t *testing.T) {
	t.Parallel()

	job := NewJob(JobTypeDueReminder, uuid.New(), nil)
	if job.IsExpired() {
		t.Error("job with no NotAfter must not expire")
	}

	past := time.Now().Add(-time.Minute)
	job.NotAfter = &past
	if !job.IsExpired() {
		t.Error("job past NotAfter must be expired")
	}
}

func TestJob_Retry(t *testing.T) {
	t.Parallel()

	job := NewJob(JobTypeDueReminder, uuid.New(), nil)
	for i := 0; i < job.MaxRetries; i++ {
		if !job.CanRetry() {
			t.Fatalf("CanRetry() = false at retry %d of %d", i, job.MaxRetries)
		}
		job.IncrementRetry()
	}
	if job.CanRetry() {
		t.Error("CanRetry() = true after exhausting retries")
	}
}
