package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tandemhq/tandem-api/internal/database"
	"github.com/tandemhq/tandem-api/internal/notify"
	"github.com/tandemhq/tandem-api/internal/queue"
	"github.com/tandemhq/tandem-api/internal/services/insights"
)

// ReminderWorker processes due-reminder, due-scan, and daily-tip jobs.
type ReminderWorker struct {
	taskRepo    database.TaskRepositoryInterface
	userRepo    database.UserRepositoryInterface
	notifier    notify.Notifier
	tipProvider insights.TipProvider
	jobQueue    queue.JobQueue // For re-enqueueing jobs with delays
	leadTime    time.Duration
}

// NewReminderWorker creates a new reminder worker. tipProvider may be nil,
// in which case daily-tip jobs are acked and skipped.
func NewReminderWorker(
	taskRepo database.TaskRepositoryInterface,
	userRepo database.UserRepositoryInterface,
	notifier notify.Notifier,
	tipProvider insights.TipProvider,
	jobQueue queue.JobQueue,
	leadTime time.Duration,
) *ReminderWorker {
	return &ReminderWorker{
		taskRepo:    taskRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		tipProvider: tipProvider,
		jobQueue:    jobQueue,
		leadTime:    leadTime,
	}
}

// ProcessDueReminderJob delivers one task reminder. The task is re-read and
// re-checked first: a reminder enqueued hours ago must not fire if the task
// was completed, deleted, or rescheduled in the meantime.
func (w *ReminderWorker) ProcessDueReminderJob(ctx context.Context, job *queue.Job) error {
	if job.TaskID == nil {
		return fmt.Errorf("task_id is required for due reminder job")
	}

	task, err := w.taskRepo.GetByID(ctx, *job.TaskID)
	if err != nil {
		// Deleted tasks need no reminder
		log.Printf("Skipping reminder for task %s: %v", *job.TaskID, err)
		return nil
	}

	if task.OwnerID != job.UserID {
		return fmt.Errorf("task does not belong to user")
	}

	if task.Completed || task.DueDate == nil {
		log.Printf("Skipping reminder for task %s (completed or no due date)", task.ID)
		return nil
	}

	// Rescheduled past the reminder window: the next due scan picks it up
	if time.Until(*task.DueDate) > w.leadTime {
		log.Printf("Skipping reminder for task %s (rescheduled to %v)", task.ID, task.DueDate)
		return nil
	}

	reminder := notify.Reminder{
		UserID:    task.OwnerID,
		TaskID:    task.ID,
		TaskTitle: task.Title,
		DueDate:   *task.DueDate,
	}
	if err := w.notifier.SendReminder(ctx, reminder); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}

	// A couple shares the load: the partner gets the reminder too
	owner, err := w.userRepo.GetByID(ctx, task.OwnerID)
	if err == nil && owner.PartnerID != nil {
		partnerReminder := reminder
		partnerReminder.UserID = *owner.PartnerID
		if err := w.notifier.SendReminder(ctx, partnerReminder); err != nil {
			log.Printf("Failed to send partner reminder for task %s: %v", task.ID, err)
		}
	}

	return nil
}

// ProcessDueScanJob scans for tasks coming due inside the reminder window
// and fans out one due_reminder job per task. Reminders fire at due date
// minus lead time, delivered via the delayed exchange, and expire at the due
// date itself. The scan also sweeps one lead-time window into the past, so
// tasks that slipped overdue still get a reminder; those fire immediately
// and carry no expiration.
func (w *ReminderWorker) ProcessDueScanJob(ctx context.Context, job *queue.Job) error {
	now := time.Now().UTC()
	tasks, err := w.taskRepo.ListDueBetween(ctx, now.Add(-w.leadTime), now.Add(w.leadTime))
	if err != nil {
		return fmt.Errorf("failed to list due tasks: %w", err)
	}

	enqueued := 0
	for _, task := range tasks {
		if task.DueDate == nil {
			continue
		}
		taskID := task.ID
		reminderJob := queue.NewJob(queue.JobTypeDueReminder, task.OwnerID, &taskID)
		notBefore := task.DueDate.Add(-w.leadTime)
		if notBefore.After(now) {
			reminderJob.NotBefore = &notBefore
		}
		if task.DueDate.After(now) {
			dueDate := *task.DueDate
			reminderJob.NotAfter = &dueDate
		}

		if err := w.jobQueue.Enqueue(ctx, reminderJob); err != nil {
			log.Printf("Failed to enqueue reminder for task %s: %v", task.ID, err)
			continue
		}
		enqueued++
	}

	log.Printf("Due scan enqueued %d reminder(s) from %d due task(s)", enqueued, len(tasks))
	return nil
}

// ProcessDailyTipJob generates and delivers the couple's daily tip.
func (w *ReminderWorker) ProcessDailyTipJob(ctx context.Context, job *queue.Job) error {
	if w.tipProvider == nil {
		log.Printf("Skipping daily tip for user %s (no tip provider configured)", job.UserID)
		return nil
	}

	user, err := w.userRepo.GetByID(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	incomplete := false
	tasks, _, err := w.taskRepo.GetByOwnerPaginated(ctx, job.UserID, database.TaskFilter{Completed: &incomplete}, 1, 50)
	if err != nil {
		return fmt.Errorf("failed to get tasks: %w", err)
	}

	tip, err := w.tipProvider.DailyTip(ctx, tasks, user.Timezone)
	if err != nil {
		return fmt.Errorf("failed to generate tip: %w", err)
	}

	if err := w.notifier.SendTip(ctx, user.ID, tip.Message); err != nil {
		return fmt.Errorf("failed to send tip: %w", err)
	}
	if user.PartnerID != nil {
		if err := w.notifier.SendTip(ctx, *user.PartnerID, tip.Message); err != nil {
			log.Printf("Failed to send partner tip for user %s: %v", user.ID, err)
		}
	}

	return nil
}

// ProcessJob processes a job based on its type
func (w *ReminderWorker) ProcessJob(ctx context.Context, msg *queue.Message) error {
	job := msg.Job

	switch job.Type {
	case queue.JobTypeDueReminder:
		if err := w.ProcessDueReminderJob(ctx, job); err != nil {
			return w.handleJobError(ctx, msg, job, err, "due reminder")
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	case queue.JobTypeDueScan:
		if err := w.ProcessDueScanJob(ctx, job); err != nil {
			// The scan repeats on a schedule; a failed run is retried by the
			// next one rather than requeued
			if nackErr := msg.Nack(false); nackErr != nil {
				log.Printf("Failed to nack due scan job: %v", nackErr)
			}
			return fmt.Errorf("due scan failed: %w", err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack due scan job: %w", ackErr)
		}
		return nil

	case queue.JobTypeDailyTip:
		if err := w.ProcessDailyTipJob(ctx, job); err != nil {
			return w.handleJobError(ctx, msg, job, err, "daily tip")
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack daily tip job: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			log.Printf("Failed to nack unknown job type: %v", nackErr)
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError handles errors from job processing with retry logic. Quota
// and rate-limit errors from the tip provider re-enqueue with a delay; other
// errors use the standard nack/requeue path until retries run out.
func (w *ReminderWorker) handleJobError(ctx context.Context, msg *queue.Message, job *queue.Job, err error, jobType string) error {
	if insights.IsQuotaError(err) || insights.IsRateLimitError(err) {
		retryDelay := insights.GetRetryDelay(err, job.RetryCount)

		if job.CanRetry() && w.jobQueue != nil {
			notBefore := time.Now().Add(retryDelay)
			delayedJob := &queue.Job{
				ID:         job.ID,
				Type:       job.Type,
				UserID:     job.UserID,
				TaskID:     job.TaskID,
				NotBefore:  &notBefore,
				NotAfter:   job.NotAfter,
				Metadata:   job.Metadata,
				CreatedAt:  job.CreatedAt,
				RetryCount: job.RetryCount + 1,
				MaxRetries: job.MaxRetries,
			}

			if ackErr := msg.Ack(); ackErr != nil {
				log.Printf("Failed to ack job before re-enqueue: %v", ackErr)
			}

			if enqueueErr := w.jobQueue.Enqueue(ctx, delayedJob); enqueueErr != nil {
				log.Printf("Failed to re-enqueue %s job %s: %v", jobType, job.ID, enqueueErr)
				return fmt.Errorf("failed to re-enqueue after provider error: %w", enqueueErr)
			}

			log.Printf("Re-enqueued %s job %s for retry at %v (delay: %v)", jobType, job.ID, notBefore, retryDelay)
			return nil
		}

		// No retries left: DLQ
		if nackErr := msg.Nack(false); nackErr != nil {
			log.Printf("Failed to nack %s job: %v", jobType, nackErr)
		}
		return fmt.Errorf("%s job failed (provider limits, max retries): %w", jobType, err)
	}

	if job.CanRetry() {
		job.IncrementRetry()
		log.Printf("%s job %s failed (attempt %d/%d): %v, will retry", jobType, job.ID, job.RetryCount, job.MaxRetries, err)
		if nackErr := msg.Nack(true); nackErr != nil {
			log.Printf("Failed to nack job: %v", nackErr)
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	log.Printf("%s job %s failed after %d retries: %v, sending to DLQ", jobType, job.ID, job.MaxRetries, err)
	if nackErr := msg.Nack(false); nackErr != nil {
		log.Printf("Failed to nack job to DLQ: %v", nackErr)
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}
