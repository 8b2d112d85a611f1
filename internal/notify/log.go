package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/tandemhq/tandem-api/internal/logger"
	"go.uber.org/zap"
)

// LogNotifier writes reminders to the log. It is the default delivery
// backend until a push channel is configured, and doubles as an audit trail
// in front of any real backend.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{logger: log}
}

// SendReminder logs the reminder.
func (n *LogNotifier) SendReminder(ctx context.Context, reminder Reminder) error {
	n.logger.Info("reminder_sent",
		zap.String("user_id", reminder.UserID.String()),
		zap.String("task_id", reminder.TaskID.String()),
		zap.String("task_title", logger.SanitizeString(reminder.TaskTitle, 200)),
		zap.Time("due_date", reminder.DueDate),
	)
	return nil
}

// SendTip logs the tip.
func (n *LogNotifier) SendTip(ctx context.Context, userID uuid.UUID, message string) error {
	n.logger.Info("tip_sent",
		zap.String("user_id", userID.String()),
		zap.String("message", logger.SanitizeString(message, 500)),
	)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
