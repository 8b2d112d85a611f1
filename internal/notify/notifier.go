package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Reminder is a due-date notification addressed to one user about one task.
type Reminder struct {
	UserID    uuid.UUID
	TaskID    uuid.UUID
	TaskTitle string
	DueDate   time.Time
}

// Notifier delivers reminders to users. Push delivery to the PWA is handled
// by a separate service; this interface is the seam it plugs into.
type Notifier interface {
	SendReminder(ctx context.Context, reminder Reminder) error
	SendTip(ctx context.Context, userID uuid.UUID, message string) error
}
