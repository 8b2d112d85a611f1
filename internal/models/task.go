package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/tandemhq/tandem-api/internal/recurrence"
)

// HouseholdTask represents a shared household task.
//
// DueDate is the current occurrence's deadline; nil means a checklist-style
// task with no deadline. NextDueDate is the precomputed deadline for the
// occurrence after the current one; it is nil for one-time tasks and for
// recurring tasks whose schedule has ended. All instants are stored in UTC;
// the recurrence timezone applies only during calculation.
type HouseholdTask struct {
	ID          uuid.UUID           `json:"id"`
	OwnerID     uuid.UUID           `json:"owner_id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	DueDate     *time.Time          `json:"due_date,omitempty"`
	NextDueDate *time.Time          `json:"next_due_date,omitempty"`
	Completed   bool                `json:"completed"`
	Recurrence  *recurrence.Options `json:"recurrence,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// IsRecurring reports whether the task carries a recurrence specification.
func (t *HouseholdTask) IsRecurring() bool {
	return t.Recurrence != nil
}
