package tasks

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tandemhq/tandem-api/internal/models"
	"github.com/tandemhq/tandem-api/internal/recurrence"
)

// ErrTitleRequired is returned when a task is created or edited with an
// empty title.
var ErrTitleRequired = errors.New("task title cannot be empty")

// Lifecycle owns the valid state transitions of a HouseholdTask's due-date
// and recurrence fields. All date arithmetic is delegated to the recurrence
// package; all date input passes through recurrence.ParseDueDate. Methods
// mutate the task passed in and never touch storage — persisting the result
// is the caller's job, under whatever transaction it already holds.
type Lifecycle struct {
	now func() time.Time
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithClock overrides the time source. Tests use this to keep transitions
// deterministic.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) {
		l.now = now
	}
}

// NewLifecycle creates a lifecycle manager.
func NewLifecycle(opts ...Option) *Lifecycle {
	l := &Lifecycle{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create builds a new task from external input. The due date input may be
// any of the shapes ParseDueDate accepts; unparseable input yields a task
// without a deadline. NextDueDate is not precomputed at creation — it is
// filled lazily on first completion.
func (l *Lifecycle) Create(ownerID uuid.UUID, title, description string, dueDateInput any, rec *recurrence.Options) (*models.HouseholdTask, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	now := l.now().UTC()
	return &models.HouseholdTask{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(description),
		DueDate:     recurrence.ParseDueDate(dueDateInput),
		Recurrence:  rec,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Complete marks the current occurrence done.
//
// One-time tasks stay completed with their dates untouched. Recurring tasks
// advance: the new DueDate is the next occurrence after the old one (or
// after now, if the task was overdue), NextDueDate is one further occurrence
// of lookahead, and Completed resets to false — the task is evergreen, only
// the occurrence completes. If the advance would pass the recurrence's end
// date, the schedule is exhausted: both due dates clear and the task stays
// completed permanently.
//
// An UnsupportedPatternError from the engine propagates uncaught; a task
// must not silently complete with corrupt recurrence data.
func (l *Lifecycle) Complete(task *models.HouseholdTask) error {
	now := l.now().UTC()
	task.Completed = true
	task.UpdatedAt = now

	if task.Recurrence == nil {
		return nil
	}

	base := now
	if task.DueDate != nil {
		base = *task.DueDate
	}

	next, err := recurrence.NextDueDate(base, *task.Recurrence, now)
	if err != nil {
		return err
	}

	end := task.Recurrence.EndDate
	if end != nil && next.After(*end) {
		// Schedule exhausted: terminal completion.
		task.DueDate = nil
		task.NextDueDate = nil
		return nil
	}

	task.DueDate = &next

	lookahead, err := recurrence.NextDueDate(next, *task.Recurrence, now)
	if err != nil {
		return err
	}
	if end != nil && lookahead.After(*end) {
		// The current occurrence is the schedule's last one.
		task.NextDueDate = nil
	} else {
		task.NextDueDate = &lookahead
	}

	task.Completed = false
	return nil
}

// Changes describes a partial edit. Pointer fields follow the PATCH
// convention (nil = leave alone); DueDate and Recurrence carry explicit
// Set flags so callers can distinguish "absent" from "set to null".
type Changes struct {
	Title         *string
	Description   *string
	DueDate       any
	DueDateSet    bool
	Recurrence    *recurrence.Options
	RecurrenceSet bool
}

// Edit applies a partial update. Changing recurrence from set to nil (or
// the reverse) clears NextDueDate, matching the lazy policy used at
// creation: the field is only ever populated by Complete.
func (l *Lifecycle) Edit(task *models.HouseholdTask, changes Changes) error {
	if changes.Title != nil {
		title := strings.TrimSpace(*changes.Title)
		if title == "" {
			return ErrTitleRequired
		}
		task.Title = title
	}
	if changes.Description != nil {
		task.Description = strings.TrimSpace(*changes.Description)
	}
	if changes.DueDateSet {
		task.DueDate = recurrence.ParseDueDate(changes.DueDate)
	}
	if changes.RecurrenceSet {
		task.Recurrence = changes.Recurrence
		task.NextDueDate = nil
	}

	task.UpdatedAt = l.now().UTC()
	return nil
}

// IsOverdue reports whether the task's current occurrence is overdue.
// Tasks without a deadline and completed tasks are never overdue.
func (l *Lifecycle) IsOverdue(task *models.HouseholdTask) bool {
	if task.DueDate == nil || task.Completed {
		return false
	}
	return recurrence.IsOverdue(*task.DueDate, l.now().UTC())
}

// Occurrences previews the next count occurrences of the task's schedule,
// starting from its due date (or now, when it has none). The preview stops
// early when the schedule's end date is reached. A non-recurring task has
// no occurrences beyond its due date and yields an empty slice.
func (l *Lifecycle) Occurrences(task *models.HouseholdTask, count int) ([]time.Time, error) {
	if task.Recurrence == nil || count <= 0 {
		return nil, nil
	}

	now := l.now().UTC()
	base := now
	if task.DueDate != nil {
		base = *task.DueDate
	}

	end := task.Recurrence.EndDate
	occurrences := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		next, err := recurrence.NextDueDate(base, *task.Recurrence, now)
		if err != nil {
			return nil, err
		}
		if end != nil && next.After(*end) {
			break
		}
		occurrences = append(occurrences, next)
		base = next
	}
	return occurrences, nil
}
