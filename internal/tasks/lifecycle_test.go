package tasks

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tandemhq/tandem-api/internal/models"
	"github.com/tandemhq/tandem-api/internal/recurrence"
)

func fixedClock(t *testing.T, value string) func() time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", value, err)
	}
	return func() time.Time { return ts }
}

func timePtr(t *testing.T, value string) *time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", value, err)
	}
	return &ts
}

func TestCreate(t *testing.T) {
	t.Parallel()

	owner := uuid.New()

	tests := []struct {
		name         string
		title        string
		dueDateInput any
		rec          *recurrence.Options
		wantErr      error
		wantDue      *string
	}{
		{
			name:  "no deadline",
			title: "Buy groceries",
		},
		{
			name:         "one time with due date",
			title:        "Renew insurance",
			dueDateInput: "2024-09-01T12:00:00Z",
			wantDue:      strPtrT("2024-09-01T12:00:00Z"),
		},
		{
			name:         "recurring",
			title:        "Water the plants",
			dueDateInput: "2024-09-01T12:00:00Z",
			rec:          &recurrence.Options{Pattern: recurrence.PatternWeekly},
			wantDue:      strPtrT("2024-09-01T12:00:00Z"),
		},
		{
			name:         "garbage due date degrades to no deadline",
			title:        "Fix the shelf",
			dueDateInput: "whenever",
		},
		{
			name:    "empty title rejected",
			title:   "   ",
			wantErr: ErrTitleRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := NewLifecycle(WithClock(fixedClock(t, "2024-08-01T00:00:00Z")))
			task, err := l.Create(owner, tt.title, "", tt.dueDateInput, tt.rec)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Create error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create returned error: %v", err)
			}

			if task.OwnerID != owner {
				t.Errorf("OwnerID = %s, want %s", task.OwnerID, owner)
			}
			if task.Completed {
				t.Error("new task must not be completed")
			}
			// NextDueDate is computed lazily, on first completion.
			if task.NextDueDate != nil {
				t.Errorf("NextDueDate = %v, want nil at creation", task.NextDueDate)
			}
			if tt.wantDue == nil {
				if task.DueDate != nil {
					t.Errorf("DueDate = %v, want nil", task.DueDate)
				}
			} else {
				want := timePtr(t, *tt.wantDue)
				if task.DueDate == nil || !task.DueDate.Equal(*want) {
					t.Errorf("DueDate = %v, want %s", task.DueDate, *tt.wantDue)
				}
			}
		})
	}
}

func TestComplete_OneTimeIsTerminal(t *testing.T) {
	t.Parallel()

	l := NewLifecycle(WithClock(fixedClock(t, "2024-06-15T10:00:00Z")))
	due := timePtr(t, "2024-06-14T09:00:00Z")
	task := &models.HouseholdTask{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Title:   "Book the restaurant",
		DueDate: due,
	}

	if err := l.Complete(task); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	if !task.Completed {
		t.Error("one-time task must stay completed")
	}
	if task.DueDate == nil || !task.DueDate.Equal(*due) {
		t.Errorf("DueDate changed to %v, want %s unchanged", task.DueDate, due)
	}
	if task.NextDueDate != nil {
		t.Errorf("NextDueDate = %v, want nil", task.NextDueDate)
	}
}

func TestComplete_RecurringResetsOccurrence(t *testing.T) {
	t.Parallel()

	// Task due Jan 1, daily, completed Jan 5: new due date is Jan 6, one day
	// after the completion date, with one occurrence of lookahead behind it.
	l := NewLifecycle(WithClock(fixedClock(t, "2024-01-05T09:00:00Z")))
	task := &models.HouseholdTask{
		ID:         uuid.New(),
		OwnerID:    uuid.New(),
		Title:      "Feed the cat",
		DueDate:    timePtr(t, "2024-01-01T09:00:00Z"),
		Recurrence: &recurrence.Options{Pattern: recurrence.PatternDaily},
	}

	if err := l.Complete(task); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	if task.Completed {
		t.Error("recurring task must reset to not completed")
	}
	wantDue := timePtr(t, "2024-01-06T09:00:00Z")
	if task.DueDate == nil || !task.DueDate.Equal(*wantDue) {
		t.Errorf("DueDate = %v, want %s", task.DueDate, wantDue)
	}
	wantNext := timePtr(t, "2024-01-07T09:00:00Z")
	if task.NextDueDate == nil || !task.NextDueDate.Equal(*wantNext) {
		t.Errorf("NextDueDate = %v, want %s", task.NextDueDate, wantNext)
	}
}

func TestComplete_EndDateExhaustsSchedule(t *testing.T) {
	t.Parallel()

	// Monthly task completed on Feb 20 with an end date of Mar 1: the next
	// occurrence (Mar 20) is past the end date, so recurrence ends.
	l := NewLifecycle(WithClock(fixedClock(t, "2024-02-20T08:00:00Z")))
	task := &models.HouseholdTask{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Title:   "Pay rent",
		DueDate: timePtr(t, "2024-02-20T08:00:00Z"),
		Recurrence: &recurrence.Options{
			Pattern: recurrence.PatternMonthly,
			EndDate: timePtr(t, "2024-03-01T00:00:00Z"),
		},
	}

	if err := l.Complete(task); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	if !task.Completed {
		t.Error("exhausted recurring task must stay completed")
	}
	if task.DueDate != nil {
		t.Errorf("DueDate = %v, want nil", task.DueDate)
	}
	if task.NextDueDate != nil {
		t.Errorf("NextDueDate = %v, want nil", task.NextDueDate)
	}
}

func TestComplete_LastOccurrenceHasNoLookahead(t *testing.T) {
	t.Parallel()

	// Weekly task whose next occurrence fits before the end date but whose
	// lookahead does not: the advance happens, the lookahead stays empty.
	l := NewLifecycle(WithClock(fixedClock(t, "2024-06-01T09:00:00Z")))
	task := &models.HouseholdTask{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Title:   "Take out recycling",
		DueDate: timePtr(t, "2024-06-01T09:00:00Z"),
		Recurrence: &recurrence.Options{
			Pattern: recurrence.PatternWeekly,
			EndDate: timePtr(t, "2024-06-10T00:00:00Z"),
		},
	}

	if err := l.Complete(task); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	if task.Completed {
		t.Error("expected occurrence reset")
	}
	wantDue := timePtr(t, "2024-06-08T09:00:00Z")
	if task.DueDate == nil || !task.DueDate.Equal(*wantDue) {
		t.Errorf("DueDate = %v, want %s", task.DueDate, wantDue)
	}
	if task.NextDueDate != nil {
		t.Errorf("NextDueDate = %v, want nil past end date", task.NextDueDate)
	}
}

func TestComplete_NoDueDateAdvancesFromNow(t *testing.T) {
	t.Parallel()

	l := NewLifecycle(WithClock(fixedClock(t, "2024-06-15T10:00:00Z")))
	task := &models.HouseholdTask{
		ID:         uuid.New(),
		OwnerID:    uuid.New(),
		Title:      "Check smoke detectors",
		Recurrence: &recurrence.Options{Pattern: recurrence.PatternMonthly},
	}

	if err := l.Complete(task); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	wantDue := timePtr(t, "2024-07-15T10:00:00Z")
	if task.DueDate == nil || !task.DueDate.Equal(*wantDue) {
		t.Errorf("DueDate = %v, want %s", task.DueDate, wantDue)
	}
	if task.Completed {
		t.Error("expected occurrence reset")
	}
}

func TestComplete_UnsupportedPatternPropagates(t *testing.T) {
	t.Parallel()

	l := NewLifecycle(WithClock(fixedClock(t, "2024-06-15T10:00:00Z")))
	task := &models.HouseholdTask{
		ID:         uuid.New(),
		OwnerID:    uuid.New(),
		Title:      "Corrupt schedule",
		DueDate:    timePtr(t, "2024-06-14T09:00:00Z"),
		Recurrence: &recurrence.Options{Pattern: "bogus"},
	}

	err := l.Complete(task)
	var patternErr *recurrence.UnsupportedPatternError
	if !errors.As(err, &patternErr) {
		t.Fatalf("Complete error = %v, want *UnsupportedPatternError", err)
	}
}

func TestEdit(t *testing.T) {
	t.Parallel()

	base := func(t *testing.T) *models.HouseholdTask {
		return &models.HouseholdTask{
			ID:          uuid.New(),
			OwnerID:     uuid.New(),
			Title:       "Original",
			DueDate:     timePtr(t, "2024-06-14T09:00:00Z"),
			NextDueDate: timePtr(t, "2024-06-21T09:00:00Z"),
			Recurrence:  &recurrence.Options{Pattern: recurrence.PatternWeekly},
		}
	}

	t.Run("clearing recurrence clears next due date", func(t *testing.T) {
		t.Parallel()
		l := NewLifecycle(WithClock(fixedClock(t, "2024-06-15T10:00:00Z")))
		task := base(t)
		if err := l.Edit(task, Changes{RecurrenceSet: true, Recurrence: nil}); err != nil {
			t.Fatalf("Edit returned error: %v", err)
		}
		if task.Recurrence != nil {
			t.Error("recurrence not cleared")
		}
		if task.NextDueDate != nil {
			t.Errorf("NextDueDate = %v, want nil when recurrence is removed", task.NextDueDate)
		}
	})

	t.Run("setting recurrence keeps next due date lazy", func(t *testing.T) {
		t.Parallel()
		l := NewLifecycle(WithClock(fixedClock(t, "2024-06-15T10:00:00Z")))
		task := base(t)
		task.Recurrence = nil
		task.NextDueDate = nil
		rec := &recurrence.Options{Pattern: recurrence.PatternDaily}
		if err := l.Edit(task, Changes{RecurrenceSet: true, Recurrence: rec}); err != nil {
			t.Fatalf("Edit returned error: %v", err)
		}
		if task.Recurrence == nil || task.Recurrence.Pattern != recurrence.PatternDaily {
			t.Errorf("Recurrence = %+v, want daily", task.Recurrence)
		}
		if task.NextDueDate != nil {
			t.Errorf("NextDueDate = %v, want nil until first completion", task.NextDueDate)
		}
	})

	t.Run("due date passes through normalization", func(t *testing.T) {
		t.Parallel()
		l := NewLifecycle(WithClock(fixedClock(t, "2024-06-15T10:00:00Z")))
		task := base(t)
		if err := l.Edit(task, Changes{DueDateSet: true, DueDate: "garbage"}); err != nil {
			t.Fatalf("Edit returned error: %v", err)
		}
		if task.DueDate != nil {
			t.Errorf("DueDate = %v, want nil for unparseable input", task.DueDate)
		}
	})

	t.Run("empty title rejected", func(t *testing.T) {
		t.Parallel()
		l := NewLifecycle(WithClock(fixedClock(t, "2024-06-15T10:00:00Z")))
		task := base(t)
		empty := "  "
		if err := l.Edit(task, Changes{Title: &empty}); !errors.Is(err, ErrTitleRequired) {
			t.Fatalf("Edit error = %v, want ErrTitleRequired", err)
		}
	})
}

func TestIsOverdue(t *testing.T) {
	t.Parallel()

	l := NewLifecycle(WithClock(fixedClock(t, "2024-06-15T10:00:00Z")))

	tests := []struct {
		name string
		task models.HouseholdTask
		want bool
	}{
		{
			name: "past due date",
			task: models.HouseholdTask{DueDate: timePtr(t, "2024-06-14T09:00:00Z")},
			want: true,
		},
		{
			name: "future due date",
			task: models.HouseholdTask{DueDate: timePtr(t, "2024-06-16T09:00:00Z")},
			want: false,
		},
		{
			name: "no deadline",
			task: models.HouseholdTask{},
			want: false,
		},
		{
			name: "completed task",
			task: models.HouseholdTask{DueDate: timePtr(t, "2024-06-14T09:00:00Z"), Completed: true},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := l.IsOverdue(&tt.task); got != tt.want {
				t.Errorf("IsOverdue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOccurrences(t *testing.T) {
	t.Parallel()

	l := NewLifecycle(WithClock(fixedClock(t, "2024-06-01T00:00:00Z")))

	t.Run("previews future occurrences", func(t *testing.T) {
		t.Parallel()
		task := &models.HouseholdTask{
			DueDate:    timePtr(t, "2024-06-03T09:00:00Z"),
			Recurrence: &recurrence.Options{Pattern: recurrence.PatternWeekly},
		}
		got, err := l.Occurrences(task, 3)
		if err != nil {
			t.Fatalf("Occurrences returned error: %v", err)
		}
		want := []string{
			"2024-06-10T09:00:00Z",
			"2024-06-17T09:00:00Z",
			"2024-06-24T09:00:00Z",
		}
		if len(got) != len(want) {
			t.Fatalf("got %d occurrences, want %d", len(got), len(want))
		}
		for i := range want {
			if !got[i].Equal(*timePtr(t, want[i])) {
				t.Errorf("occurrence %d = %s, want %s", i, got[i].Format(time.RFC3339), want[i])
			}
		}
	})

	t.Run("stops at end date", func(t *testing.T) {
		t.Parallel()
		task := &models.HouseholdTask{
			DueDate: timePtr(t, "2024-06-03T09:00:00Z"),
			Recurrence: &recurrence.Options{
				Pattern: recurrence.PatternWeekly,
				EndDate: timePtr(t, "2024-06-18T00:00:00Z"),
			},
		}
		got, err := l.Occurrences(task, 5)
		if err != nil {
			t.Fatalf("Occurrences returned error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d occurrences, want 2 (schedule ends June 18)", len(got))
		}
	})

	t.Run("non-recurring yields nothing", func(t *testing.T) {
		t.Parallel()
		task := &models.HouseholdTask{DueDate: timePtr(t, "2024-06-03T09:00:00Z")}
		got, err := l.Occurrences(task, 5)
		if err != nil {
			t.Fatalf("Occurrences returned error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("got %d occurrences, want 0", len(got))
		}
	})
}

func strPtrT(s string) *string {
	return &s
}
