package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tandemhq/tandem-api/internal/models"
	"github.com/tandemhq/tandem-api/internal/recurrence"
	"go.uber.org/zap"
)

// TaskFilter narrows task listings.
type TaskFilter struct {
	Completed *bool
	// Overdue selects tasks with a due date before now and not completed.
	Overdue bool
}

// TaskRepository handles task database operations
type TaskRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db, logger: zap.NewNop()}
}

// SetLogger attaches a logger for slow-path diagnostics.
func (r *TaskRepository) SetLogger(logger *zap.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Create creates a new task
func (r *TaskRepository) Create(ctx context.Context, task *models.HouseholdTask) error {
	query := `
		INSERT INTO tasks (id, owner_id, title, description, due_date, next_due_date, completed, recurrence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	recurrenceJSON, err := marshalRecurrence(task.Recurrence)
	if err != nil {
		return err
	}

	now := time.Now()
	err = r.db.QueryRowContext(ctx, query,
		task.ID,
		task.OwnerID,
		task.Title,
		task.Description,
		nullTime(task.DueDate),
		nullTime(task.NextDueDate),
		task.Completed,
		recurrenceJSON,
		now,
		now,
	).Scan(&task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetByID retrieves a task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.HouseholdTask, error) {
	query := `
		SELECT id, owner_id, title, description, due_date, next_due_date, completed, recurrence, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// GetByOwnerPaginated retrieves tasks visible to an owner, newest first, with
// optional completion and overdue filters. It returns the page of tasks and
// the total row count for the filter.
func (r *TaskRepository) GetByOwnerPaginated(ctx context.Context, ownerID uuid.UUID, filter TaskFilter, page, pageSize int) ([]*models.HouseholdTask, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	where := " WHERE owner_id = $1"
	args := []any{ownerID}
	argIndex := 2

	if filter.Completed != nil {
		where += fmt.Sprintf(" AND completed = $%d", argIndex)
		args = append(args, *filter.Completed)
		argIndex++
	}

	if filter.Overdue {
		where += fmt.Sprintf(" AND completed = FALSE AND due_date IS NOT NULL AND due_date < $%d", argIndex)
		args = append(args, time.Now().UTC())
		argIndex++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM tasks" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	query := `
		SELECT id, owner_id, title, description, due_date, next_due_date, completed, recurrence, created_at, updated_at
		FROM tasks` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.HouseholdTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, total, nil
}

// ListDueBetween retrieves incomplete tasks whose due date falls within
// [from, to). The due-scan job uses this to enqueue reminders.
func (r *TaskRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]*models.HouseholdTask, error) {
	query := `
		SELECT id, owner_id, title, description, due_date, next_due_date, completed, recurrence, created_at, updated_at
		FROM tasks
		WHERE completed = FALSE AND due_date >= $1 AND due_date < $2
		ORDER BY due_date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.HouseholdTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due tasks: %w", err)
	}

	return tasks, nil
}

// Update updates an existing task
func (r *TaskRepository) Update(ctx context.Context, task *models.HouseholdTask) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, due_date = $4, next_due_date = $5, completed = $6, recurrence = $7, updated_at = $8
		WHERE id = $1
		RETURNING updated_at
	`

	recurrenceJSON, err := marshalRecurrence(task.Recurrence)
	if err != nil {
		return err
	}

	now := time.Now()
	err = r.db.QueryRowContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		nullTime(task.DueDate),
		nullTime(task.NextDueDate),
		task.Completed,
		recurrenceJSON,
		now,
	).Scan(&task.UpdatedAt)

	if err == sql.ErrNoRows {
		return fmt.Errorf("task not found")
	}
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	return nil
}

// Delete deletes a task by ID
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM tasks WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("task not found")
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.HouseholdTask, error) {
	task := &models.HouseholdTask{}
	var dueDate, nextDueDate sql.NullTime
	var recurrenceJSON []byte

	err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&task.Title,
		&task.Description,
		&dueDate,
		&nextDueDate,
		&task.Completed,
		&recurrenceJSON,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueDate.Valid {
		t := dueDate.Time.UTC()
		task.DueDate = &t
	}
	if nextDueDate.Valid {
		t := nextDueDate.Time.UTC()
		task.NextDueDate = &t
	}
	if len(recurrenceJSON) > 0 {
		var rec recurrence.Options
		if err := json.Unmarshal(recurrenceJSON, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recurrence: %w", err)
		}
		task.Recurrence = &rec
	}

	return task, nil
}

func marshalRecurrence(rec *recurrence.Options) ([]byte, error) {
	if rec == nil {
		return nil, nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recurrence: %w", err)
	}
	return data, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
