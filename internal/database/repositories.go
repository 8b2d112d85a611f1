package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tandemhq/tandem-api/internal/models"
)

// TaskRepositoryInterface defines the interface for task repository operations
// This interface enables better testability by allowing mock implementations
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.HouseholdTask) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.HouseholdTask, error)
	GetByOwnerPaginated(ctx context.Context, ownerID uuid.UUID, filter TaskFilter, page, pageSize int) ([]*models.HouseholdTask, int, error)
	ListDueBetween(ctx context.Context, from, to time.Time) ([]*models.HouseholdTask, error)
	Update(ctx context.Context, task *models.HouseholdTask) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserRepositoryInterface defines the interface for user repository operations
type UserRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// Ensure concrete types implement the interfaces
var (
	_ TaskRepositoryInterface = (*TaskRepository)(nil)
	_ UserRepositoryInterface = (*UserRepository)(nil)
)
