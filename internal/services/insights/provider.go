package insights

import (
	"context"

	"github.com/tandemhq/tandem-api/internal/models"
)

// Tip is a short coordination suggestion generated for a couple from their
// upcoming tasks.
type Tip struct {
	Message   string `json:"message"`
	FocusArea string `json:"focus_area,omitempty"` // e.g. "chores", "planning", "balance"
}

// TipProvider is the interface for tip generators
type TipProvider interface {
	// DailyTip generates a coordination tip from the couple's upcoming
	// tasks. tasks may be empty; the provider still returns a generic tip.
	DailyTip(ctx context.Context, tasks []*models.HouseholdTask, timezone string) (*Tip, error)
}

// ProviderFactory creates a tip provider from string configuration
type ProviderFactory func(config map[string]string) (TipProvider, error)

// ProviderRegistry stores available tip providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (TipProvider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(config)
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "tip provider not found: " + e.Name
}
