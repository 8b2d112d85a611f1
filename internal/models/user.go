package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account in the system. PartnerID links the two members
// of a household once they have paired; pairing itself is handled by the
// native auth service, this model only carries the link.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Name      *string    `json:"name,omitempty"`
	PartnerID *uuid.UUID `json:"partner_id,omitempty"`
	Timezone  string     `json:"timezone,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
