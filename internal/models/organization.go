package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a tenant owning places.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Confirmed bool      `json:"confirmed"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary returns the public fields exposed on place listings.
func (o Organization) Summary() OrganizationSummary {
	return OrganizationSummary{ID: o.ID, Name: o.Name}
}
