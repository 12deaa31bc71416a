package models

import (
	"time"

	"github.com/google/uuid"
)

// Infection flags an infection window over one or more places owned by the
// reporting organization. Check-ins overlapping the window are marked as
// potential infections by the background worker.
type Infection struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	PlacesIDs      []uuid.UUID `json:"places_ids"`
	StartTimestamp time.Time   `json:"start_timestamp"`
	EndTimestamp   time.Time   `json:"end_timestamp"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
