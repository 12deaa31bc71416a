package models

import (
	"time"

	"github.com/google/uuid"
)

// GaugeLevel is the discretized occupancy category of a place.
type GaugeLevel string

const (
	GaugeLevelUnknown GaugeLevel = "unknown"
	GaugeLevelEmpty   GaugeLevel = "empty"
	GaugeLevelLow     GaugeLevel = "low"
	GaugeLevelMedium  GaugeLevel = "medium"
	GaugeLevelHigh    GaugeLevel = "high"
	GaugeLevelFull    GaugeLevel = "full"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Place is a venue owned by an organization. The gauge fields are derived
// from check-in intervals and written only by the gauge refresh.
type Place struct {
	ID                  uuid.UUID    `json:"id"`
	OrganizationID      uuid.UUID    `json:"organization_id"`
	Name                string       `json:"name"`
	Description         *string      `json:"description,omitempty"`
	Address             *string      `json:"address,omitempty"`
	Location            *Coordinates `json:"location,omitempty"`
	AverageDuration     int64        `json:"average_duration"` // minutes
	MaximumDuration     int64        `json:"maximum_duration"` // minutes
	MaximumGauge        *int64       `json:"maximum_gauge,omitempty"`
	CurrentGauge        int64        `json:"current_gauge"`
	CurrentGaugeLevel   GaugeLevel   `json:"current_gauge_level"`
	CurrentGaugePercent *int64       `json:"current_gauge_percent,omitempty"`
	Disabled            bool         `json:"disabled"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// PlaceFields is the caller-supplied portion of a place, used for both
// insert and full update so the storage schema stays out of the domain type.
type PlaceFields struct {
	Name            string
	Description     *string
	Address         *string
	Location        *Coordinates
	AverageDuration int64
	MaximumDuration int64
	MaximumGauge    *int64
}

// OrganizationSummary is the public attribution attached to search results.
type OrganizationSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// PlaceWithOrganization pairs a place with its owning organization.
type PlaceWithOrganization struct {
	Place        Place               `json:"place"`
	Organization OrganizationSummary `json:"organization"`
}

// PlaceSearchResult is one proximity search row.
type PlaceSearchResult struct {
	Place         Place               `json:"place"`
	Organization  OrganizationSummary `json:"organization"`
	MeterDistance float64             `json:"meter_distance"`
}
