package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckIn is one recorded visit interval at a place. Rows are never deleted:
// they are the audit trail contact tracing runs on.
type CheckIn struct {
	ID                 uuid.UUID  `json:"id"`
	PlaceID            uuid.UUID  `json:"place_id"`
	SessionID          uuid.UUID  `json:"session_id"`
	UserID             *uuid.UUID `json:"user_id,omitempty"`
	StartTimestamp     time.Time  `json:"start_timestamp"`
	EndTimestamp       time.Time  `json:"end_timestamp"`
	Duration           int64      `json:"duration"` // minutes
	Number             int64      `json:"number"`
	Confirmed          bool       `json:"confirmed"`
	PotentialInfection bool       `json:"potential_infection"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ActiveAt reports whether the visit interval [start, end) contains t.
func (c CheckIn) ActiveAt(t time.Time) bool {
	return !c.StartTimestamp.After(t) && c.EndTimestamp.After(t)
}

// Occupancy sums the head counts of check-ins active at t. It mirrors the
// aggregate the store computes and lets callers cross-check persisted gauges.
func Occupancy(checkins []CheckIn, t time.Time) int64 {
	var total int64
	for _, c := range checkins {
		if c.ActiveAt(t) {
			total += c.Number
		}
	}
	return total
}

// VisitEnd computes the end of a visit starting at start: the requested
// duration capped by the place's maximum allowed duration, both in minutes.
func VisitEnd(start time.Time, requestedMinutes, maximumMinutes int64) time.Time {
	minutes := requestedMinutes
	if maximumMinutes > 0 && minutes > maximumMinutes {
		minutes = maximumMinutes
	}
	return start.Add(time.Duration(minutes) * time.Minute)
}
