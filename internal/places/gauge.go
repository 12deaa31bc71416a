package places

import (
	"math"

	"github.com/covidjournal/backend/config"
	"github.com/covidjournal/backend/internal/models"
)

// LevelPolicy maps a capacity-relative occupancy onto a discrete gauge level.
// Thresholds are percent-of-capacity bounds, exclusive upward: a percent of
// exactly LowMax is still low. The mapping is total: every occupancy value
// lands on exactly one level.
type LevelPolicy struct {
	LowMax    int64
	MediumMax int64
	HighMax   int64
}

// NewLevelPolicy builds the policy from configuration.
func NewLevelPolicy(cfg config.GaugeConfig) LevelPolicy {
	return LevelPolicy{
		LowMax:    cfg.LowMaxPercent,
		MediumMax: cfg.MediumMaxPercent,
		HighMax:   cfg.HighMaxPercent,
	}
}

// GaugePercent returns the capacity-relative occupancy, rounded and clamped
// to [0, 100]. It is nil when the place has no capacity cap.
func GaugePercent(gauge int64, maximumGauge *int64) *int64 {
	if maximumGauge == nil || *maximumGauge <= 0 {
		return nil
	}
	percent := int64(math.Round(100 * float64(gauge) / float64(*maximumGauge)))
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	return &percent
}

// Level derives the gauge level for an occupancy against an optional capacity.
// Without a capacity the ratio is undefined, so anything non-empty is unknown.
func (p LevelPolicy) Level(gauge int64, maximumGauge *int64) models.GaugeLevel {
	if gauge == 0 {
		return models.GaugeLevelEmpty
	}
	percent := GaugePercent(gauge, maximumGauge)
	if percent == nil {
		return models.GaugeLevelUnknown
	}
	switch {
	case *percent <= p.LowMax:
		return models.GaugeLevelLow
	case *percent <= p.MediumMax:
		return models.GaugeLevelMedium
	case *percent <= p.HighMax:
		return models.GaugeLevelHigh
	default:
		return models.GaugeLevelFull
	}
}
