package places

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type gaugeRefresher interface {
	RefreshAllGauges(ctx context.Context, now time.Time) ([]GaugeSnapshot, error)
}

// GaugeBroadcast receives refreshed gauges for live distribution (e.g. the
// websocket hub). A nil broadcast disables the feed.
type GaugeBroadcast func(placeID uuid.UUID, snapshot GaugeSnapshot)

// Refresher periodically recomputes all gauges and pushes the results to the
// live feed.
type Refresher struct {
	store    gaugeRefresher
	feed     GaugeBroadcast
	interval time.Duration
	logger   *zap.Logger
}

// NewRefresher creates the periodic gauge refresher.
func NewRefresher(store gaugeRefresher, feed GaugeBroadcast, interval time.Duration, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{store: store, feed: feed, interval: interval, logger: logger}
}

// Run refreshes gauges every interval until ctx is done. One refresh runs
// immediately so gauges are fresh right after startup.
func (r *Refresher) Run(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("gauge refresher stopping")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	now := time.Now().UTC()
	snapshots, err := r.store.RefreshAllGauges(ctx, now)
	if err != nil {
		r.logger.Warn("gauge refresh failed", zap.Error(err))
		return
	}
	if r.feed != nil {
		for _, s := range snapshots {
			r.feed(s.PlaceID, s)
		}
	}
	r.logger.Debug("gauges refreshed", zap.Int("places", len(snapshots)), zap.Time("at", now))
}
