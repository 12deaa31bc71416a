package places

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/covidjournal/backend/internal/models"
)

type fakeGaugeStore struct {
	mu        sync.Mutex
	snapshots []GaugeSnapshot
	err       error
	calls     int
}

func (f *fakeGaugeStore) RefreshAllGauges(context.Context, time.Time) ([]GaugeSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snapshots, f.err
}

func TestRefresherBroadcastsSnapshots(t *testing.T) {
	placeID := uuid.New()
	store := &fakeGaugeStore{snapshots: []GaugeSnapshot{
		{PlaceID: placeID, Gauge: 3, Level: models.GaugeLevelLow},
	}}

	received := make(chan GaugeSnapshot, 1)
	r := NewRefresher(store, func(id uuid.UUID, s GaugeSnapshot) {
		assert.Equal(t, placeID, id)
		received <- s
	}, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	select {
	case s := <-received:
		assert.Equal(t, int64(3), s.Gauge)
		assert.Equal(t, models.GaugeLevelLow, s.Level)
	case <-time.After(time.Second):
		t.Fatal("no snapshot broadcast after startup refresh")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop")
	}
}

func TestRefresherSurvivesStoreErrors(t *testing.T) {
	store := &fakeGaugeStore{err: errors.New("db down")}
	r := NewRefresher(store, func(uuid.UUID, GaugeSnapshot) {
		t.Fatal("must not broadcast on refresh failure")
	}, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.GreaterOrEqual(t, store.calls, 2, "the loop keeps ticking after errors")
}
