package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covidjournal/backend/pkg/queue"
)

type fakeMarker struct {
	placeIDs   []uuid.UUID
	start, end time.Time
	marked     int64
	err        error
}

func (f *fakeMarker) MarkPotentialInfections(_ context.Context, placeIDs []uuid.UUID, start, end time.Time) (int64, error) {
	f.placeIDs = placeIDs
	f.start = start
	f.end = end
	return f.marked, f.err
}

type fakeJobQueue struct {
	retried []*queue.Job
}

func (f *fakeJobQueue) Dequeue(context.Context) (*queue.Job, string, error) {
	return nil, "", nil
}

func (f *fakeJobQueue) Retry(_ context.Context, job *queue.Job) error {
	f.retried = append(f.retried, job)
	return nil
}

func markingJob(t *testing.T, payload queue.InfectionMarkingPayload) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{
		ID:      uuid.New().String(),
		Type:    queue.JobTypeInfectionMarking,
		Payload: raw,
	}
}

func TestProcessMarksOverlappingCheckins(t *testing.T) {
	marker := &fakeMarker{marked: 12}
	p := NewInfectionProcessor(marker, &fakeJobQueue{}, nil)

	payload := queue.InfectionMarkingPayload{
		InfectionID:    uuid.New(),
		PlacesIDs:      []uuid.UUID{uuid.New(), uuid.New()},
		StartTimestamp: time.Date(2021, 3, 14, 9, 0, 0, 0, time.UTC),
		EndTimestamp:   time.Date(2021, 3, 14, 18, 0, 0, 0, time.UTC),
	}
	err := p.Process(context.Background(), markingJob(t, payload))
	require.NoError(t, err)

	assert.Equal(t, payload.PlacesIDs, marker.placeIDs)
	assert.True(t, marker.start.Equal(payload.StartTimestamp))
	assert.True(t, marker.end.Equal(payload.EndTimestamp))
}

func TestProcessRejectsUnknownJobType(t *testing.T) {
	p := NewInfectionProcessor(&fakeMarker{}, &fakeJobQueue{}, nil)
	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "mystery"})
	assert.Error(t, err)
}

func TestProcessRejectsMalformedPayload(t *testing.T) {
	p := NewInfectionProcessor(&fakeMarker{}, &fakeJobQueue{}, nil)
	err := p.Process(context.Background(), &queue.Job{
		ID:      "x",
		Type:    queue.JobTypeInfectionMarking,
		Payload: json.RawMessage(`{"places_ids": "not-a-list"`),
	})
	assert.Error(t, err)
}

// blockingQueue blocks in Dequeue until the context is cancelled, like BLPop.
type blockingQueue struct{}

func (blockingQueue) Dequeue(ctx context.Context) (*queue.Job, string, error) {
	<-ctx.Done()
	return nil, "", ctx.Err()
}

func (blockingQueue) Retry(context.Context, *queue.Job) error { return nil }

func TestRunStopsPromptlyOnCancel(t *testing.T) {
	p := NewInfectionProcessor(&fakeMarker{}, blockingQueue{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancellation; it must not sit out a retry backoff first")
	}
}

func TestProcessRejectsEmptyPlaces(t *testing.T) {
	marker := &fakeMarker{}
	p := NewInfectionProcessor(marker, &fakeJobQueue{}, nil)

	payload := queue.InfectionMarkingPayload{InfectionID: uuid.New()}
	err := p.Process(context.Background(), markingJob(t, payload))
	assert.Error(t, err)
	assert.Nil(t, marker.placeIDs, "the store must not be touched")
}
