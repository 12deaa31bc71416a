package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	placeIDs []uuid.UUID
	events   []string
}

func (f *fakePublisher) PublishPlaceEvent(placeID uuid.UUID, event string, _ []byte) error {
	f.placeIDs = append(f.placeIDs, placeID)
	f.events = append(f.events, event)
	return nil
}

type fakeSubscriber struct {
	subscribed []uuid.UUID
	cancelled  int
}

func (f *fakeSubscriber) SubscribePlace(placeID uuid.UUID, _ func(event string, payload []byte)) (func(), error) {
	f.subscribed = append(f.subscribed, placeID)
	return func() { f.cancelled++ }, nil
}

func testClient(placeID uuid.UUID) *Client {
	return &Client{
		ID:      uuid.New().String(),
		PlaceID: placeID,
		send:    make(chan WSMessage, 8),
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	pub := &fakePublisher{}
	sub := &fakeSubscriber{}
	hub := NewHub(zap.NewNop(), pub, sub)
	placeID := uuid.New()

	a := testClient(placeID)
	b := testClient(placeID)
	hub.Register(a)
	hub.Register(b)

	assert.Equal(t, 2, hub.WatcherCount(placeID))
	assert.Equal(t, []uuid.UUID{placeID}, sub.subscribed, "one Redis subscription per place")

	hub.Unregister(a)
	assert.Equal(t, 1, hub.WatcherCount(placeID))
	assert.Equal(t, 0, sub.cancelled, "subscription stays while watchers remain")

	hub.Unregister(b)
	assert.Equal(t, 0, hub.WatcherCount(placeID))
	assert.Equal(t, 1, sub.cancelled, "last watcher tears the subscription down")
}

func TestBroadcastToPlaceAndPublish(t *testing.T) {
	pub := &fakePublisher{}
	hub := NewHub(zap.NewNop(), pub, &fakeSubscriber{})
	placeID := uuid.New()
	other := uuid.New()

	watcher := testClient(placeID)
	bystander := testClient(other)
	hub.Register(watcher)
	hub.Register(bystander)

	hub.BroadcastToPlaceAndPublish(placeID, "gauge", map[string]int{"gauge": 4})

	select {
	case msg := <-watcher.send:
		assert.Equal(t, "gauge", msg.Event)
		var payload map[string]int
		require.NoError(t, json.Unmarshal(msg.Data, &payload))
		assert.Equal(t, 4, payload["gauge"])
	default:
		t.Fatal("watcher received nothing")
	}

	select {
	case <-bystander.send:
		t.Fatal("broadcast leaked to another place's watcher")
	default:
	}

	assert.Equal(t, []uuid.UUID{placeID}, pub.placeIDs)
	assert.Equal(t, []string{"gauge"}, pub.events)
}

func TestBroadcastSkipsFullBuffers(t *testing.T) {
	hub := NewHub(zap.NewNop(), &fakePublisher{}, &fakeSubscriber{})
	placeID := uuid.New()

	slow := &Client{ID: "slow", PlaceID: placeID, send: make(chan WSMessage)}
	hub.Register(slow)

	// An unbuffered channel with no reader must not block the broadcast.
	done := make(chan struct{})
	go func() {
		hub.BroadcastToPlace(placeID, "gauge", map[string]int{"gauge": 1})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client buffer")
	}
}
