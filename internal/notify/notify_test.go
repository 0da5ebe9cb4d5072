package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	fail   bool
	block  chan struct{}
	closed bool
}

func (r *recordingNotifier) Notify(_ context.Context, e Event) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.fail {
		return errors.New("collaborator down")
	}
	return nil
}

func (r *recordingNotifier) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingNotifier) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, 8)
	d.Start()

	d.Publish(Event{Name: EventCartItemAdded, UserID: "u1"})
	d.Publish(Event{Name: EventCartItemRemoved, UserID: "u1"})

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, []string{EventCartItemAdded, EventCartItemRemoved}, rec.names())
	assert.True(t, rec.closed)
	assert.False(t, rec.events[0].Timestamp.IsZero())
}

func TestDispatcher_DeliveryFailureIsSwallowed(t *testing.T) {
	rec := &recordingNotifier{fail: true}
	d := NewDispatcher(rec, 8)
	d.Start()

	assert.NotPanics(t, func() { d.Publish(Event{Name: EventCartItemAdded}) })
	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, rec.names(), 1)
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	rec := &recordingNotifier{}
	// not started, so nothing drains the queue
	d := NewDispatcher(rec, 1)

	d.Publish(Event{Name: "first"})
	d.Publish(Event{Name: "second"})

	d.Start()
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, []string{"first"}, rec.names())
}

func TestDispatcher_PublishAfterCloseDoesNotPanic(t *testing.T) {
	d := NewDispatcher(&recordingNotifier{}, 1)
	d.Start()
	require.NoError(t, d.Close(context.Background()))

	assert.NotPanics(t, func() { d.Publish(Event{Name: "late"}) })
}

func TestDispatcher_CloseRespectsContext(t *testing.T) {
	rec := &recordingNotifier{block: make(chan struct{})}
	d := NewDispatcher(rec, 1)
	d.Start()
	d.Publish(Event{Name: "stuck"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	close(rec.block)
}

func TestWebhookNotifier_PostsJSON(t *testing.T) {
	got := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var e Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		got <- e
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)
	err := n.Notify(context.Background(), Event{Name: EventCartItemAdded, UserID: "u1", ProductID: "p1", Size: 9, Quantity: 2})
	require.NoError(t, err)

	e := <-got
	assert.Equal(t, EventCartItemAdded, e.Name)
	assert.Equal(t, 2, e.Quantity)
	assert.Equal(t, 9, e.Size)
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, time.Second).Notify(context.Background(), Event{Name: "x"})
	assert.Error(t, err)
}

func TestToKafkaMessage_KeyedByUser(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg, err := toKafkaMessage(Event{Name: EventOrderConfirmed, UserID: "u42", OrderID: "o1", Timestamp: ts})
	require.NoError(t, err)

	assert.Equal(t, "u42", string(msg.Key))
	assert.Equal(t, ts, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, EventOrderConfirmed, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "o1", decoded.OrderID)
}
