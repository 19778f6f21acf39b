package statusfeed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemalink/coordinator/pkg/messaging"
)

type fakeSource struct {
	subject string
	handler func(msg *nats.Msg)
	stopped bool
}

func (f *fakeSource) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	f.subject = subject
	f.handler = handler
	return nil
}

func (f *fakeSource) Unsubscribe(string) error {
	f.stopped = true
	return nil
}

func (f *fakeSource) emit(t *testing.T, event messaging.StatusEvent) {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	f.handler(&nats.Msg{Data: data})
}

func statusEvent(providerID, requestID, text string) messaging.StatusEvent {
	return messaging.StatusEvent{
		ID:         uuid.New(),
		ProviderID: providerID,
		RequestID:  requestID,
		Phase:      "monitoring",
		Text:       text,
		Timestamp:  time.Now().UTC(),
	}
}

func TestFeedRoutesEventsByRun(t *testing.T) {
	source := &fakeSource{}
	feed := NewFeed(source)
	require.NoError(t, feed.Start())
	assert.Equal(t, messaging.StatusWildcard(), source.subject)

	subA := feed.Subscribe("hp1", "req1")
	subB := feed.Subscribe("hp2", "req2")

	source.emit(t, statusEvent("hp1", "req1", "searching"))

	select {
	case event := <-subA.Updates:
		assert.Equal(t, "searching", event.Text)
	case <-time.After(time.Second):
		t.Fatal("subscriber A received nothing")
	}

	select {
	case <-subB.Updates:
		t.Fatal("subscriber B received an event for another run")
	default:
	}
}

func TestFeedDropsEventsForSlowSubscribers(t *testing.T) {
	source := &fakeSource{}
	feed := NewFeed(source)
	require.NoError(t, feed.Start())

	sub := feed.Subscribe("hp1", "req1")
	for i := 0; i < subscriberBuffer+10; i++ {
		source.emit(t, statusEvent("hp1", "req1", "tick"))
	}

	assert.Len(t, sub.Updates, subscriberBuffer)
}

func TestFeedUnsubscribeEndsStream(t *testing.T) {
	source := &fakeSource{}
	feed := NewFeed(source)
	require.NoError(t, feed.Start())

	sub := feed.Subscribe("hp1", "req1")
	require.Equal(t, 1, feed.SubscriberCount("hp1", "req1"))

	feed.Unsubscribe(sub.ID)
	assert.Equal(t, 0, feed.SubscriberCount("hp1", "req1"))

	select {
	case <-sub.done:
	default:
		t.Fatal("done channel not closed on unsubscribe")
	}
}

func TestFeedIgnoresMalformedPayloads(t *testing.T) {
	source := &fakeSource{}
	feed := NewFeed(source)
	require.NoError(t, feed.Start())

	sub := feed.Subscribe("hp1", "req1")
	source.handler(&nats.Msg{Data: []byte("not json")})

	assert.Empty(t, sub.Updates)
}

func TestFeedStopEndsAllStreams(t *testing.T) {
	source := &fakeSource{}
	feed := NewFeed(source)
	require.NoError(t, feed.Start())

	sub := feed.Subscribe("hp1", "req1")
	feed.Stop()

	assert.True(t, source.stopped)
	assert.Equal(t, 0, feed.SubscriberCount("hp1", "req1"))
	select {
	case <-sub.done:
	default:
		t.Fatal("done channel not closed on stop")
	}
}
