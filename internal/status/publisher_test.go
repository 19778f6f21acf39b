package status

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemalink/coordinator/internal/audit"
	"github.com/hemalink/coordinator/pkg/messaging"
)

type fakeSink struct {
	subjects []string
	events   []messaging.StatusEvent
	err      error
}

func (s *fakeSink) Publish(ctx context.Context, subject string, v interface{}) error {
	if s.err != nil {
		return s.err
	}
	s.subjects = append(s.subjects, subject)
	if ev, ok := v.(messaging.StatusEvent); ok {
		s.events = append(s.events, ev)
	}
	return nil
}

type fakeRecorder struct {
	events []audit.Event
	err    error
}

func (r *fakeRecorder) Record(ctx context.Context, ev audit.Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func TestPublishFansOut(t *testing.T) {
	sink := &fakeSink{}
	rec := &fakeRecorder{}
	p := NewPublisher(sink, rec)

	p.Publish(context.Background(), "hp1", "req1", "monitoring", "2 donors willing")

	require.Len(t, sink.events, 1)
	assert.Equal(t, messaging.StatusSubject("hp1", "req1"), sink.subjects[0])
	assert.Equal(t, "2 donors willing", sink.events[0].Text)
	assert.Equal(t, "monitoring", sink.events[0].Phase)

	require.Len(t, rec.events, 1)
	assert.Equal(t, sink.events[0].ID, rec.events[0].ID)
	assert.Equal(t, "2 donors willing", rec.events[0].Message)
}

func TestPublishSinkFailureStillRecords(t *testing.T) {
	sink := &fakeSink{err: errors.New("nats down")}
	rec := &fakeRecorder{}
	p := NewPublisher(sink, rec)

	// Must not panic or propagate the sink error.
	p.Publish(context.Background(), "hp1", "req1", "searching", "searching donors")

	require.Len(t, rec.events, 1)
}

func TestPublishRecorderFailureIsSwallowed(t *testing.T) {
	sink := &fakeSink{}
	p := NewPublisher(sink, &fakeRecorder{err: errors.New("db down")})

	p.Publish(context.Background(), "hp1", "req1", "searching", "searching donors")

	assert.Len(t, sink.events, 1)
}

func TestPublishNilSinks(t *testing.T) {
	p := NewPublisher(nil, nil)

	p.Publish(context.Background(), "hp1", "req1", "searching", "text")
}
