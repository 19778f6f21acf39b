package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemalink/coordinator/internal/model"
	"github.com/hemalink/coordinator/pkg/messaging"
)

type fakePublisher struct {
	subjects []string
	events   []messaging.DonorNotificationEvent
	failFor  map[string]bool
}

func (p *fakePublisher) Publish(ctx context.Context, subject string, v interface{}) error {
	ev, ok := v.(messaging.DonorNotificationEvent)
	if ok && p.failFor[ev.DonorID] {
		return errors.New("publish failed")
	}
	p.subjects = append(p.subjects, subject)
	if ok {
		p.events = append(p.events, ev)
	}
	return nil
}

type fakeResponses struct {
	statuses map[string]string
	err      error
}

func (r *fakeResponses) SetStatus(ctx context.Context, providerID, requestID, donorID, status string) error {
	if r.err != nil {
		return r.err
	}
	if r.statuses == nil {
		r.statuses = make(map[string]string)
	}
	r.statuses[donorID] = status
	return nil
}

func TestBroadcastAllSucceed(t *testing.T) {
	pub := &fakePublisher{}
	responses := &fakeResponses{}
	d := NewDispatcher(pub, responses, nil)

	res := d.Broadcast(context.Background(), "hp1", "req1",
		[]string{"d1", "d2", "d3"}, "Blood needed", "B- request nearby", map[string]string{"urgency": "high"})

	assert.Equal(t, 3, res.SuccessCount())
	assert.Zero(t, res.FailureCount())
	assert.Equal(t, []string{"d1", "d2", "d3"}, res.Succeeded)

	require.Len(t, pub.events, 3)
	assert.True(t, strings.HasPrefix(pub.subjects[0], messaging.SubjectDonorNotifyPrefix+"."))
	assert.Equal(t, "d1", pub.events[0].DonorID)
	assert.Equal(t, "high", pub.events[0].Metadata["urgency"])

	assert.Equal(t, model.ResponseContacted, responses.statuses["d1"])
	assert.Equal(t, model.ResponseContacted, responses.statuses["d3"])
}

func TestBroadcastPartialFailure(t *testing.T) {
	pub := &fakePublisher{failFor: map[string]bool{"d2": true}}
	responses := &fakeResponses{}
	d := NewDispatcher(pub, responses, nil)

	res := d.Broadcast(context.Background(), "hp1", "req1",
		[]string{"d1", "d2", "d3"}, "t", "b", nil)

	assert.Equal(t, []string{"d1", "d3"}, res.Succeeded)
	assert.Equal(t, []string{"d2"}, res.Failed)

	// Failed recipients get no contacted record, so a later pass can
	// retry them.
	_, recorded := responses.statuses["d2"]
	assert.False(t, recorded)
}

func TestBroadcastResponseWriteFailureIsNonFatal(t *testing.T) {
	pub := &fakePublisher{}
	responses := &fakeResponses{err: errors.New("store down")}
	d := NewDispatcher(pub, responses, nil)

	res := d.Broadcast(context.Background(), "hp1", "req1", []string{"d1"}, "t", "b", nil)

	assert.Equal(t, 1, res.SuccessCount())
}

func TestBroadcastEmptyRecipientList(t *testing.T) {
	d := NewDispatcher(&fakePublisher{}, nil, nil)

	res := d.Broadcast(context.Background(), "hp1", "req1", nil, "t", "b", nil)

	assert.Zero(t, res.SuccessCount())
	assert.Zero(t, res.FailureCount())
}
