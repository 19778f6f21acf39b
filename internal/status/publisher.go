// Package status emits human-readable run progress. Emissions are
// fire-and-forget: a failing sink is logged and never aborts the run
// that produced the update.
package status

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hemalink/coordinator/internal/audit"
	"github.com/hemalink/coordinator/pkg/messaging"
)

// Sink delivers a status event to subscribers.
type Sink interface {
	Publish(ctx context.Context, subject string, v interface{}) error
}

// Recorder durably records a status emission.
type Recorder interface {
	Record(ctx context.Context, ev audit.Event) error
}

// Publisher fans a status update out to the live channel and the audit
// log.
type Publisher struct {
	sink     Sink
	recorder Recorder
}

// NewPublisher creates a publisher. recorder may be nil when no audit
// log is configured.
func NewPublisher(sink Sink, recorder Recorder) *Publisher {
	return &Publisher{sink: sink, recorder: recorder}
}

// Publish emits one status update for a request.
func (p *Publisher) Publish(ctx context.Context, providerID, requestID, phase, text string) {
	event := messaging.StatusEvent{
		ID:         uuid.New(),
		ProviderID: providerID,
		RequestID:  requestID,
		Phase:      phase,
		Text:       text,
		Timestamp:  time.Now().UTC(),
	}

	if p.sink != nil {
		if err := p.sink.Publish(ctx, messaging.StatusSubject(providerID, requestID), event); err != nil {
			log.Printf("status: publish for %s/%s: %v", providerID, requestID, err)
		}
	}

	if p.recorder != nil {
		err := p.recorder.Record(ctx, audit.Event{
			ID:         event.ID,
			ProviderID: providerID,
			RequestID:  requestID,
			Phase:      phase,
			Message:    text,
			CreatedAt:  event.Timestamp,
		})
		if err != nil {
			log.Printf("status: record for %s/%s: %v", providerID, requestID, err)
		}
	}
}
