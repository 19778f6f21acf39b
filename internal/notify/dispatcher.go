// Package notify broadcasts donor notifications. Delivery is
// best-effort: the dispatcher reports which recipients were reached and
// which were not, and never fails a broadcast outright.
package notify

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hemalink/coordinator/internal/model"
	"github.com/hemalink/coordinator/pkg/circuit"
	"github.com/hemalink/coordinator/pkg/messaging"
)

// Result reports per-recipient broadcast outcomes.
type Result struct {
	Succeeded []string
	Failed    []string
}

// SuccessCount returns the number of recipients reached.
func (r Result) SuccessCount() int { return len(r.Succeeded) }

// FailureCount returns the number of recipients not reached.
func (r Result) FailureCount() int { return len(r.Failed) }

// ResponseWriter records that a donor was contacted.
type ResponseWriter interface {
	SetStatus(ctx context.Context, providerID, requestID, donorID, status string) error
}

// Publisher is the messaging surface the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, v interface{}) error
}

// Dispatcher publishes one notification event per recipient.
type Dispatcher struct {
	msg       Publisher
	responses ResponseWriter
	breaker   *circuit.Breaker
}

// NewDispatcher creates a dispatcher. responses may be nil if contacted
// records are maintained elsewhere.
func NewDispatcher(msg Publisher, responses ResponseWriter, breaker *circuit.Breaker) *Dispatcher {
	return &Dispatcher{msg: msg, responses: responses, breaker: breaker}
}

// Broadcast sends the notification to each donor id. Recipients that
// were reached get a contacted response record; recipients that were
// not stay unrecorded so a later pass can retry them.
func (d *Dispatcher) Broadcast(ctx context.Context, providerID, requestID string, donorIDs []string, title, body string, metadata map[string]string) Result {
	var result Result

	for _, donorID := range donorIDs {
		event := messaging.DonorNotificationEvent{
			ID:         uuid.New(),
			DonorID:    donorID,
			ProviderID: providerID,
			RequestID:  requestID,
			Title:      title,
			Body:       body,
			Metadata:   metadata,
			Timestamp:  time.Now().UTC(),
		}

		publish := func() error {
			return d.msg.Publish(ctx, messaging.DonorNotifySubject(donorID), event)
		}

		var err error
		if d.breaker != nil {
			err = d.breaker.Execute(ctx, publish)
		} else {
			err = publish()
		}
		if err != nil {
			log.Printf("notify: donor %s for request %s/%s: %v", donorID, providerID, requestID, err)
			result.Failed = append(result.Failed, donorID)
			continue
		}

		result.Succeeded = append(result.Succeeded, donorID)

		if d.responses != nil {
			if err := d.responses.SetStatus(ctx, providerID, requestID, donorID, model.ResponseContacted); err != nil {
				log.Printf("notify: mark donor %s contacted: %v", donorID, err)
			}
		}
	}

	return result
}
