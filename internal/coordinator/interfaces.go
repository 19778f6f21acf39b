package coordinator

import (
	"context"

	"github.com/hemalink/coordinator/internal/model"
	"github.com/hemalink/coordinator/internal/notify"
)

// Collaborator interfaces. Concrete implementations live in
// internal/store, internal/search, internal/notify and internal/status;
// tests substitute fakes. Collaborators absorb their own transport
// errors where the contract says so.

// LocationStore reads a provider's geo anchor. false means no anchor is
// available, whether the provider is unknown or the store unreachable.
type LocationStore interface {
	GetProviderLocation(ctx context.Context, providerID string) (model.Geo, bool)
}

// SearchService finds candidates around an origin. It never fails:
// "no candidates" and "search unreachable" are both an empty slice.
type SearchService interface {
	Search(ctx context.Context, origin model.Geo, radiusKm float64, tags []string, limit int) []model.Candidate
}

// Ranker orders a candidate set by suitability, most suitable first.
// Capped bounds an id list to the configured formatting limit.
type Ranker interface {
	Rank(candidates []model.Candidate, urgency string, requestedTags []string) []string
	Capped(ids []string) []string
}

// ProfileStore reads donor profiles, used to fill in candidate fields
// the search service omitted. false means no profile is available.
type ProfileStore interface {
	GetProfile(ctx context.Context, donorID string) (model.DonorProfile, bool)
}

// Notifier broadcasts to a set of donors and reports per-recipient
// outcomes.
type Notifier interface {
	Broadcast(ctx context.Context, providerID, requestID string, donorIDs []string, title, body string, metadata map[string]string) notify.Result
}

// RequestStore reads and partially updates request documents.
type RequestStore interface {
	Get(ctx context.Context, providerID, requestID string) (model.Request, error)
	Update(ctx context.Context, providerID, requestID string, fields map[string]interface{}) error
}

// ResponseStore snapshots donor responses for a request.
type ResponseStore interface {
	Read(ctx context.Context, providerID, requestID string) map[string]model.ResponseRecord
}

// StatusChannel emits human-readable progress. Emission failures never
// surface here.
type StatusChannel interface {
	Publish(ctx context.Context, providerID, requestID, phase, text string)
}

// DonorMessenger delivers a direct message to a donor, used by the
// intervention path.
type DonorMessenger interface {
	AppendMessage(ctx context.Context, donorID string, msg model.Message) error
}
