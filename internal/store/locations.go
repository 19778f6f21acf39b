package store

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/hemalink/coordinator/internal/model"
)

// LocationStore reads provider geo anchors.
type LocationStore struct {
	rdb *redis.Client
}

// NewLocationStore creates a location store.
func NewLocationStore(rdb *redis.Client) *LocationStore {
	return &LocationStore{rdb: rdb}
}

// providerDoc is the subset of the provider document the engine needs.
type providerDoc struct {
	Geo *model.Geo `json:"geo"`
}

// GetProviderLocation returns the provider's geo anchor, or false when
// the provider is unknown, has no anchor, or the store is unreachable.
func (s *LocationStore) GetProviderLocation(ctx context.Context, providerID string) (model.Geo, bool) {
	raw, err := s.rdb.Get(ctx, providerKey(providerID)).Result()
	if err == redis.Nil {
		return model.Geo{}, false
	}
	if err != nil {
		log.Printf("location store: get provider %s: %v", providerID, err)
		return model.Geo{}, false
	}

	var doc providerDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		log.Printf("location store: decode provider %s: %v", providerID, err)
		return model.Geo{}, false
	}
	if doc.Geo == nil {
		return model.Geo{}, false
	}
	return *doc.Geo, true
}
