package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hemalink/coordinator/internal/model"
)

// donorMessageCap bounds a donor's message feed.
const donorMessageCap = 100

// DonorStore reads donor profiles and appends to their message feeds.
type DonorStore struct {
	rdb *redis.Client
}

// NewDonorStore creates a donor store.
func NewDonorStore(rdb *redis.Client) *DonorStore {
	return &DonorStore{rdb: rdb}
}

// GetProfile fetches a donor profile, reporting false when the donor is
// unknown.
func (s *DonorStore) GetProfile(ctx context.Context, donorID string) (model.DonorProfile, bool) {
	raw, err := s.rdb.Get(ctx, donorKey(donorID)).Result()
	if err != nil {
		return model.DonorProfile{}, false
	}

	var profile model.DonorProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return model.DonorProfile{}, false
	}
	return profile, true
}

// AppendMessage pushes a message onto the donor's feed, trimming it to
// the most recent entries.
func (s *DonorStore) AppendMessage(ctx context.Context, donorID string, msg model.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	key := donorMessagesKey(donorID)
	if err := s.rdb.LPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("append message for donor %s: %w", donorID, err)
	}
	s.rdb.LTrim(ctx, key, 0, donorMessageCap-1)
	return nil
}
