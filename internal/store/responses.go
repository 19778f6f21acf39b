package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hemalink/coordinator/internal/model"
)

// ResponseStore tracks donor responses per request, one hash field per
// donor.
type ResponseStore struct {
	rdb *redis.Client
}

// NewResponseStore creates a response store.
func NewResponseStore(rdb *redis.Client) *ResponseStore {
	return &ResponseStore{rdb: rdb}
}

// Read snapshots all donor responses for a request. A request with no
// responses yields an empty map. Transport failures are logged and also
// yield an empty map; callers treat the two identically.
func (s *ResponseStore) Read(ctx context.Context, providerID, requestID string) map[string]model.ResponseRecord {
	fields, err := s.rdb.HGetAll(ctx, responsesKey(providerID, requestID)).Result()
	if err != nil {
		log.Printf("response store: read %s/%s: %v", providerID, requestID, err)
		return map[string]model.ResponseRecord{}
	}

	records := make(map[string]model.ResponseRecord, len(fields))
	for donorID, raw := range fields {
		var rec model.ResponseRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			log.Printf("response store: decode %s/%s donor %s: %v", providerID, requestID, donorID, err)
			continue
		}
		records[donorID] = rec
	}
	return records
}

// SetStatus merge-sets one donor's response status. A donor who already
// reached willing or declined never regresses to contacted or
// responded.
func (s *ResponseStore) SetStatus(ctx context.Context, providerID, requestID, donorID, status string) error {
	switch status {
	case model.ResponseContacted, model.ResponseResponded, model.ResponseWilling, model.ResponseDeclined:
	default:
		return fmt.Errorf("invalid response status %q", status)
	}

	key := responsesKey(providerID, requestID)

	rec := model.ResponseRecord{Status: status, UpdatedAt: time.Now().UTC()}
	raw, err := s.rdb.HGet(ctx, key, donorID).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("read response %s/%s donor %s: %w", providerID, requestID, donorID, err)
	}
	if err == nil {
		var existing model.ResponseRecord
		if jsonErr := json.Unmarshal([]byte(raw), &existing); jsonErr == nil {
			if terminalResponse(existing.Status) && !terminalResponse(status) {
				return nil
			}
			rec.LastMessage = existing.LastMessage
		}
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if err := s.rdb.HSet(ctx, key, donorID, encoded).Err(); err != nil {
		return fmt.Errorf("set response %s/%s donor %s: %w", providerID, requestID, donorID, err)
	}
	return nil
}

func terminalResponse(status string) bool {
	return status == model.ResponseWilling || status == model.ResponseDeclined
}
