package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hemalink/coordinator/internal/model"
)

// RequestStore reads and updates blood request documents.
type RequestStore struct {
	rdb *redis.Client
}

// NewRequestStore creates a request store.
func NewRequestStore(rdb *redis.Client) *RequestStore {
	return &RequestStore{rdb: rdb}
}

// Get fetches one request document.
func (s *RequestStore) Get(ctx context.Context, providerID, requestID string) (model.Request, error) {
	raw, err := s.rdb.Get(ctx, requestKey(providerID, requestID)).Result()
	if err == redis.Nil {
		return model.Request{}, fmt.Errorf("request %s/%s not found", providerID, requestID)
	}
	if err != nil {
		return model.Request{}, fmt.Errorf("get request %s/%s: %w", providerID, requestID, err)
	}

	var req model.Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return model.Request{}, fmt.Errorf("decode request %s/%s: %w", providerID, requestID, err)
	}
	return req, nil
}

// Put stores a full request document.
func (s *RequestStore) Put(ctx context.Context, req model.Request) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if err := s.rdb.Set(ctx, requestKey(req.ProviderID, req.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("put request %s/%s: %w", req.ProviderID, req.ID, err)
	}
	return nil
}

// Update merges fields into an existing request document. It is a
// partial merge, never a full replace: unknown fields already present
// in the document survive the update.
func (s *RequestStore) Update(ctx context.Context, providerID, requestID string, fields map[string]interface{}) error {
	key := requestKey(providerID, requestID)

	raw, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return fmt.Errorf("request %s/%s not found", providerID, requestID)
	}
	if err != nil {
		return fmt.Errorf("get request %s/%s: %w", providerID, requestID, err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("decode request %s/%s: %w", providerID, requestID, err)
	}
	for k, v := range fields {
		doc[k] = v
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode request %s/%s: %w", providerID, requestID, err)
	}
	if err := s.rdb.Set(ctx, key, merged, 0).Err(); err != nil {
		return fmt.Errorf("update request %s/%s: %w", providerID, requestID, err)
	}
	return nil
}
