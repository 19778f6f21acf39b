// Package store implements the platform's document stores on Redis.
// Documents are JSON blobs at hierarchical keys mirroring the
// provider/request/response layout of the upstream data model.
package store

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewClient creates a Redis client from a URL such as
// redis://localhost:6379.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
