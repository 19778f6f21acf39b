// Package search calls the donor search service over HTTP. Transport
// failures never propagate: an unreachable search service looks exactly
// like a search with no results, and the failure is logged here.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hemalink/coordinator/internal/model"
	"github.com/hemalink/coordinator/pkg/circuit"
)

// Client queries the donor search service.
type Client struct {
	url        string
	httpClient *http.Client
	breaker    *circuit.Breaker
}

// NewClient creates a search client. The timeout bounds each search
// call so a hung search service cannot stall a coordination run.
func NewClient(url string, timeout time.Duration, breaker *circuit.Breaker) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

type searchRequest struct {
	ProviderGeo model.Geo `json:"provider_geo"`
	BloodTypes  []string  `json:"blood_types"`
	RadiusKm    float64   `json:"radius_km"`
	TimePeriod  string    `json:"time_period"`
	Limit       int       `json:"limit,omitempty"`
}

type searchResponse struct {
	Donors []model.Candidate `json:"donors"`
}

// Search returns candidates around origin within radiusKm matching any
// of the given blood group tags. It may return fewer than limit, and
// returns an empty slice on any failure.
func (c *Client) Search(ctx context.Context, origin model.Geo, radiusKm float64, tags []string, limit int) []model.Candidate {
	payload := searchRequest{
		ProviderGeo: origin,
		BloodTypes:  tags,
		RadiusKm:    radiusKm,
		TimePeriod:  model.PeriodBoth,
		Limit:       limit,
	}

	var result searchResponse
	call := func() error {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode search request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build search request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("search request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("search service returned %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decode search response: %w", err)
		}
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call()
	}
	if err != nil {
		log.Printf("search: %.0fkm radius, %d tags: %v", radiusKm, len(tags), err)
		return []model.Candidate{}
	}

	return result.Donors
}
