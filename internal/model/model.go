package model

import (
	"fmt"
	"time"
)

// Urgency levels for a blood request.
const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyMedium   = "medium"
	UrgencyLow      = "low"
)

// Request lifecycle status values.
const (
	RequestOpen      = "open"
	RequestFulfilled = "fulfilled"
	RequestClosed    = "closed"
)

// Response status values for a contacted donor. Once a donor reaches
// willing or declined the status never regresses to contacted.
const (
	ResponseContacted = "contacted"
	ResponseResponded = "responded"
	ResponseWilling   = "willing"
	ResponseDeclined  = "declined"
)

// Availability windows reported by the search service.
const (
	PeriodDaytime   = "daytime"
	PeriodNighttime = "nighttime"
	PeriodBoth      = "both"
)

// Request is a blood request document as stored by the provider's
// request collection.
type Request struct {
	ID         string   `json:"id"`
	ProviderID string   `json:"providerId"`
	BloodGroup []string `json:"bloodGroup"`
	Quantity   int      `json:"quantity"`
	Urgency    string   `json:"urgency"`
	RequireBy  string   `json:"requireBy,omitempty"`
	Status     string   `json:"status"`
	Title      string   `json:"title,omitempty"`
}

// Validate checks a request ingested from an external store or API call.
func (r *Request) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("request id is required")
	}
	if r.ProviderID == "" {
		return fmt.Errorf("provider id is required")
	}
	if len(r.BloodGroup) == 0 {
		return fmt.Errorf("at least one blood group is required")
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", r.Quantity)
	}
	switch r.Urgency {
	case UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow:
	default:
		return fmt.Errorf("unknown urgency %q", r.Urgency)
	}
	return nil
}

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geo anchors an entity on the map.
type Geo struct {
	Geohash  string   `json:"geohash"`
	Geopoint GeoPoint `json:"geopoint"`
}

// Candidate is one donor returned by the search service. Candidates are
// immutable snapshots; callers re-search rather than mutate.
type Candidate struct {
	UID              string  `json:"uid"`
	BloodGroup       string  `json:"bloodGroup"`
	DistanceKm       float64 `json:"distance_km"`
	TimePeriod       string  `json:"timePeriod"`
	TotalDonations   int     `json:"totalDonations"`
	LastDonationDate string  `json:"lastDonationDate,omitempty"`
}

// ResponseRecord tracks one donor's response to a request.
type ResponseRecord struct {
	Status      string    `json:"status"`
	LastMessage string    `json:"lastMessage,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Responded reports whether the donor has reacted to the notification in
// any way beyond being contacted.
func (r ResponseRecord) Responded() bool {
	switch r.Status {
	case ResponseResponded, ResponseWilling, ResponseDeclined:
		return true
	}
	return false
}

// DonorProfile is a donor document from the user store.
type DonorProfile struct {
	UID              string `json:"uid"`
	FirstName        string `json:"firstName,omitempty"`
	BloodType        string `json:"bloodType,omitempty"`
	TotalDonations   int    `json:"totalDonations"`
	LastDonationDate string `json:"lastDonationDate,omitempty"`
	City             string `json:"city,omitempty"`
}

// Message is one entry in a donor's message feed.
type Message struct {
	Content   string    `json:"content"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}
