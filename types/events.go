package types

import (
	"encoding/json"
	"time"

	"github.com/resaletix/resaletix-backend/errors"
)

type EventType string

const (
	EventTypeListingIngested          EventType = "listing.ingested"
	EventTypeListingDuplicateDetected EventType = "listing.duplicate_detected"
	EventTypeListingVerified          EventType = "listing.verified"
	EventTypeListingRejected          EventType = "listing.rejected"
)

// Event is what gets published on the listing events channel.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	ListingID string          `json:"listingId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Version   int             `json:"version"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (e Event) Validate() error {
	if e.Type == "" {
		return errors.ValidationFailed("invalid event", "event type is required")
	}
	if e.Type != EventTypeListingDuplicateDetected && e.ListingID == "" {
		return errors.ValidationFailed("invalid event", "listing ID is required")
	}
	return nil
}

// DuplicatePayload describes a rejected submission: the submitted
// fingerprint and the listing it matched.
type DuplicatePayload struct {
	Fingerprint      string           `json:"fingerprint"`
	MatchedListingID string           `json:"matchedListingId,omitempty"`
	Similarity       float64          `json:"similarity,omitempty"`
	Verdict          DuplicateVerdict `json:"verdict"`
	Checkpoint       string           `json:"checkpoint"`
}

// StatusPayload accompanies verified/rejected events.
type StatusPayload struct {
	Status     ListingStatus    `json:"status"`
	IsVerified *bool            `json:"isVerified"`
	Verdict    DuplicateVerdict `json:"verdict"`
}
