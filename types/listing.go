package types

import (
	"time"

	"github.com/resaletix/resaletix-backend/internal/ticket"
	"github.com/shopspring/decimal"
)

type ListingStatus string

const (
	ListingStatusPending  ListingStatus = "pending"
	ListingStatusActive   ListingStatus = "active"
	ListingStatusRejected ListingStatus = "rejected"
)

func (s ListingStatus) IsValid() bool {
	switch s {
	case ListingStatusPending, ListingStatusActive, ListingStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s ListingStatus) IsTerminal() bool {
	return s == ListingStatusActive || s == ListingStatusRejected
}

// CanTransitionTo encodes pending -> active | rejected.
func (s ListingStatus) CanTransitionTo(next ListingStatus) bool {
	return s == ListingStatusPending && next.IsTerminal()
}

// DuplicateVerdict is derived per check and never stored.
type DuplicateVerdict string

const (
	VerdictUnique           DuplicateVerdict = "unique"
	VerdictDuplicateExact   DuplicateVerdict = "duplicate-exact"
	VerdictDuplicateSimilar DuplicateVerdict = "duplicate-similar"
)

func (v DuplicateVerdict) IsDuplicate() bool {
	return v == VerdictDuplicateExact || v == VerdictDuplicateSimilar
}

// Listing is a ticket offered for resale. IsVerified is tri-state: false while
// pending, true once confirmed unique, nil after a duplicate rejection.
type Listing struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"ownerId"`
	OwnerEmail string          `json:"-"`
	EventName  string          `json:"eventName"`
	Venue      string          `json:"venue"`
	EventDate  string          `json:"eventDate"`
	Section    string          `json:"section"`
	Row        string          `json:"row"`
	Seat       string          `json:"seat"`
	Category   string          `json:"category"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	// Fingerprint is computed once from the OCR fields and never recomputed.
	Fingerprint string    `json:"fingerprint"`
	PHash       *string   `json:"phash,omitempty"`
	Embedding   []float32 `json:"-"`
	// ExactChecked is set when the fingerprint took part in the exact
	// duplicate check at upload; blank extractions never do.
	ExactChecked bool          `json:"-"`
	FilePath     string        `json:"-"`
	MimeType     string        `json:"mimeType"`
	FileSize     int64         `json:"fileSize"`
	IsScanned    bool          `json:"isScanned"`
	Status       ListingStatus `json:"status"`
	IsVerified   *bool         `json:"isVerified"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Fields returns the ticket fields currently stored on the listing.
func (l *Listing) Fields() ticket.Fields {
	price := ""
	if !l.Price.IsZero() {
		price = l.Price.StringFixed(2)
	}
	return ticket.Fields{
		EventName: l.EventName,
		Venue:     l.Venue,
		EventDate: l.EventDate,
		Section:   l.Section,
		Row:       l.Row,
		Seat:      l.Seat,
		Price:     price,
		Category:  l.Category,
	}
}

// ListingUpdate carries owner edits. Nil fields are left unchanged.
type ListingUpdate struct {
	EventName *string          `json:"eventName,omitempty" binding:"omitempty,max=255"`
	Venue     *string          `json:"venue,omitempty" binding:"omitempty,max=255"`
	EventDate *string          `json:"eventDate,omitempty" binding:"omitempty,max=64"`
	Section   *string          `json:"section,omitempty" binding:"omitempty,max=64"`
	Row       *string          `json:"row,omitempty" binding:"omitempty,max=32"`
	Seat      *string          `json:"seat,omitempty" binding:"omitempty,max=32"`
	Category  *string          `json:"category,omitempty" binding:"omitempty,oneof=VIP 'General Admission' Seated General"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u *ListingUpdate) IsEmpty() bool {
	return u.EventName == nil && u.Venue == nil && u.EventDate == nil && u.Section == nil &&
		u.Row == nil && u.Seat == nil && u.Category == nil && u.Price == nil
}

// ListingFilter selects listings for the list endpoints.
type ListingFilter struct {
	Status  *ListingStatus
	OwnerID string
	Limit   int
	Offset  int
}

// EmbeddingMatch is one row returned by the match_embedding function.
type EmbeddingMatch struct {
	ListingID  string  `json:"listingId"`
	Similarity float64 `json:"similarity"`
}

// DuplicateCheck is the dedup service's view of an uploaded file.
type DuplicateCheck struct {
	Embedding   []float32 `json:"embedding"`
	PHash       *string   `json:"phash"`
	IsDuplicate bool      `json:"is_duplicate"`
}

// TextExtraction is the OCR result for an uploaded file.
type TextExtraction struct {
	Text      string `json:"text"`
	IsScanned bool   `json:"is_scanned"`
}

// TicketUpload is the input to ingestion.
type TicketUpload struct {
	OwnerID    string
	OwnerEmail string
	FileName   string
	Size       int64
	// Overrides are seller edits applied on top of the extracted fields.
	Overrides ticket.Fields
}

// IngestResult is returned after a successful Checkpoint A.
type IngestResult struct {
	Listing               *Listing         `json:"listing"`
	ParsedFields          ticket.Fields    `json:"parsedFields"`
	Fingerprint           string           `json:"fingerprint"`
	Embedding             []float32        `json:"embedding"`
	PHash                 *string          `json:"phash"`
	Verdict               DuplicateVerdict `json:"verdict"`
	DuplicateCheckSkipped bool             `json:"duplicateCheckSkipped"`
}

// ConfirmResult is returned after Checkpoint B.
type ConfirmResult struct {
	Listing *Listing         `json:"listing"`
	Verdict DuplicateVerdict `json:"verdict"`
	Reason  string           `json:"reason,omitempty"`
}

// ParsePreview is the stateless extraction result for raw text.
type ParsePreview struct {
	ParsedFields ticket.Fields  `json:"parsedFields"`
	Fingerprint  string         `json:"fingerprint"`
	Matches      []ticket.Match `json:"matches,omitempty"`
}
