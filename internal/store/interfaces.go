// Package store declares the persistence contracts for listings. The pgx
// implementation lives in store/sqlcadapter.
package store

import (
	"context"

	"github.com/resaletix/resaletix-backend/types"
)

// DuplicateGuard is evaluated inside the serialized create transaction.
type DuplicateGuard struct {
	// CheckFingerprint rejects the insert when a live listing has the same fingerprint.
	CheckFingerprint bool
	// Embedding, when non-empty, is matched against live listings.
	Embedding  []float32
	Threshold  float64
	MatchCount int
}

// ListingStore persists listings and answers duplicate queries.
type ListingStore interface {
	// CreateListing inserts a pending listing after re-running guard under an
	// advisory lock. A hit returns *DuplicateError and inserts nothing.
	CreateListing(ctx context.Context, listing *types.Listing, guard DuplicateGuard) (*types.Listing, error)
	// GetListing returns a NOT_FOUND *errors.AppError for unknown ids.
	GetListing(ctx context.Context, id string) (*types.Listing, error)
	ListListings(ctx context.Context, filter types.ListingFilter) ([]*types.Listing, int, error)
	// UpdateListing applies owner edits to a pending listing and returns
	// ErrConflict once it has left pending. The fingerprint is never touched.
	UpdateListing(ctx context.Context, id string, update *types.ListingUpdate) (*types.Listing, error)
	// SetVerification moves a pending listing to a terminal status. Returns
	// ErrConflict if the listing is no longer pending.
	SetVerification(ctx context.Context, id string, status types.ListingStatus, isVerified *bool) (*types.Listing, error)
	MatchEmbedding(ctx context.Context, embedding []float32, threshold float64, count int, excludeID string) ([]types.EmbeddingMatch, error)
	// FindLiveByFingerprint returns the oldest listing with fingerprint in one
	// of statuses, excluding excludeID. ErrNotFound when there is none.
	FindLiveByFingerprint(ctx context.Context, fingerprint string, statuses []types.ListingStatus, excludeID string) (*types.Listing, error)
}
