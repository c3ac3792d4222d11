package store

import (
	"errors"
	"fmt"

	"github.com/resaletix/resaletix-backend/types"
)

var (
	ErrNotFound = errors.New("resource not found")

	// ErrConflict means a conditional update lost, e.g. a listing that was no
	// longer pending when a confirmation tried to transition it.
	ErrConflict = errors.New("conflict")
)

// DuplicateError is returned by CreateListing when the duplicate guard finds a
// live listing for the same ticket.
type DuplicateError struct {
	Verdict          types.DuplicateVerdict
	MatchedListingID string
	Similarity       float64
}

func (e *DuplicateError) Error() string {
	if e.Verdict == types.VerdictDuplicateSimilar {
		return fmt.Sprintf("%s: listing %s (similarity %.3f)", e.Verdict, e.MatchedListingID, e.Similarity)
	}
	if e.MatchedListingID == "" {
		return string(e.Verdict)
	}
	return fmt.Sprintf("%s: listing %s", e.Verdict, e.MatchedListingID)
}

// AsDuplicate unwraps a DuplicateError.
func AsDuplicate(err error) (*DuplicateError, bool) {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup, true
	}
	return nil, false
}
