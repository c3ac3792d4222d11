// Package service implements ticket ingestion, confirmation and listing
// management. Duplicate detection runs twice: when the file is uploaded and
// again when the seller confirms the listing for publication.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	apperrors "github.com/resaletix/resaletix-backend/errors"
	"github.com/resaletix/resaletix-backend/internal/dedup"
	"github.com/resaletix/resaletix-backend/internal/events"
	"github.com/resaletix/resaletix-backend/internal/filestore"
	"github.com/resaletix/resaletix-backend/internal/store"
	"github.com/resaletix/resaletix-backend/internal/ticket"
	"github.com/resaletix/resaletix-backend/logger"
	"github.com/resaletix/resaletix-backend/pkg/valueobjects"
	"github.com/resaletix/resaletix-backend/types"
	"go.uber.org/zap"
)

const (
	checkpointIngest  = "ingest"
	checkpointConfirm = "confirm"

	DefaultMaxUploadBytes int64 = 10 << 20
)

var allowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/heic":      true,
	"image/heif":      true,
}

type DedupClient interface {
	CheckDuplicate(ctx context.Context, f dedup.File, excludeListingID string) (*types.DuplicateCheck, error)
	ExtractText(ctx context.Context, f dedup.File) (*types.TextExtraction, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event types.Event) error
}

// Notifier tells the seller how confirmation went.
type Notifier interface {
	SendListingOutcome(ctx context.Context, listing *types.Listing, verdict types.DuplicateVerdict, reason string) error
}

type Config struct {
	SimilarityThreshold   float64
	MatchCount            int
	PDFEmbeddingCheck     bool
	ExactFingerprintCheck bool
	MaxUploadBytes        int64
	Currency              valueobjects.Currency
}

func DefaultConfig() Config {
	return Config{
		SimilarityThreshold:   0.5,
		MatchCount:            1,
		ExactFingerprintCheck: true,
		MaxUploadBytes:        DefaultMaxUploadBytes,
		Currency:              valueobjects.DefaultCurrency,
	}
}

// Deps are the collaborators of ListingService. Events and Notifier are optional.
type Deps struct {
	Store     store.ListingStore
	Files     filestore.FileStorage
	Dedup     DedupClient
	Extractor *ticket.Extractor
	Events    EventPublisher
	Notifier  Notifier
	Registry  prometheus.Registerer
}

type ListingService struct {
	store     store.ListingStore
	files     filestore.FileStorage
	dedup     DedupClient
	extractor *ticket.Extractor
	events    EventPublisher
	notifier  Notifier
	config    Config
	metrics   *Metrics
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewListingService(deps Deps, cfg Config) *ListingService {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.MatchCount <= 0 {
		cfg.MatchCount = 1
	}
	if cfg.Currency == "" {
		cfg.Currency = valueobjects.DefaultCurrency
	}
	extractor := deps.Extractor
	if extractor == nil {
		extractor = ticket.NewExtractor(nil)
	}
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &ListingService{
		store:     deps.Store,
		files:     deps.Files,
		dedup:     deps.Dedup,
		extractor: extractor,
		events:    deps.Events,
		notifier:  deps.Notifier,
		config:    cfg,
		metrics:   NewMetrics(reg),
		log:       logger.GetLogger().Named("listing"),
		now:       time.Now,
	}
}

// IngestTicket is Checkpoint A: it stores the upload as a pending listing
// unless it duplicates a live one. Dedup service failures degrade to an
// unchecked listing instead of failing the upload.
func (s *ListingService) IngestTicket(ctx context.Context, upload types.TicketUpload, file io.Reader) (*types.IngestResult, error) {
	start := s.now()
	defer func() { s.metrics.ingestLatency.Observe(time.Since(start).Seconds()) }()

	if err := validateOverrides(upload.Overrides); err != nil {
		return nil, err
	}

	data, mimeType, err := s.readUpload(file)
	if err != nil {
		return nil, err
	}
	f := dedup.File{Name: upload.FileName, MimeType: mimeType, Data: data}
	isPDF := mimeType == "application/pdf"

	result := &types.IngestResult{Verdict: types.VerdictUnique}

	check, err := s.dedup.CheckDuplicate(ctx, f, "")
	if err != nil {
		s.log.Warnw("Duplicate check failed, continuing without it",
			"ownerID", upload.OwnerID, "mimeType", mimeType, "error", err)
		s.metrics.dedupSkipped.Inc()
		result.DuplicateCheckSkipped = true
	} else {
		result.Embedding = check.Embedding
		result.PHash = check.PHash
	}

	embeddingChecked := len(result.Embedding) > 0 && (!isPDF || s.config.PDFEmbeddingCheck)
	if embeddingChecked {
		matches, err := s.store.MatchEmbedding(ctx, result.Embedding, s.config.SimilarityThreshold, s.config.MatchCount, "")
		if err != nil {
			return nil, apperrors.NewDatabaseError(err)
		}
		if len(matches) > 0 {
			return nil, s.rejectUpload(ctx, upload.OwnerID, "", &store.DuplicateError{
				Verdict:          types.VerdictDuplicateSimilar,
				MatchedListingID: matches[0].ListingID,
				Similarity:       matches[0].Similarity,
			})
		}
	}

	text, isScanned := "", false
	extraction, err := s.dedup.ExtractText(ctx, f)
	if err != nil {
		s.log.Warnw("Text extraction failed, continuing with empty text",
			"ownerID", upload.OwnerID, "mimeType", mimeType, "error", err)
		s.metrics.extractFailed.Inc()
	} else {
		text, isScanned = extraction.Text, extraction.IsScanned
	}

	parsed := s.extractor.Extract(text)
	fingerprint := ticket.FingerprintFields(parsed)
	result.ParsedFields = parsed
	result.Fingerprint = fingerprint

	fields := parsed.Merge(upload.Overrides)
	price, err := valueobjects.ParsePrice(fields.Price, s.config.Currency)
	if err != nil {
		s.log.Debugw("Unparseable price, storing zero", "price", fields.Price)
		price, _ = valueobjects.ParsePrice("", s.config.Currency)
	}

	key := filestore.TicketKey(upload.OwnerID, upload.FileName, s.now())
	if err := s.files.Save(ctx, key, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
		_ = s.files.Delete(ctx, key)
		return nil, apperrors.Wrap(err, apperrors.ServerError, "failed to store ticket file")
	}

	listing := &types.Listing{
		OwnerID:     upload.OwnerID,
		OwnerEmail:  upload.OwnerEmail,
		EventName:   fields.EventName,
		Venue:       fields.Venue,
		EventDate:   fields.EventDate,
		Section:     fields.Section,
		Row:         fields.Row,
		Seat:        fields.Seat,
		Category:    fields.Category,
		Price:       price.Amount(),
		Currency:    string(price.Currency()),
		Fingerprint: fingerprint,
		PHash:       result.PHash,
		Embedding:   result.Embedding,
		FilePath:    key,
		MimeType:    mimeType,
		FileSize:    int64(len(data)),
		IsScanned:   isScanned,
		Status:      types.ListingStatusPending,
	}
	guard := store.DuplicateGuard{
		CheckFingerprint: s.config.ExactFingerprintCheck && !parsed.IsBlank(),
	}
	if embeddingChecked {
		guard.Embedding = result.Embedding
		guard.Threshold = s.config.SimilarityThreshold
		guard.MatchCount = s.config.MatchCount
	}

	created, err := s.store.CreateListing(ctx, listing, guard)
	if err != nil {
		if delErr := s.files.Delete(ctx, key); delErr != nil {
			s.log.Warnw("Failed to remove stored file after rejected insert", "key", key, "error", delErr)
		}
		if dup, ok := store.AsDuplicate(err); ok {
			return nil, s.rejectUpload(ctx, upload.OwnerID, fingerprint, dup)
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	result.Listing = created
	s.metrics.verdicts.WithLabelValues(checkpointIngest, string(types.VerdictUnique)).Inc()
	s.publish(ctx, types.EventTypeListingIngested, created.ID, created.OwnerID, types.StatusPayload{
		Status:     created.Status,
		IsVerified: created.IsVerified,
		Verdict:    types.VerdictUnique,
	})
	s.log.Infow("Ticket ingested",
		"listingID", created.ID,
		"ownerID", created.OwnerID,
		"mimeType", mimeType,
		"isScanned", isScanned,
		"duplicateCheckSkipped", result.DuplicateCheckSkipped)
	return result, nil
}

// ConfirmListing is Checkpoint B. The stored file is checked again against
// everything listed since upload; any failure here aborts the confirmation.
func (s *ListingService) ConfirmListing(ctx context.Context, listingID, userID string) (*types.ConfirmResult, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != userID {
		return nil, apperrors.Forbidden("Not allowed", "only the seller can confirm this listing")
	}
	if listing.Status != types.ListingStatusPending {
		return nil, apperrors.InvalidStatusTransition(string(listing.Status), string(types.ListingStatusActive))
	}

	data, err := s.readStored(ctx, listing.FilePath)
	if err != nil {
		s.metrics.confirmFailures.Inc()
		logger.LogError(ctx, err, "Failed to fetch stored ticket for confirmation", map[string]interface{}{
			"listingID": listing.ID,
		})
		return nil, apperrors.UpstreamFailure("Ticket verification", err)
	}

	check, err := s.dedup.CheckDuplicate(ctx, dedup.File{
		Name:     path.Base(listing.FilePath),
		MimeType: listing.MimeType,
		Data:     data,
	}, listing.ID)
	if err != nil {
		s.metrics.confirmFailures.Inc()
		logger.LogError(ctx, err, "Duplicate check failed during confirmation", map[string]interface{}{
			"listingID": listing.ID,
		})
		return nil, apperrors.UpstreamFailure("Ticket verification", err)
	}

	verdict, reason, matchedID := types.VerdictUnique, "", ""
	switch {
	case check.IsDuplicate:
		verdict, reason = types.VerdictDuplicateSimilar, "A visually matching ticket is already listed"
	case s.config.ExactFingerprintCheck && listing.ExactChecked:
		other, err := s.store.FindLiveByFingerprint(ctx, listing.Fingerprint,
			[]types.ListingStatus{types.ListingStatusActive}, listing.ID)
		switch {
		case err == nil:
			verdict, reason, matchedID = types.VerdictDuplicateExact, "A ticket with the same details is already listed", other.ID
		case !errors.Is(err, store.ErrNotFound):
			return nil, apperrors.NewDatabaseError(err)
		}
	}

	status, isVerified := types.ListingStatusActive, boolPtr(true)
	if verdict.IsDuplicate() {
		status, isVerified = types.ListingStatusRejected, nil
	}

	updated, err := s.store.SetVerification(ctx, listing.ID, status, isVerified)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperrors.NewConflictError("Listing already confirmed", "the listing is no longer pending")
		}
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	s.metrics.verdicts.WithLabelValues(checkpointConfirm, string(verdict)).Inc()
	eventType := types.EventTypeListingVerified
	if verdict.IsDuplicate() {
		eventType = types.EventTypeListingRejected
		s.publish(ctx, types.EventTypeListingDuplicateDetected, updated.ID, updated.OwnerID, types.DuplicatePayload{
			Fingerprint:      updated.Fingerprint,
			MatchedListingID: matchedID,
			Verdict:          verdict,
			Checkpoint:       checkpointConfirm,
		})
	}
	s.publish(ctx, eventType, updated.ID, updated.OwnerID, types.StatusPayload{
		Status:     updated.Status,
		IsVerified: updated.IsVerified,
		Verdict:    verdict,
	})

	if s.notifier != nil {
		if err := s.notifier.SendListingOutcome(ctx, updated, verdict, reason); err != nil {
			s.log.Warnw("Failed to notify seller", "listingID", updated.ID, "error", err)
		}
	}

	s.log.Infow("Listing confirmed", "listingID", updated.ID, "status", updated.Status, "verdict", verdict)
	return &types.ConfirmResult{Listing: updated, Verdict: verdict, Reason: reason}, nil
}

// GetListing hides listings that are not active from everyone but the owner.
func (s *ListingService) GetListing(ctx context.Context, id, viewerID string) (*types.Listing, error) {
	listing, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.Status != types.ListingStatusActive && listing.OwnerID != viewerID {
		return nil, apperrors.NotFound("Listing", id)
	}
	return listing, nil
}

// ListListings only returns other sellers' listings once they are active.
func (s *ListingService) ListListings(ctx context.Context, filter types.ListingFilter, viewerID string) ([]*types.Listing, int, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, 0, apperrors.ValidationFailed("invalid status", fmt.Sprintf("unknown status %q", *filter.Status))
	}
	if filter.OwnerID == "" || filter.OwnerID != viewerID {
		active := types.ListingStatusActive
		filter.Status = &active
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	listings, total, err := s.store.ListListings(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.NewDatabaseError(err)
	}
	return listings, total, nil
}

// UpdateListing applies seller edits while the listing is pending. The
// fingerprint keeps describing what was extracted from the file.
func (s *ListingService) UpdateListing(ctx context.Context, id, userID string, update *types.ListingUpdate) (*types.Listing, error) {
	if update == nil || update.IsEmpty() {
		return nil, apperrors.ValidationFailed("empty update", "at least one field must be provided")
	}
	if update.Category != nil && !ticket.IsValidCategory(*update.Category) {
		return nil, apperrors.ValidationFailed("invalid category", *update.Category)
	}
	if update.Price != nil {
		if _, err := valueobjects.NewMoney(*update.Price, s.config.Currency); err != nil {
			return nil, err
		}
	}

	listing, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != userID {
		return nil, apperrors.Forbidden("Not allowed", "only the seller can edit this listing")
	}
	if listing.Status != types.ListingStatusPending {
		return nil, apperrors.NewConflictError("Listing can no longer be edited", "only pending listings can be edited")
	}

	updated, err := s.store.UpdateListing(ctx, id, update)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperrors.NewConflictError("Listing can no longer be edited", "only pending listings can be edited")
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	return updated, nil
}

// ParsePreview runs the extractor over raw text without storing anything.
func (s *ListingService) ParsePreview(text string) *types.ParsePreview {
	fields, matches := s.extractor.ExtractWithMatches(text)
	return &types.ParsePreview{
		ParsedFields: fields,
		Fingerprint:  ticket.FingerprintFields(fields),
		Matches:      matches,
	}
}

func (s *ListingService) rejectUpload(ctx context.Context, ownerID, fingerprint string, dup *store.DuplicateError) error {
	s.metrics.verdicts.WithLabelValues(checkpointIngest, string(dup.Verdict)).Inc()
	s.publish(ctx, types.EventTypeListingDuplicateDetected, "", ownerID, types.DuplicatePayload{
		Fingerprint:      fingerprint,
		MatchedListingID: dup.MatchedListingID,
		Similarity:       dup.Similarity,
		Verdict:          dup.Verdict,
		Checkpoint:       checkpointIngest,
	})
	s.log.Infow("Duplicate upload rejected",
		"ownerID", ownerID,
		"verdict", dup.Verdict,
		"matchedListingID", dup.MatchedListingID,
		"similarity", dup.Similarity)

	reason := "A ticket with the same details is already listed"
	if dup.Verdict == types.VerdictDuplicateSimilar {
		reason = "A visually matching ticket is already listed"
	}
	return apperrors.DuplicateTicket(string(dup.Verdict), reason)
}

// publish is best effort; listing state never depends on it.
func (s *ListingService) publish(ctx context.Context, eventType types.EventType, listingID, userID string, payload any) {
	if s.events == nil {
		return
	}
	event, err := events.NewEvent(eventType, listingID, userID, payload)
	if err == nil {
		err = s.events.Publish(ctx, event)
	}
	if err != nil {
		s.log.Warnw("Failed to publish listing event", "type", eventType, "listingID", listingID, "error", err)
	}
}

// readUpload buffers the file, enforcing the size limit and the MIME allowlist.
func (s *ListingService) readUpload(file io.Reader) ([]byte, string, error) {
	cr := &countingReader{r: io.LimitReader(file, s.config.MaxUploadBytes+1)}
	data, err := io.ReadAll(cr)
	if err != nil {
		return nil, "", apperrors.ValidationFailed("invalid upload", err.Error())
	}
	if cr.n > s.config.MaxUploadBytes {
		return nil, "", apperrors.PayloadTooLarge(s.config.MaxUploadBytes)
	}
	if len(data) == 0 {
		return nil, "", apperrors.ValidationFailed("empty file", "the uploaded file is empty")
	}

	mimeType := mimetype.Detect(data).String()
	if !allowedMimeTypes[mimeType] {
		return nil, "", apperrors.UnsupportedMediaType(mimeType)
	}
	return data, mimeType, nil
}

func (s *ListingService) readStored(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.files.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, s.config.MaxUploadBytes+1))
}

func validateOverrides(f ticket.Fields) error {
	if f.Category != "" && !ticket.IsValidCategory(f.Category) {
		return apperrors.ValidationFailed("invalid category", f.Category)
	}
	if f.Price != "" {
		if _, err := valueobjects.ParsePrice(f.Price, ""); err != nil {
			return err
		}
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

func boolPtr(b bool) *bool { return &b }
