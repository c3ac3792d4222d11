package sqlcadapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	apperrors "github.com/resaletix/resaletix-backend/errors"
	internal_store "github.com/resaletix/resaletix-backend/internal/store"
	"github.com/resaletix/resaletix-backend/types"
)

var _ internal_store.ListingStore = (*listingStore)(nil)

// DBTX is the subset of *pgxpool.Pool the store needs; pgxmock satisfies it.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// createLockKey serializes the check-then-insert in CreateListing.
const createLockKey int64 = 0x7265_7361_6c65

const uniqueViolation = "23505"

const listingColumns = `id, owner_id, owner_email, event_name, venue, event_date, section, "row", seat,
	category, price, currency, fingerprint, phash, file_path, mime_type, file_size, is_scanned,
	status, is_verified, created_at, updated_at, dedup_key IS NOT NULL AS exact_checked`

type listingStore struct {
	db DBTX
}

func NewListingStore(db DBTX) internal_store.ListingStore {
	return &listingStore{db: db}
}

func (s *listingStore) CreateListing(ctx context.Context, l *types.Listing, guard internal_store.DuplicateGuard) (*types.Listing, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, createLockKey); err != nil {
		return nil, fmt.Errorf("failed to acquire create lock: %w", err)
	}

	if guard.CheckFingerprint {
		var matchedID string
		err := tx.QueryRow(ctx,
			`SELECT id FROM listings WHERE dedup_key = $1 AND status IN ('pending', 'active') LIMIT 1`,
			l.Fingerprint,
		).Scan(&matchedID)
		switch {
		case err == nil:
			return nil, &internal_store.DuplicateError{Verdict: types.VerdictDuplicateExact, MatchedListingID: matchedID}
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("failed to check fingerprint: %w", err)
		}
	}

	if len(guard.Embedding) > 0 {
		matches, err := matchEmbedding(ctx, tx, guard.Embedding, guard.Threshold, guard.MatchCount, "")
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			return nil, &internal_store.DuplicateError{
				Verdict:          types.VerdictDuplicateSimilar,
				MatchedListingID: matches[0].ListingID,
				Similarity:       matches[0].Similarity,
			}
		}
	}

	var dedupKey *string
	if guard.CheckFingerprint {
		dedupKey = &l.Fingerprint
	}
	var embedding *string
	if len(l.Embedding) > 0 {
		v := formatVector(l.Embedding)
		embedding = &v
	}
	currency := l.Currency
	if currency == "" {
		currency = "SGD"
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO listings (owner_id, owner_email, event_name, venue, event_date, section, "row", seat,
			category, price, currency, fingerprint, dedup_key, phash, embedding, file_path, mime_type,
			file_size, is_scanned, status, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15::vector, $16, $17, $18, $19, 'pending', FALSE)
		RETURNING `+listingColumns,
		l.OwnerID, l.OwnerEmail, l.EventName, l.Venue, l.EventDate, l.Section, l.Row, l.Seat,
		l.Category, l.Price, currency, l.Fingerprint, dedupKey, l.PHash, embedding, l.FilePath, l.MimeType,
		l.FileSize, l.IsScanned,
	)
	created, err := scanListing(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, &internal_store.DuplicateError{Verdict: types.VerdictDuplicateExact}
		}
		return nil, fmt.Errorf("failed to insert listing: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit listing: %w", err)
	}
	created.Embedding = l.Embedding
	return created, nil
}

func (s *listingStore) GetListing(ctx context.Context, id string) (*types.Listing, error) {
	l, err := scanListing(s.db.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("Listing", id)
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return l, nil
}

func (s *listingStore) ListListings(ctx context.Context, f types.ListingFilter) ([]*types.Listing, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		where = append(where, "owner_id = $"+strconv.Itoa(len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM listings`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	rows, err := s.db.Query(ctx,
		`SELECT `+listingColumns+` FROM listings`+clause+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var listings []*types.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate listings: %w", err)
	}
	return listings, total, nil
}

func (s *listingStore) UpdateListing(ctx context.Context, id string, u *types.ListingUpdate) (*types.Listing, error) {
	l, err := scanListing(s.db.QueryRow(ctx,
		`UPDATE listings SET
			event_name = COALESCE($2, event_name),
			venue = COALESCE($3, venue),
			event_date = COALESCE($4, event_date),
			section = COALESCE($5, section),
			"row" = COALESCE($6, "row"),
			seat = COALESCE($7, seat),
			category = COALESCE($8, category),
			price = COALESCE($9, price),
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+listingColumns,
		id, u.EventName, u.Venue, u.EventDate, u.Section, u.Row, u.Seat, u.Category, u.Price,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, internal_store.ErrConflict
		}
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}
	return l, nil
}

func (s *listingStore) SetVerification(ctx context.Context, id string, status types.ListingStatus, isVerified *bool) (*types.Listing, error) {
	if !types.ListingStatusPending.CanTransitionTo(status) {
		return nil, apperrors.InvalidStatusTransition(string(types.ListingStatusPending), string(status))
	}
	l, err := scanListing(s.db.QueryRow(ctx,
		`UPDATE listings SET status = $2, is_verified = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+listingColumns,
		id, string(status), isVerified,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, internal_store.ErrConflict
		}
		return nil, fmt.Errorf("failed to set listing verification: %w", err)
	}
	return l, nil
}

func (s *listingStore) MatchEmbedding(ctx context.Context, embedding []float32, threshold float64, count int, excludeID string) ([]types.EmbeddingMatch, error) {
	return matchEmbedding(ctx, s.db, embedding, threshold, count, excludeID)
}

func (s *listingStore) FindLiveByFingerprint(ctx context.Context, fingerprint string, statuses []types.ListingStatus, excludeID string) (*types.Listing, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	var exclude *string
	if excludeID != "" {
		exclude = &excludeID
	}
	l, err := scanListing(s.db.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings
		WHERE dedup_key = $1 AND status::text = ANY($2) AND ($3::uuid IS NULL OR id <> $3::uuid)
		ORDER BY created_at ASC LIMIT 1`,
		fingerprint, names, exclude,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, internal_store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find listing by fingerprint: %w", err)
	}
	return l, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func matchEmbedding(ctx context.Context, q queryer, embedding []float32, threshold float64, count int, excludeID string) ([]types.EmbeddingMatch, error) {
	var exclude *string
	if excludeID != "" {
		exclude = &excludeID
	}
	rows, err := q.Query(ctx,
		`SELECT listing_id::text, similarity FROM match_embedding($1::vector, $2, $3, $4::uuid)`,
		formatVector(embedding), threshold, count, exclude,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to match embedding: %w", err)
	}
	defer rows.Close()

	var matches []types.EmbeddingMatch
	for rows.Next() {
		var m types.EmbeddingMatch
		if err := rows.Scan(&m.ListingID, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan embedding match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate embedding matches: %w", err)
	}
	return matches, nil
}

// formatVector renders a pgvector text literal, e.g. [0.1,0.2].
func formatVector(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func scanListing(row pgx.Row) (*types.Listing, error) {
	var (
		l          types.Listing
		status     string
		phash      pgtype.Text
		isVerified pgtype.Bool
	)
	err := row.Scan(
		&l.ID, &l.OwnerID, &l.OwnerEmail, &l.EventName, &l.Venue, &l.EventDate, &l.Section, &l.Row, &l.Seat,
		&l.Category, &l.Price, &l.Currency, &l.Fingerprint, &phash, &l.FilePath, &l.MimeType, &l.FileSize, &l.IsScanned,
		&status, &isVerified, &l.CreatedAt, &l.UpdatedAt, &l.ExactChecked,
	)
	if err != nil {
		return nil, err
	}
	l.Status = types.ListingStatus(status)
	if phash.Valid {
		l.PHash = &phash.String
	}
	if isVerified.Valid {
		v := isVerified.Bool
		l.IsVerified = &v
	}
	return &l, nil
}
