package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/resaletix/resaletix-backend/errors"
	"github.com/resaletix/resaletix-backend/internal/ticket"
	"github.com/resaletix/resaletix-backend/middleware"
	listingSvc "github.com/resaletix/resaletix-backend/models/listing/service"
	"github.com/resaletix/resaletix-backend/types"
)

const maxParseTextBytes = 64 << 10

// ListingServiceInterface is the part of ListingService the handler calls.
type ListingServiceInterface interface {
	IngestTicket(ctx context.Context, upload types.TicketUpload, file io.Reader) (*types.IngestResult, error)
	ConfirmListing(ctx context.Context, listingID, userID string) (*types.ConfirmResult, error)
	GetListing(ctx context.Context, id, viewerID string) (*types.Listing, error)
	ListListings(ctx context.Context, filter types.ListingFilter, viewerID string) ([]*types.Listing, int, error)
	UpdateListing(ctx context.Context, id, userID string, update *types.ListingUpdate) (*types.Listing, error)
	ParsePreview(text string) *types.ParsePreview
}

var _ ListingServiceInterface = (*listingSvc.ListingService)(nil)

type ListingHandler struct {
	listingService ListingServiceInterface
	maxUploadBytes int64
}

// NewListingHandler bounds the whole multipart body at maxUploadBytes.
func NewListingHandler(listingService ListingServiceInterface, maxUploadBytes int64) *ListingHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = listingSvc.DefaultMaxUploadBytes + 1<<20
	}
	return &ListingHandler{listingService: listingService, maxUploadBytes: maxUploadBytes}
}

type parseRequest struct {
	Text string `json:"text"`
}

// ParseTicketHandler previews extraction for raw OCR text.
// POST /v1/tickets/parse
func (h *ListingHandler) ParseTicketHandler(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxParseTextBytes)

	var req parseRequest
	if !bindJSONOrError(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.listingService.ParsePreview(req.Text))
}

// UploadTicketHandler is Checkpoint A.
// POST /v1/tickets/upload (multipart: file, optional fields JSON)
func (h *ListingHandler) UploadTicketHandler(c *gin.Context) {
	userID := getUserIDFromContext(c)
	if userID == "" {
		_ = c.Error(apperrors.Unauthorized("not_authenticated", "user not authenticated"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = c.Error(apperrors.PayloadTooLarge(h.maxUploadBytes))
			return
		}
		_ = c.Error(apperrors.ValidationFailed("missing_file", "file field is required"))
		return
	}

	var overrides ticket.Fields
	if raw := c.PostForm("fields"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			_ = c.Error(apperrors.ValidationFailed("invalid_fields", "fields must be a JSON object of ticket fields"))
			return
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		_ = c.Error(apperrors.ValidationFailed("invalid_file", "failed to open uploaded file"))
		return
	}
	defer file.Close()

	result, err := h.listingService.IngestTicket(c.Request.Context(), types.TicketUpload{
		OwnerID:    userID,
		OwnerEmail: middleware.UserEmail(c),
		FileName:   fileHeader.Filename,
		Size:       fileHeader.Size,
		Overrides:  overrides,
	}, file)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ConfirmListingHandler is Checkpoint B. A duplicate verdict is still a 200:
// the listing moved to rejected and the body says why.
// POST /v1/listings/:id/confirm
func (h *ListingHandler) ConfirmListingHandler(c *gin.Context) {
	id, ok := listingIDParam(c)
	if !ok {
		return
	}
	userID := getUserIDFromContext(c)
	if userID == "" {
		_ = c.Error(apperrors.Unauthorized("not_authenticated", "user not authenticated"))
		return
	}

	result, err := h.listingService.ConfirmListing(c.Request.Context(), id, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetListingHandler
// GET /v1/listings/:id
func (h *ListingHandler) GetListingHandler(c *gin.Context) {
	id, ok := listingIDParam(c)
	if !ok {
		return
	}

	listing, err := h.listingService.GetListing(c.Request.Context(), id, getUserIDFromContext(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// ListListingsHandler lists active listings, or all of the caller's own
// listings when ?owner= is the caller.
// GET /v1/listings
func (h *ListingHandler) ListListingsHandler(c *gin.Context) {
	filter, ok := listingFilterFromQuery(c)
	if !ok {
		return
	}
	filter.OwnerID = c.Query("owner")
	h.list(c, filter)
}

// ListMyListingsHandler
// GET /v1/me/listings
func (h *ListingHandler) ListMyListingsHandler(c *gin.Context) {
	userID := getUserIDFromContext(c)
	if userID == "" {
		_ = c.Error(apperrors.Unauthorized("not_authenticated", "user not authenticated"))
		return
	}
	filter, ok := listingFilterFromQuery(c)
	if !ok {
		return
	}
	filter.OwnerID = userID
	h.list(c, filter)
}

// UpdateListingHandler edits a pending listing's ticket fields or price.
// PUT /v1/listings/:id
func (h *ListingHandler) UpdateListingHandler(c *gin.Context) {
	id, ok := listingIDParam(c)
	if !ok {
		return
	}
	userID := getUserIDFromContext(c)
	if userID == "" {
		_ = c.Error(apperrors.Unauthorized("not_authenticated", "user not authenticated"))
		return
	}

	var req types.ListingUpdate
	if !bindJSONOrError(c, &req) {
		return
	}

	listing, err := h.listingService.UpdateListing(c.Request.Context(), id, userID, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h *ListingHandler) list(c *gin.Context, filter types.ListingFilter) {
	listings, total, err := h.listingService.ListListings(c.Request.Context(), filter, getUserIDFromContext(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if listings == nil {
		listings = []*types.Listing{}
	}

	c.JSON(http.StatusOK, types.PaginatedResponse{
		Data: listings,
		Pagination: types.Pagination{
			Limit:  filter.Limit,
			Offset: filter.Offset,
			Total:  total,
		},
	})
}

func listingFilterFromQuery(c *gin.Context) (types.ListingFilter, bool) {
	params := getPaginationParams(c, 20, 0)
	filter := types.ListingFilter{Limit: params.Limit, Offset: params.Offset}

	if s := c.Query("status"); s != "" {
		status := types.ListingStatus(s)
		if !status.IsValid() {
			_ = c.Error(apperrors.ValidationFailed("invalid status", "status must be pending, active or rejected"))
			return filter, false
		}
		filter.Status = &status
	}
	return filter, true
}
