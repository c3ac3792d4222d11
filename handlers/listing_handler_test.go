package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	apperrors "github.com/resaletix/resaletix-backend/errors"
	"github.com/resaletix/resaletix-backend/internal/ticket"
	"github.com/resaletix/resaletix-backend/middleware"
	"github.com/resaletix/resaletix-backend/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) IngestTicket(ctx context.Context, upload types.TicketUpload, file io.Reader) (*types.IngestResult, error) {
	args := m.Called(ctx, upload, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.IngestResult), args.Error(1)
}

func (m *MockListingService) ConfirmListing(ctx context.Context, listingID, userID string) (*types.ConfirmResult, error) {
	args := m.Called(ctx, listingID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ConfirmResult), args.Error(1)
}

func (m *MockListingService) GetListing(ctx context.Context, id, viewerID string) (*types.Listing, error) {
	args := m.Called(ctx, id, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Listing), args.Error(1)
}

func (m *MockListingService) ListListings(ctx context.Context, filter types.ListingFilter, viewerID string) ([]*types.Listing, int, error) {
	args := m.Called(ctx, filter, viewerID)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*types.Listing), args.Int(1), args.Error(2)
}

func (m *MockListingService) UpdateListing(ctx context.Context, id, userID string, update *types.ListingUpdate) (*types.Listing, error) {
	args := m.Called(ctx, id, userID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Listing), args.Error(1)
}

func (m *MockListingService) ParsePreview(text string) *types.ParsePreview {
	return m.Called(text).Get(0).(*types.ParsePreview)
}

var _ ListingServiceInterface = (*MockListingService)(nil)

const (
	testUserID    = "11111111-1111-1111-1111-111111111111"
	testListingID = "22222222-2222-2222-2222-222222222222"
)

func buildListingRouter(method, path string, handler gin.HandlerFunc, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(string(middleware.UserIDKey), userID)
			c.Set(string(middleware.UserEmailKey), "seller@example.com")
		}
		c.Next()
	})
	r.Handle(method, path, handler)
	return r
}

func buildUploadBody(t *testing.T, filename string, content []byte, fieldsJSON string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, _ = fw.Write(content)
	}
	if fieldsJSON != "" {
		require.NoError(t, w.WriteField("fields", fieldsJSON))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func sampleListing() *types.Listing {
	verified := false
	return &types.Listing{
		ID:          testListingID,
		OwnerID:     testUserID,
		EventName:   "2024 WORLD TOUR CONCERT",
		Venue:       "NATIONAL STADIUM",
		Section:     "1",
		Row:         "A",
		Seat:        "12",
		Category:    string(ticket.CategorySeated),
		Price:       decimal.RequireFromString("150.00"),
		Currency:    "SGD",
		Fingerprint: "abc",
		Status:      types.ListingStatusPending,
		IsVerified:  &verified,
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var body middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestUploadTicketHandler_Success(t *testing.T) {
	svc := new(MockListingService)
	h := NewListingHandler(svc, 1<<20)
	r := buildListingRouter(http.MethodPost, "/v1/tickets/upload", h.UploadTicketHandler, testUserID)

	svc.On("IngestTicket", mock.Anything, mock.MatchedBy(func(u types.TicketUpload) bool {
		return u.OwnerID == testUserID &&
			u.OwnerEmail == "seller@example.com" &&
			u.FileName == "ticket.jpg" &&
			u.Size == 4 &&
			u.Overrides.Seat == "14" &&
			u.Overrides.Price == "120.00"
	}), mock.Anything).Return(&types.IngestResult{
		Listing:     sampleListing(),
		Fingerprint: "abc",
		Verdict:     types.VerdictUnique,
	}, nil)

	body, ct := buildUploadBody(t, "ticket.jpg", []byte("\xff\xd8\xff\xe0"), `{"seat":"14","price":"120.00"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/tickets/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result types.IngestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, types.VerdictUnique, result.Verdict)
	assert.Equal(t, testListingID, result.Listing.ID)
	svc.AssertExpectations(t)
}

func TestUploadTicketHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		filename   string
		content    []byte
		fields     string
		limit      int64
		svcErr     error
		wantStatus int
		wantType   string
	}{
		{
			name:       "unauthenticated",
			filename:   "ticket.jpg",
			content:    []byte("x"),
			wantStatus: http.StatusUnauthorized,
			wantType:   "AUTHENTICATION_ERROR",
		},
		{
			name:       "missing file",
			userID:     testUserID,
			fields:     `{"seat":"1"}`,
			wantStatus: http.StatusBadRequest,
			wantType:   "VALIDATION_ERROR",
		},
		{
			name:       "malformed fields",
			userID:     testUserID,
			filename:   "ticket.jpg",
			content:    []byte("x"),
			fields:     `{not json`,
			wantStatus: http.StatusBadRequest,
			wantType:   "VALIDATION_ERROR",
		},
		{
			name:       "body over limit",
			userID:     testUserID,
			filename:   "ticket.jpg",
			content:    bytes.Repeat([]byte("a"), 4096),
			limit:      1024,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   "PAYLOAD_TOO_LARGE",
		},
		{
			name:       "duplicate from service",
			userID:     testUserID,
			filename:   "ticket.jpg",
			content:    []byte("x"),
			svcErr:     apperrors.DuplicateTicket(string(types.VerdictDuplicateSimilar), "matches an existing listing"),
			wantStatus: http.StatusConflict,
			wantType:   "DUPLICATE_TICKET",
		},
		{
			name:       "unsupported type from service",
			userID:     testUserID,
			filename:   "ticket.gif",
			content:    []byte("GIF89a"),
			svcErr:     apperrors.UnsupportedMediaType("image/gif"),
			wantStatus: http.StatusUnsupportedMediaType,
			wantType:   "UNSUPPORTED_MEDIA_TYPE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockListingService)
			limit := tt.limit
			if limit == 0 {
				limit = 1 << 20
			}
			h := NewListingHandler(svc, limit)
			r := buildListingRouter(http.MethodPost, "/v1/tickets/upload", h.UploadTicketHandler, tt.userID)
			if tt.svcErr != nil {
				svc.On("IngestTicket", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.svcErr)
			}

			body, ct := buildUploadBody(t, tt.filename, tt.content, tt.fields)
			req := httptest.NewRequest(http.MethodPost, "/v1/tickets/upload", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantType, decodeError(t, w).Type)
			if tt.svcErr == nil {
				svc.AssertNotCalled(t, "IngestTicket", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestUploadTicketHandler_DuplicateVerdictInCode(t *testing.T) {
	svc := new(MockListingService)
	h := NewListingHandler(svc, 1<<20)
	r := buildListingRouter(http.MethodPost, "/v1/tickets/upload", h.UploadTicketHandler, testUserID)
	svc.On("IngestTicket", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, apperrors.DuplicateTicket(string(types.VerdictDuplicateExact), "same seat already listed"))

	body, ct := buildUploadBody(t, "ticket.pdf", []byte("%PDF-1.7"), "")
	req := httptest.NewRequest(http.MethodPost, "/v1/tickets/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "duplicate-exact", resp.Code)
	assert.Equal(t, "same seat already listed", resp.Details)
}

func TestConfirmListingHandler(t *testing.T) {
	t.Run("unique", func(t *testing.T) {
		svc := new(MockListingService)
		h := NewListingHandler(svc, 0)
		r := buildListingRouter(http.MethodPost, "/v1/listings/:id/confirm", h.ConfirmListingHandler, testUserID)

		active := sampleListing()
		active.Status = types.ListingStatusActive
		verified := true
		active.IsVerified = &verified
		svc.On("ConfirmListing", mock.Anything, testListingID, testUserID).
			Return(&types.ConfirmResult{Listing: active, Verdict: types.VerdictUnique}, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/listings/"+testListingID+"/confirm", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"active"`)
		assert.Contains(t, w.Body.String(), `"isVerified":true`)
	})

	t.Run("rejected is still ok", func(t *testing.T) {
		svc := new(MockListingService)
		h := NewListingHandler(svc, 0)
		r := buildListingRouter(http.MethodPost, "/v1/listings/:id/confirm", h.ConfirmListingHandler, testUserID)

		rejected := sampleListing()
		rejected.Status = types.ListingStatusRejected
		rejected.IsVerified = nil
		svc.On("ConfirmListing", mock.Anything, testListingID, testUserID).Return(&types.ConfirmResult{
			Listing: rejected,
			Verdict: types.VerdictDuplicateSimilar,
			Reason:  "visually matches another listing",
		}, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/listings/"+testListingID+"/confirm", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"isVerified":null`)
		assert.Contains(t, w.Body.String(), `"verdict":"duplicate-similar"`)
	})

	t.Run("invalid id", func(t *testing.T) {
		svc := new(MockListingService)
		h := NewListingHandler(svc, 0)
		r := buildListingRouter(http.MethodPost, "/v1/listings/:id/confirm", h.ConfirmListingHandler, testUserID)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/listings/not-a-uuid/confirm", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "ConfirmListing", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("service errors pass through", func(t *testing.T) {
		cases := map[string]struct {
			err  error
			want int
		}{
			"forbidden":   {apperrors.Forbidden("not_owner", "only the owner can confirm"), http.StatusForbidden},
			"not pending": {apperrors.InvalidStatusTransition("active", "active"), http.StatusBadRequest},
			"conflict":    {apperrors.NewConflictError("listing changed", "retry"), http.StatusConflict},
			"upstream":    {apperrors.UpstreamFailure("duplicate detection", io.ErrUnexpectedEOF), http.StatusBadGateway},
		}
		for name, tc := range cases {
			t.Run(name, func(t *testing.T) {
				svc := new(MockListingService)
				h := NewListingHandler(svc, 0)
				r := buildListingRouter(http.MethodPost, "/v1/listings/:id/confirm", h.ConfirmListingHandler, testUserID)
				svc.On("ConfirmListing", mock.Anything, testListingID, testUserID).Return(nil, tc.err)

				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/listings/"+testListingID+"/confirm", nil))

				assert.Equal(t, tc.want, w.Code)
			})
		}
	})
}

func TestGetListingHandler(t *testing.T) {
	svc := new(MockListingService)
	h := NewListingHandler(svc, 0)
	r := buildListingRouter(http.MethodGet, "/v1/listings/:id", h.GetListingHandler, "")

	svc.On("GetListing", mock.Anything, testListingID, "").
		Return(nil, apperrors.NotFound("Listing", testListingID)).Once()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/listings/"+testListingID, nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Type)
}

func TestListListingsHandler(t *testing.T) {
	svc := new(MockListingService)
	h := NewListingHandler(svc, 0)
	r := buildListingRouter(http.MethodGet, "/v1/listings", h.ListListingsHandler, "")

	active := types.ListingStatusActive
	svc.On("ListListings", mock.Anything, types.ListingFilter{Status: &active, Limit: 5, Offset: 10}, "").
		Return([]*types.Listing{sampleListing()}, 11, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/listings?status=active&limit=5&offset=10", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data       []types.Listing `json:"data"`
		Pagination struct {
			Limit  int `json:"limit"`
			Offset int `json:"offset"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
	assert.Equal(t, 5, body.Pagination.Limit)
	assert.Equal(t, 10, body.Pagination.Offset)
	assert.Equal(t, 11, body.Pagination.Total)
}

func TestListListingsHandler_InvalidStatus(t *testing.T) {
	svc := new(MockListingService)
	h := NewListingHandler(svc, 0)
	r := buildListingRouter(http.MethodGet, "/v1/listings", h.ListListingsHandler, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/listings?status=sold", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "ListListings", mock.Anything, mock.Anything, mock.Anything)
}

func TestListMyListingsHandler(t *testing.T) {
	svc := new(MockListingService)
	h := NewListingHandler(svc, 0)
	r := buildListingRouter(http.MethodGet, "/v1/me/listings", h.ListMyListingsHandler, testUserID)

	svc.On("ListListings", mock.Anything, types.ListingFilter{OwnerID: testUserID, Limit: 20}, testUserID).
		Return(nil, 0, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/me/listings?limit=-3", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[],"pagination":{"limit":20,"offset":0,"total":0}}`, w.Body.String())
}

func TestUpdateListingHandler(t *testing.T) {
	t.Run("updates price", func(t *testing.T) {
		svc := new(MockListingService)
		h := NewListingHandler(svc, 0)
		r := buildListingRouter(http.MethodPut, "/v1/listings/:id", h.UpdateListingHandler, testUserID)

		updated := sampleListing()
		updated.Price = decimal.RequireFromString("99.50")
		svc.On("UpdateListing", mock.Anything, testListingID, testUserID, mock.MatchedBy(func(u *types.ListingUpdate) bool {
			return u.Price != nil && u.Price.Equal(decimal.RequireFromString("99.50")) && u.Seat == nil
		})).Return(updated, nil)

		req := httptest.NewRequest(http.MethodPut, "/v1/listings/"+testListingID, strings.NewReader(`{"price":"99.50"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"price":"99.5"`)
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		svc := new(MockListingService)
		h := NewListingHandler(svc, 0)
		r := buildListingRouter(http.MethodPut, "/v1/listings/:id", h.UpdateListingHandler, testUserID)

		req := httptest.NewRequest(http.MethodPut, "/v1/listings/"+testListingID, strings.NewReader(`{"category":"Balcony"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "UpdateListing", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestParseTicketHandler(t *testing.T) {
	svc := new(MockListingService)
	h := NewListingHandler(svc, 0)
	r := buildListingRouter(http.MethodPost, "/v1/tickets/parse", h.ParseTicketHandler, "")

	text := "2024 WORLD TOUR CONCERT\nNATIONAL STADIUM\nSEC: 1 ROW: A SEAT: 12\n$150.00"
	svc.On("ParsePreview", text).Return(&types.ParsePreview{
		ParsedFields: ticket.Fields{EventName: "2024 WORLD TOUR CONCERT", Seat: "12"},
		Fingerprint:  "fp",
	})

	payload, err := json.Marshal(parseRequest{Text: text})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/tickets/parse", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fingerprint":"fp"`)
	assert.Contains(t, w.Body.String(), `"seat":"12"`)
}
