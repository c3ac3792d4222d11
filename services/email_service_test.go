package services

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/resaletix/resaletix-backend/config"
	"github.com/resaletix/resaletix-backend/types"
	"github.com/resend/resend-go/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEmailSender struct {
	mock.Mock
}

func (m *mockEmailSender) SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resend.SendEmailResponse), args.Error(1)
}

func testEmailConfig() *config.EmailConfig {
	return &config.EmailConfig{
		Enabled:      true,
		FromName:     "Resaletix",
		FromAddress:  "noreply@resaletix.test",
		ResendAPIKey: "re_test_key",
		FrontendURL:  "https://resaletix.test/",
	}
}

func newTestEmailService(t *testing.T) (*EmailService, *mockEmailSender) {
	svc := NewEmailServiceWithRegistry(testEmailConfig(), prometheus.NewRegistry())
	sender := &mockEmailSender{}
	svc.sender = sender
	t.Cleanup(func() { sender.AssertExpectations(t) })
	return svc, sender
}

func testListing() *types.Listing {
	return &types.Listing{
		ID:         "listing-1",
		OwnerEmail: "seller@example.com",
		EventName:  "2024 WORLD TOUR CONCERT",
		Venue:      "NATIONAL STADIUM",
		Section:    "1",
		Row:        "A",
		Seat:       "12",
		Price:      decimal.NewFromInt(150),
		Currency:   "SGD",
	}
}

func TestNewEmailService(t *testing.T) {
	cfg := testEmailConfig()
	svc := NewEmailServiceWithRegistry(cfg, prometheus.NewRegistry())

	assert.Equal(t, cfg, svc.config)
	assert.NotNil(t, svc.sender)
	assert.NotNil(t, svc.metrics)
}

func TestSendListingOutcome_Verified(t *testing.T) {
	svc, sender := newTestEmailService(t)

	sender.On("SendWithContext", mock.Anything, mock.MatchedBy(func(req *resend.SendEmailRequest) bool {
		return req.From == "Resaletix <noreply@resaletix.test>" &&
			assert.ObjectsAreEqual([]string{"seller@example.com"}, req.To) &&
			req.Subject == "Your listing for 2024 WORLD TOUR CONCERT is live" &&
			strings.Contains(req.Html, "Section 1, Row A, Seat 12") &&
			strings.Contains(req.Html, "SGD 150.00") &&
			strings.Contains(req.Html, "https://resaletix.test/listings/listing-1")
	})).Return(&resend.SendEmailResponse{Id: "email-1"}, nil)

	err := svc.SendListingOutcome(context.Background(), testListing(), types.VerdictUnique, "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, counterValue(t, svc.metrics.sentCount.WithLabelValues("verified")))
}

func TestSendListingOutcome_Rejected(t *testing.T) {
	svc, sender := newTestEmailService(t)

	sender.On("SendWithContext", mock.Anything, mock.MatchedBy(func(req *resend.SendEmailRequest) bool {
		return req.Subject == "Your listing for 2024 WORLD TOUR CONCERT could not be published" &&
			strings.Contains(req.Html, "A ticket with the same details is already listed.")
	})).Return(&resend.SendEmailResponse{Id: "email-2"}, nil)

	err := svc.SendListingOutcome(context.Background(), testListing(), types.VerdictDuplicateExact,
		"A ticket with the same details is already listed")
	require.NoError(t, err)
	assert.Equal(t, 1.0, counterValue(t, svc.metrics.sentCount.WithLabelValues("rejected")))
}

func TestSendListingOutcome_EscapesTicketText(t *testing.T) {
	svc, sender := newTestEmailService(t)
	l := testListing()
	l.EventName = `<script>alert("x")</script>`

	sender.On("SendWithContext", mock.Anything, mock.MatchedBy(func(req *resend.SendEmailRequest) bool {
		return !strings.Contains(req.Html, "<script>") && strings.Contains(req.Html, "&lt;script&gt;")
	})).Return(&resend.SendEmailResponse{Id: "email-3"}, nil)

	require.NoError(t, svc.SendListingOutcome(context.Background(), l, types.VerdictUnique, ""))
}

func TestSendListingOutcome_Failures(t *testing.T) {
	t.Run("no recipient", func(t *testing.T) {
		svc, _ := newTestEmailService(t)
		l := testListing()
		l.OwnerEmail = ""
		err := svc.SendListingOutcome(context.Background(), l, types.VerdictUnique, "")
		assert.ErrorIs(t, err, errNoRecipient)
	})

	t.Run("resend error", func(t *testing.T) {
		svc, sender := newTestEmailService(t)
		sender.On("SendWithContext", mock.Anything, mock.Anything).Return(nil, assert.AnError)

		err := svc.SendListingOutcome(context.Background(), testListing(), types.VerdictUnique, "")
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 1.0, counterValue(t, svc.metrics.errorCount))
		assert.Equal(t, 0.0, counterValue(t, svc.metrics.sentCount.WithLabelValues("verified")))
	})
}

func TestListingURLWithoutFrontend(t *testing.T) {
	cfg := testEmailConfig()
	cfg.FrontendURL = ""
	svc := NewEmailServiceWithRegistry(cfg, prometheus.NewRegistry())
	assert.Empty(t, svc.listingURL("listing-1"))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
