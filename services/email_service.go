package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/resaletix/resaletix-backend/config"
	"github.com/resaletix/resaletix-backend/logger"
	"github.com/resaletix/resaletix-backend/types"
	"github.com/resend/resend-go/v2"
)

var errNoRecipient = errors.New("listing has no seller email")

// emailSender is the part of the Resend client the service uses.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type EmailMetrics struct {
	sendLatency prometheus.Histogram
	errorCount  prometheus.Counter
	sentCount   *prometheus.CounterVec
}

// EmailService tells sellers whether their listing went live.
type EmailService struct {
	config   *config.EmailConfig
	sender   emailSender
	metrics  *EmailMetrics
	verified *template.Template
	rejected *template.Template
}

func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return NewEmailServiceWithRegistry(cfg, prometheus.DefaultRegisterer)
}

func NewEmailServiceWithRegistry(cfg *config.EmailConfig, reg prometheus.Registerer) *EmailService {
	logger.GetLogger().Infow("Initializing email service",
		"from", cfg.FromAddress, "apikey", logger.MaskSensitiveString(cfg.ResendAPIKey, 3, 0))
	client := resend.NewClient(cfg.ResendAPIKey)
	metrics := &EmailMetrics{
		sendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "resaletix_email_send_duration_seconds",
			Help:    "Time taken to send emails",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		}),
		errorCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resaletix_email_errors_total",
			Help: "Total number of email sending errors",
		}),
		sentCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resaletix_emails_sent_total",
			Help: "Total number of emails sent",
		}, []string{"template"}),
	}

	reg.MustRegister(metrics.sendLatency)
	reg.MustRegister(metrics.errorCount)
	reg.MustRegister(metrics.sentCount)

	return &EmailService{
		config:   cfg,
		sender:   client.Emails,
		metrics:  metrics,
		verified: template.Must(template.New("verified").Parse(listingVerifiedTemplate)),
		rejected: template.Must(template.New("rejected").Parse(listingRejectedTemplate)),
	}
}

// SendListingOutcome mails the seller after confirmation.
func (s *EmailService) SendListingOutcome(ctx context.Context, listing *types.Listing, verdict types.DuplicateVerdict, reason string) error {
	if listing.OwnerEmail == "" {
		return errNoRecipient
	}

	name := listing.EventName
	if name == "" {
		name = "your ticket"
	}
	data := map[string]interface{}{
		"EventName":  name,
		"Venue":      listing.Venue,
		"EventDate":  listing.EventDate,
		"Seat":       seatLine(listing),
		"Price":      fmt.Sprintf("%s %s", listing.Currency, listing.Price.StringFixed(2)),
		"ListingURL": s.listingURL(listing.ID),
		"Reason":     reason,
	}

	tmpl, subject := s.verified, fmt.Sprintf("Your listing for %s is live", name)
	if verdict.IsDuplicate() {
		tmpl, subject = s.rejected, fmt.Sprintf("Your listing for %s could not be published", name)
	}
	return s.send(ctx, tmpl, types.EmailData{To: listing.OwnerEmail, Subject: subject, TemplateData: data})
}

func (s *EmailService) send(ctx context.Context, tmpl *template.Template, data types.EmailData) error {
	startTime := time.Now()
	log := logger.GetLogger()
	defer func() {
		s.metrics.sendLatency.Observe(time.Since(startTime).Seconds())
	}()

	var htmlContent bytes.Buffer
	if err := tmpl.Execute(&htmlContent, data.TemplateData); err != nil {
		s.metrics.errorCount.Inc()
		log.Errorw("Failed to execute email template", "template", tmpl.Name(), "error", err)
		return fmt.Errorf("failed to execute template: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress),
		To:      []string{data.To},
		Subject: data.Subject,
		Html:    htmlContent.String(),
	}

	if _, err := s.sender.SendWithContext(ctx, params); err != nil {
		s.metrics.errorCount.Inc()
		log.Errorw("Failed to send email",
			"error", err,
			"to", logger.MaskEmail(data.To),
			"subject", data.Subject)
		return fmt.Errorf("email send failed: %w", err)
	}

	s.metrics.sentCount.WithLabelValues(tmpl.Name()).Inc()
	log.Infow("Email sent successfully",
		"to", logger.MaskEmail(data.To),
		"subject", data.Subject)
	return nil
}

func (s *EmailService) listingURL(id string) string {
	if s.config.FrontendURL == "" {
		return ""
	}
	return strings.TrimRight(s.config.FrontendURL, "/") + "/listings/" + id
}

func seatLine(l *types.Listing) string {
	var parts []string
	if l.Section != "" {
		parts = append(parts, "Section "+l.Section)
	}
	if l.Row != "" {
		parts = append(parts, "Row "+l.Row)
	}
	if l.Seat != "" {
		parts = append(parts, "Seat "+l.Seat)
	}
	return strings.Join(parts, ", ")
}

const emailStyle = `
    <style>
        body { font-family: sans-serif; background-color: #f7f7f7; color: #333333; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 20px auto; background-color: #ffffff; padding: 30px; border-radius: 12px; }
        h1 { color: #1F6FEB; font-size: 24px; }
        .details { font-size: 15px; line-height: 1.6; color: #555555; }
        .button { display: inline-block; padding: 12px 24px; font-weight: bold; text-decoration: none;
                  background-color: #1F6FEB; color: #ffffff; border-radius: 8px; }
    </style>`

const listingVerifiedTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your listing is live</title>` + emailStyle + `
</head>
<body>
    <div class="container">
        <h1>{{.EventName}} is now listed</h1>
        <p>Your ticket passed verification and buyers can now see it.</p>
        <div class="details">
            {{if .Venue}}<div>{{.Venue}}</div>{{end}}
            {{if .EventDate}}<div>{{.EventDate}}</div>{{end}}
            {{if .Seat}}<div>{{.Seat}}</div>{{end}}
            <div>{{.Price}}</div>
        </div>
        {{if .ListingURL}}<p><a href="{{.ListingURL}}" class="button">View listing</a></p>{{end}}
    </div>
</body>
</html>`

const listingRejectedTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your listing could not be published</title>` + emailStyle + `
</head>
<body>
    <div class="container">
        <h1>We could not publish {{.EventName}}</h1>
        <p>{{if .Reason}}{{.Reason}}.{{else}}This ticket matches one that is already listed.{{end}}</p>
        <p class="details">If you believe this is a mistake, reply to this email with your order confirmation.</p>
    </div>
</body>
</html>`
