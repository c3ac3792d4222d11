// Package dedup is the HTTP client for the OCR and duplicate-detection
// service. Files are posted as multipart form data under the "file" field.
package dedup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/resaletix/resaletix-backend/logger"
	"github.com/resaletix/resaletix-backend/types"
)

const (
	checkDuplicatePath = "/check-duplicate"
	extractTextPath    = "/extract-text/"
	healthPath         = "/health"

	// maxResponseBytes bounds what we read back; embeddings are a few KB.
	maxResponseBytes = 4 << 20
)

// File is an uploaded ticket held in memory.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Client calls the dedup service.
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	extractTimeout time.Duration
	checkTimeout   time.Duration
}

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeouts overrides the per-call deadlines for text extraction and the
// duplicate check.
func WithTimeouts(extract, check time.Duration) ClientOption {
	return func(c *Client) {
		if extract > 0 {
			c.extractTimeout = extract
		}
		if check > 0 {
			c.checkTimeout = check
		}
	}
}

func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		httpClient:     &http.Client{},
		extractTimeout: 120 * time.Second,
		checkTimeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckDuplicate returns the embedding and perceptual hash of f. When
// excludeListingID is set the service ignores that listing's own entry.
func (c *Client) CheckDuplicate(ctx context.Context, f File, excludeListingID string) (*types.DuplicateCheck, error) {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	var fields map[string]string
	if excludeListingID != "" {
		fields = map[string]string{"exclude_listing_id": excludeListingID}
	}
	body, err := c.postFile(ctx, checkDuplicatePath, f, fields)
	if err != nil {
		return nil, err
	}

	var out types.DuplicateCheck
	if err := decodeValidated(checkDuplicateValidator, body, &out); err != nil {
		return nil, fmt.Errorf("check-duplicate: %w", err)
	}
	return &out, nil
}

// ExtractText runs OCR over f.
func (c *Client) ExtractText(ctx context.Context, f File) (*types.TextExtraction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.extractTimeout)
	defer cancel()

	body, err := c.postFile(ctx, extractTextPath, f, nil)
	if err != nil {
		return nil, err
	}

	var out types.TextExtraction
	if err := decodeValidated(extractTextValidator, body, &out); err != nil {
		return nil, fmt.Errorf("extract-text: %w", err)
	}
	return &out, nil
}

// Ping calls the service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dedup service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) postFile(ctx context.Context, path string, f File, fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName(f.Name)))
	if f.MimeType != "" {
		h.Set("Content-Type", f.MimeType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.setAuth(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	logger.GetLogger().Debugw("Dedup service call",
		"path", path,
		"status", resp.StatusCode,
		"fileSize", len(f.Data),
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, errorDetail(body))
	}
	return body, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}

func fileName(name string) string {
	if name == "" {
		return "ticket"
	}
	return name
}

// errorDetail pulls "error" or "detail" out of an error body, falling back
// to a truncated raw body.
func errorDetail(body []byte) string {
	var e struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Detail != "" {
			return e.Detail
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
