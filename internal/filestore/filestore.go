// Package filestore keeps uploaded ticket files. Keys are slash separated
// paths relative to the bucket or base directory.
package filestore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/resaletix/resaletix-backend/config"
)

// FileStorage is implemented by the local, R2 and Supabase backends.
type FileStorage interface {
	Save(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Open returns the stored bytes; the caller closes the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New builds the backend selected by cfg.Storage.Backend.
func New(cfg *config.Config) (FileStorage, error) {
	s := cfg.Storage
	switch s.Backend {
	case config.StorageLocal:
		return NewLocalFileStorage(s.LocalPath)
	case config.StorageR2:
		return NewR2FileStorage(s.R2AccountID, s.Bucket, s.R2AccessKeyID, s.R2SecretAccessKey, s.R2Endpoint)
	case config.StorageSupabase, "":
		return NewSupabaseFileStorage(cfg.ExternalServices.SupabaseURL, cfg.ExternalServices.SupabaseServiceKey, s.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}

// TicketKey returns <ownerID>/<unixnano>_<filename>.
func TicketKey(ownerID, fileName string, now time.Time) string {
	return fmt.Sprintf("%s/%d_%s", sanitizeSegment(ownerID), now.UnixNano(), SanitizeFilename(fileName))
}

// validateKey rejects empty keys, absolute keys and ".." segments.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid storage key %q", key)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return fmt.Errorf("path traversal detected in storage key")
		}
	}
	return nil
}

var safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)

// SanitizeFilename strips directories and unsafe characters, keeping the
// extension when the name has to be shortened.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = safeFilenameRe.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." || name == "_" {
		return "ticket"
	}
	const maxLen = 128
	if len(name) > maxLen {
		ext := filepath.Ext(name)
		if len(ext) >= maxLen {
			ext = ""
		}
		name = name[:maxLen-len(ext)] + ext
	}
	return name
}

func sanitizeSegment(s string) string {
	s = safeFilenameRe.ReplaceAllString(s, "_")
	if s == "" || s == "." || s == ".." {
		return "anonymous"
	}
	return s
}
