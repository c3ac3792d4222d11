package main

import (
	"testing"

	"github.com/resaletix/resaletix-backend/config"
	listingSvc "github.com/resaletix/resaletix-backend/models/listing/service"
	"github.com/stretchr/testify/assert"
)

func TestListingServiceConfig(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{MaxUploadBytes: 26 << 20},
		DuplicateDetection: config.DuplicateDetectionConfig{
			SimilarityThreshold:   0.8,
			MatchCount:            3,
			PDFEmbeddingCheck:     true,
			ExactFingerprintCheck: false,
		},
	}

	c := listingServiceConfig(cfg)
	assert.Equal(t, int64(25<<20), c.MaxUploadBytes)
	assert.InDelta(t, 0.8, c.SimilarityThreshold, 1e-9)
	assert.Equal(t, 3, c.MatchCount)
	assert.True(t, c.PDFEmbeddingCheck)
	assert.False(t, c.ExactFingerprintCheck)
	assert.Equal(t, listingSvc.DefaultConfig().Currency, c.Currency)
}

func TestListingServiceConfig_DefaultUploadLimit(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{MaxUploadBytes: 11 << 20}}
	assert.Equal(t, listingSvc.DefaultMaxUploadBytes, listingServiceConfig(cfg).MaxUploadBytes)
}

func TestListingServiceConfig_TinyLimit(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{MaxUploadBytes: 4096}}
	assert.Equal(t, int64(4096), listingServiceConfig(cfg).MaxUploadBytes)
}
