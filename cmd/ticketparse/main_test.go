package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleText = "2024 WORLD TOUR CONCERT\nNATIONAL STADIUM\nSEC: 1 ROW: A SEAT: 12\n$150.00"

const sampleFingerprint = "d5acd37c368269d77314c5bb697ac47a030e6b2dd331f0c4c2490d7bbe9d964b"

func TestRun_Stdin(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(nil, strings.NewReader(sampleText), &out))

	var got output
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "2024 WORLD TOUR CONCERT", got.ParsedFields.EventName)
	assert.Equal(t, "12", got.ParsedFields.Seat)
	assert.Equal(t, sampleFingerprint, got.Fingerprint)
	assert.Empty(t, got.Matches)
}

func TestRun_FileWithExplain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticket.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleText), 0o600))

	var out bytes.Buffer
	require.NoError(t, run([]string{"-explain", path}, strings.NewReader(""), &out))

	var got output
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "NATIONAL STADIUM", got.ParsedFields.Venue)
	assert.NotEmpty(t, got.Matches)
}

func TestRun_YAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"-format", "yaml"}, strings.NewReader(sampleText), &out))

	var got output
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, sampleFingerprint, got.Fingerprint)
	assert.Equal(t, "150.00", got.ParsedFields.Price)
}

func TestRun_Errors(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run([]string{"-format", "xml"}, strings.NewReader(sampleText), &out))
	assert.Error(t, run([]string{filepath.Join(t.TempDir(), "missing.txt")}, strings.NewReader(""), &out))
	assert.Error(t, run([]string{"-rules", filepath.Join(t.TempDir(), "missing.yaml")}, strings.NewReader(""), &out))
}
