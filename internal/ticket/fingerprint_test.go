package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	m := map[string]any{"event_name": "Show", "seat": "12", "price": nil}
	first := Fingerprint(m)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Fingerprint(m))
	}
	assert.Len(t, first, 64)
	assert.Regexp(t, `^[0-9a-f]{64}$`, first)
}

func TestFingerprintOrderIndependent(t *testing.T) {
	// Go map iteration order is randomised, so building the same record in
	// different insertion orders exercises the sort.
	a := map[string]any{}
	b := map[string]any{}
	keys := []string{"section", "row", "seat", "venue"}
	for i, k := range keys {
		a[k] = k + "-v"
		b[keys[len(keys)-1-i]] = keys[len(keys)-1-i] + "-v"
	}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Equal(t, Fingerprint(map[string]any{"a": "1", "b": "2"}), Fingerprint(map[string]any{"b": "2", "a": "1"}))
}

func TestFingerprintCaseAndWhitespaceInsensitive(t *testing.T) {
	assert.Equal(t, Fingerprint(map[string]any{"a": " VIP "}), Fingerprint(map[string]any{"a": "vip"}))
	assert.Equal(t, Fingerprint(map[string]any{" A ": "x"}), Fingerprint(map[string]any{"a": "x"}))
	assert.Equal(t, "66f2a7c9db4697965a8af7398bffeaf3e673186df63e69beafca3848b9461d22", Fingerprint(map[string]any{"a": " VIP "}))
}

func TestFingerprintNilEqualsEmpty(t *testing.T) {
	var nilPtr *string
	assert.Equal(t, Fingerprint(map[string]any{"a": nil}), Fingerprint(map[string]any{"a": ""}))
	assert.Equal(t, Fingerprint(map[string]any{"a": nilPtr}), Fingerprint(map[string]any{"a": ""}))
}

func TestFingerprintEmptyRecord(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Fingerprint(map[string]any{}))
}

func TestFingerprintDistinguishesValues(t *testing.T) {
	assert.NotEqual(t,
		Fingerprint(map[string]any{"seat": "12"}),
		Fingerprint(map[string]any{"seat": "13"}))
}

func TestFingerprintNonStringValues(t *testing.T) {
	assert.Equal(t, Fingerprint(map[string]any{"seat": 12}), Fingerprint(map[string]any{"seat": "12"}))
	assert.Equal(t, Fingerprint(map[string]any{"ok": true}), Fingerprint(map[string]any{"ok": "TRUE"}))
}

func TestDuplicateUploadsShareFingerprint(t *testing.T) {
	ex := NewExtractor(nil)
	first := ex.Extract(worldTourText)
	second := ex.Extract("  2024 world tour concert \r\nNational Stadium\nsec: 1 row: a seat: 12\n$150.00 ")

	assert.Equal(t, FingerprintFields(first), FingerprintFields(second))
}
