package ticket

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint hashes a flat record into lowercase hex SHA-256. Keys and values
// are trimmed and lowercased, nil becomes "", and the key=value tokens are
// sorted and joined with "|" before hashing, so key order, case and
// surrounding whitespace never change the result.
func Fingerprint(record map[string]any) string {
	tokens := make([]string, 0, len(record))
	for k, v := range record {
		tokens = append(tokens, normalizeToken(k)+"="+normalizeToken(stringify(v)))
	}
	sort.Strings(tokens)

	sum := sha256.Sum256([]byte(strings.Join(tokens, "|")))
	return hex.EncodeToString(sum[:])
}

// FingerprintStrings is Fingerprint for string-valued records.
func FingerprintStrings(record map[string]string) string {
	m := make(map[string]any, len(record))
	for k, v := range record {
		m[k] = v
	}
	return Fingerprint(m)
}

// FingerprintFields hashes all eight keys of f.
func FingerprintFields(f Fields) string {
	return FingerprintStrings(f.Map())
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
