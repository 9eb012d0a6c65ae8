package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const recordHashVersion = "v1"

// RecordHash derives the hash_index for an attendance row from its canonical
// fields. Fields are trimmed and joined with a unit separator so that
// ("ab", "c") and ("a", "bc") never collide.
func RecordHash(fields ...string) string {
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, recordHashVersion)
	for _, f := range fields {
		parts = append(parts, strings.TrimSpace(f))
	}
	digest := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(digest[:])
}

// VerifyRecordHash reports whether encoded matches the hash of fields.
func VerifyRecordHash(encoded string, fields ...string) bool {
	expected, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil || len(expected) != sha256.Size {
		return false
	}
	actual, _ := hex.DecodeString(RecordHash(fields...))
	return subtle.ConstantTimeCompare(actual, expected) == 1
}
