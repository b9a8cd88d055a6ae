// Package checksum derives the entity tags used for optimistic concurrency on
// stored records.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag quotes a checksum for the ETag header.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// Matches reports whether an If-Match value accepts the stored data. The value
// may be "*", a bare checksum, or a comma-separated list of quoted, possibly
// weak, entity tags.
func Matches(ifMatch string, data []byte) bool {
	want := Sum(data)
	for _, tag := range strings.Split(ifMatch, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" {
			return true
		}
		tag = strings.TrimPrefix(tag, "W/")
		if strings.Trim(tag, `"`) == want {
			return true
		}
	}
	return false
}
