package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ShortHash derives a compact stable fingerprint from the given parts,
// suitable for dedup keys. 64 bits of SHA-256 as lowercase hex.
func ShortHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:8])
}
