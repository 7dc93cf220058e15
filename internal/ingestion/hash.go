package ingestion

import (
	"crypto/md5"
	"encoding/hex"
)

// ContentHash returns the MD5 hex digest of content's UTF-8 bytes. It is a
// duplicate fingerprint, not a security boundary.
func ContentHash(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}
