// Package fileid derives stable identifiers for source documents and their content.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "doc:"

// DocID returns a stable document ID for the given path. The same cleaned absolute
// path always yields the same ID, so ledger rows for a file can be compared across runs.
func DocID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return prefix + hex.EncodeToString(hash[:])
}

// ContentHash returns the hex SHA-256 of content. The ledger uses it to tell whether a
// source file changed between ingestion runs.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
