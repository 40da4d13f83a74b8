package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Bytes returns the hex-encoded SHA-256 digest of data. Artifact
// uploads carry it as metadata so the blob can be validated after the fact.
func SHA256Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
