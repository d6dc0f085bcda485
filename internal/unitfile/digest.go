package unitfile

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest returns the hex BLAKE2b-256 digest of content.
func Digest(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}
