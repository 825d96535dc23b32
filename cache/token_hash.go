package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken shortens a token value to a fixed-size cache key. Signed tokens
// run long; hashing also keeps raw token material out of the cache keyspace.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
