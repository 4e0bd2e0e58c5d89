package journal

import (
	"crypto/sha256"
	"encoding/hex"
)

// truncate cuts s to maxBytes. When it cuts, it also returns the original
// size and its sha256 so the full payload can still be identified.
func truncate(s string, maxBytes int) (string, bool, int, string) {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s, false, len(s), ""
	}
	sum := sha256.Sum256([]byte(s))
	return s[:maxBytes], true, len(s), hex.EncodeToString(sum[:])
}
