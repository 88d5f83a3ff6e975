package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// maxInlineInputLen is the longest string that is hashed as is; longer
// inputs (data URIs, page dumps) are replaced by their own digest first.
const maxInlineInputLen = 512

// HashKey derives a deterministic cache key from a prefix and a JSON-serializable input.
// Map keys are sorted by encoding/json, so equal inputs always produce equal keys.
func HashKey(prefix string, input any) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal cache key input: %w", err)
	}
	sum := sha256.Sum256(payload)
	return prefix + ":" + hex.EncodeToString(sum[:]), nil
}

// Sign shortens a potentially large input to a stable fingerprint suitable for hashing.
func Sign(s string) string {
	if len(s) <= maxInlineInputLen {
		return s
	}
	sum := sha256.Sum256([]byte(s))
	return "sha256:" + hex.EncodeToString(sum[:])
}
