package graph

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashContentPrefix hashes the first 100 characters of content, per
// spec.md §4.9's intent-signature fallback rule.
func hashContentPrefix(content string) string {
	runes := []rune(content)
	if len(runes) > 100 {
		runes = runes[:100]
	}
	sum := sha256.Sum256([]byte(string(runes)))
	return "sha256:" + hex.EncodeToString(sum[:])
}
