// Package hash provides the content fingerprints used across the pipeline:
// an order-sensitive signature over recipe id sequences (pagination loop
// detection) and a whitespace/case-insensitive text digest (comment dedup).
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// SignatureOfIDs returns the SHA-256 hex digest of the ids joined as
// comma-separated decimals. The signature is order-sensitive: a listing
// page counts as repeated only when it returns the same ids in the same
// order.
func SignatureOfIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

// NormalizeText collapses whitespace runs to single spaces, trims, and
// lowercases, so that two texts differing only in spacing or case share
// one identity.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// SumText returns the SHA-256 hex digest of the normalized text.
func SumText(s string) string {
	sum := sha256.Sum256([]byte(NormalizeText(s)))
	return hex.EncodeToString(sum[:])
}
