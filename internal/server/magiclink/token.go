// Package magiclink implements single-use passwordless login tokens:
// issuance of unguessable raw tokens and their atomic, exactly-once
// redemption against the record store.
package magiclink

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/mkorchagin/onboardchat/internal/common"
)

// tokenBytes gives 256 bits of entropy; base64url encoding turns it into a
// fixed-length raw token of tokenLength characters.
const (
	tokenBytes  = 32
	tokenLength = 43
)

// NewToken returns a fresh raw token and the store key derived from it.
// The raw value exists only in the issuance response; the store only ever
// sees the hash.
func NewToken() (raw, hash string) {
	raw = base64.RawURLEncoding.EncodeToString(common.GenerateRandByteArray(tokenBytes))
	return raw, HashToken(raw)
}

// HashToken derives the store key from a raw token: hex-encoded
// sha256 of the raw string. One-way, so read access to the store contents
// cannot be turned into a redeemable token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// validTokenShape reports whether raw could have been produced by NewToken.
// Malformed input is rejected before any store round trip.
func validTokenShape(raw string) bool {
	if len(raw) != tokenLength {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(raw)
	return err == nil
}
