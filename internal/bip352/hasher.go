package bip352

import "crypto/sha256"

// Tag constants for BIP-352 domain-separated hashing. These MUST match
// the BIP text exactly — no trailing whitespace, no case change.
const (
	TagSharedSecret = "BIP0352/SharedSecret"
	TagOutput       = "BIP0352/Outputs"
)

// TaggedHash computes SHA256(SHA256(tag) || SHA256(tag) || data), the
// BIP-340-style domain-separated hash used throughout BIP-352.
func TaggedHash(tag string, data []byte) [32]byte {
	tagHash := sha256.Sum256([]byte(tag))

	h := sha256.New()
	h.Write(tagHash[:])
	h.Write(tagHash[:])
	h.Write(data)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
