package bip352

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// ScanKey wraps the scan secret a recipient holds in memory and the
// X-only public key it corresponds to. It must never be logged or
// persisted by the core.
type ScanKey struct {
	secret *btcec.PrivateKey
	public [32]byte
}

// NewScanKey builds a ScanKey from a 32-byte secret, rejecting the
// zero scalar.
func NewScanKey(secret []byte) (*ScanKey, error) {
	if len(secret) != 32 {
		return nil, ErrInvalidKey("scan secret must be 32 bytes, got %d", len(secret))
	}

	priv, pub := btcec.PrivKeyFromBytes(secret)
	if priv.Key.IsZero() {
		return nil, ErrInvalidKey("scan secret is zero")
	}

	var xonly [32]byte
	copy(xonly[:], schnorr.SerializePubKey(pub))

	return &ScanKey{secret: priv, public: xonly}, nil
}

// Public returns the X-only scan public key, P_s = x(s*G).
func (k *ScanKey) Public() [32]byte {
	return k.public
}

// Secret exposes the underlying private key for ECDH. Callers must not
// serialize or log the result.
func (k *ScanKey) secretKey() *btcec.PrivateKey {
	return k.secret
}

// SpendPubkey is the 32-byte X-only spend public key, published
// alongside the scan key. It carries no secret material here; the
// optional spend secret (needed only to actually sweep funds) is kept
// by the caller and never touched by this package.
type SpendPubkey [32]byte

// ParseSpendPubkey validates and wraps a 32-byte X-only spend key.
func ParseSpendPubkey(data []byte) (SpendPubkey, error) {
	var out SpendPubkey
	if len(data) != 32 {
		return out, ErrInvalidKey("spend pubkey must be 32 bytes, got %d", len(data))
	}
	if _, err := schnorr.ParsePubKey(data); err != nil {
		return out, ErrInvalidKey("spend pubkey: %v", err)
	}
	copy(out[:], data)
	return out, nil
}

// fullEvenY lifts a spend pubkey back into a full curve point assuming
// even Y parity, per the BIP-340/BIP-352 convention.
func (p SpendPubkey) fullEvenY() (*btcec.PublicKey, error) {
	pub, err := schnorr.ParsePubKey(p[:])
	if err != nil {
		return nil, ErrInvalidKey("spend pubkey: %v", err)
	}
	return pub, nil
}

// InputPubkey is the full (33- or 65-byte) secp256k1 point for one
// transaction input, plus an is_taproot flag carried through the API
// but never branched on here: the shared-secret computation performs
// unconditional ECDH on the full point regardless of its value.
type InputPubkey struct {
	PubKey    *btcec.PublicKey
	IsTaproot bool
}

// ParseInputPubkey decodes a compressed or uncompressed secp256k1
// point for use as one ECDH input.
func ParseInputPubkey(data []byte, isTaproot bool) (InputPubkey, error) {
	pub, err := btcec.ParsePubKey(data)
	if err != nil {
		return InputPubkey{}, ErrInvalidKey("input pubkey: %v", err)
	}
	return InputPubkey{PubKey: pub, IsTaproot: isTaproot}, nil
}

// Address bundles the two public keys a Silent Payment recipient
// publishes out-of-band. Label-address bech32m encoding is out of
// scope here, so this stays a plain value object.
type Address struct {
	ScanPubkey  [32]byte
	SpendPubkey SpendPubkey
	IsLabeled   bool
	Label       *uint8
}
