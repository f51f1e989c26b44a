package bip352

import "github.com/btcsuite/btcd/btcec/v2"

// Label is an optional diversification index in 1..255. A nil Label
// means "no label" (data = shared secret alone); BIP-352 reserves 0 for
// that case, so Derive rejects an explicit 0 to preserve the bijection
// between the two encodings.
type Label = *uint8

// NewLabel wraps m into a Label, rejecting 0.
func NewLabel(m uint8) (Label, error) {
	if m == 0 {
		return nil, ErrInvalidInput("label 0 is reserved for the no-label case; pass nil instead")
	}
	return &m, nil
}

// DeriveOutput implements the BIP-352 output-key derivation: tweak the
// spend pubkey by a tagged hash of the shared secret (and label, if
// present), returning both the resulting X-only output key and the
// scalar tweak needed to spend it.
func DeriveOutput(sharedSecret [32]byte, spend SpendPubkey, label Label) (output [32]byte, tweak [32]byte, err error) {
	if label != nil && *label == 0 {
		return output, tweak, ErrInvalidInput("label 0 is reserved for the no-label case")
	}

	tweak = tweakBytes(sharedSecret, label)

	var t btcec.ModNScalar
	t.SetBytes(&tweak)

	spendPoint, perr := spend.fullEvenY()
	if perr != nil {
		return output, tweak, perr
	}

	var spendJacobian, tG, sum btcec.JacobianPoint
	spendPoint.AsJacobian(&spendJacobian)
	btcec.ScalarBaseMultNonConst(&t, &tG)
	btcec.AddNonConst(&spendJacobian, &tG, &sum)

	if sum.Z.IsZero() {
		return output, tweak, ErrCryptoError("output point is the point at infinity")
	}
	sum.ToAffine()

	output = sum.X.Bytes()
	return output, tweak, nil
}

// tweakBytes computes TaggedHash(T_OUTPUT, d) where d is the shared
// secret alone (no label) or the shared secret with a single trailing
// label byte appended (1..255).
func tweakBytes(sharedSecret [32]byte, label Label) [32]byte {
	if label == nil {
		return TaggedHash(TagOutput, sharedSecret[:])
	}
	data := make([]byte, 33)
	copy(data, sharedSecret[:])
	data[32] = *label
	return TaggedHash(TagOutput, data)
}

// prefixFromXOnly returns the big-endian first four bytes of an X-only
// pubkey, matching the server-side sp_prefix column exactly.
func prefixFromXOnly(xonly [32]byte) uint32 {
	return uint32(xonly[0])<<24 | uint32(xonly[1])<<16 | uint32(xonly[2])<<8 | uint32(xonly[3])
}
