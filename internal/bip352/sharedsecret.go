package bip352

import "github.com/btcsuite/btcd/btcec/v2"

// ComputeSharedSecret implements the BIP-352 shared-secret accumulator:
// for an ordered set of input public keys, ECDH each against the scan
// secret, tagged-hash the x-coordinate of each resulting point into a
// scalar, and sum the scalars mod n.
//
// Addition in the scalar field is commutative, so the order inputs are
// accumulated in does not change the result; callers are still expected
// to present BIP-352's canonical input ordering so spending and
// scanning parties agree on which output each candidate corresponds to.
func ComputeSharedSecret(key *ScanKey, inputs []InputPubkey) ([32]byte, error) {
	if len(inputs) == 0 {
		return [32]byte{}, ErrInvalidInput("input set must not be empty")
	}

	var acc btcec.ModNScalar

	for i, in := range inputs {
		if in.PubKey == nil {
			return [32]byte{}, ErrInvalidKey("input %d has no public key", i)
		}

		var pubJacobian btcec.JacobianPoint
		in.PubKey.AsJacobian(&pubJacobian)

		var shared btcec.JacobianPoint
		btcec.ScalarMultNonConst(&key.secretKey().Key, &pubJacobian, &shared)
		if shared.Z.IsZero() {
			return [32]byte{}, ErrCryptoError("ecdh product is the point at infinity for input %d", i)
		}
		shared.ToAffine()

		xBytes := shared.X.Bytes()

		tBytes := TaggedHash(TagSharedSecret, xBytes[:])
		var t btcec.ModNScalar
		t.SetBytes(&tBytes)
		if t.IsZero() {
			return [32]byte{}, ErrCryptoError("shared-secret scalar reduced to zero for input %d", i)
		}

		acc.Add(&t)
	}

	return acc.Bytes(), nil
}
