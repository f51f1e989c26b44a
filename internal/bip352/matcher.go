package bip352

import "bytes"

// ScanResult is the outcome of a successful candidate match: everything
// a scanner needs to recognize and later spend a payment. Txid, Vout
// and AmountSats are zero here and are filled in by the caller from the
// candidate's server-side metadata.
type ScanResult struct {
	Txid        [32]byte
	Vout        uint32
	AmountSats  uint64
	Label       Label
	Tweak       [32]byte
	OutputPubkey [32]byte
}

// taprootScriptLen is the fixed length of a V1 witness program script:
// OP_1 (0x51) OP_DATA_32 (0x20) <32-byte x-only pubkey>.
const taprootScriptLen = 34

// IsTaprootScript reports whether script is a well-formed Taproot
// scriptPubKey, without validating the embedded key.
func IsTaprootScript(script []byte) bool {
	return len(script) == taprootScriptLen && script[0] == 0x51 && script[1] == 0x20
}

// CheckOutput implements the CandidateMatcher contract: classify script,
// and if it is Taproot, try each label in order until one derives the
// same output key. Returns (nil, nil) on no-match — that is the common
// case, not an error.
func (k *ScanKey) CheckOutput(script []byte, spend SpendPubkey, inputs []InputPubkey, labels []Label) (*ScanResult, error) {
	if !IsTaprootScript(script) {
		return nil, nil
	}

	var candidate [32]byte
	copy(candidate[:], script[2:34])
	if _, err := ParseSpendPubkey(candidate[:]); err != nil {
		return nil, ErrInvalidKey("candidate script pubkey: %v", err)
	}

	sharedSecret, err := ComputeSharedSecret(k, inputs)
	if err != nil {
		return nil, err
	}

	for _, label := range labels {
		output, tweak, err := DeriveOutput(sharedSecret, spend, label)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(output[:], candidate[:]) {
			return &ScanResult{
				Label:        label,
				Tweak:        tweak,
				OutputPubkey: output,
			}, nil
		}
	}

	return nil, nil
}
