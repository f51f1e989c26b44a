package bip352

// ComputePrefixes implements the PrefixComputer contract: for a
// transaction's inputs plus a recipient's key pair, enumerate the
// 4-byte big-endian prefix of each expected output pubkey for
// label in {absent, 1, 2, ..., maxLabel}. The result is exactly the
// sp_prefix value the ingestor stores per output, so the server-side
// filter is exact on this 32-bit fingerprint.
func ComputePrefixes(key *ScanKey, spend SpendPubkey, inputs []InputPubkey, maxLabel uint8) ([]uint32, error) {
	sharedSecret, err := ComputeSharedSecret(key, inputs)
	if err != nil {
		return nil, err
	}

	prefixes := make([]uint32, 0, int(maxLabel)+1)

	output, _, err := DeriveOutput(sharedSecret, spend, nil)
	if err != nil {
		return nil, err
	}
	prefixes = append(prefixes, prefixFromXOnly(output))

	for m := uint8(1); m <= maxLabel; m++ {
		label, err := NewLabel(m)
		if err != nil {
			return nil, err
		}
		output, _, err := DeriveOutput(sharedSecret, spend, label)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, prefixFromXOnly(output))

		if m == 255 {
			break // uint8 wraps; maxLabel == 255 is the ceiling anyway
		}
	}

	return prefixes, nil
}

// PrefixFromXOnly exposes the 4-byte big-endian prefix computation for
// callers outside this package (the ingestor uses it to populate
// sp_prefix for every Taproot output it stores).
func PrefixFromXOnly(xonly [32]byte) uint32 {
	return prefixFromXOnly(xonly)
}
