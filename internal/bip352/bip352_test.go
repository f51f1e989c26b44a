package bip352

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
)

// testKeyPair builds a deterministic (secret, compressed pubkey) pair
// from a single non-zero seed byte, used to fabricate inputs and
// recipient keys without touching a real RNG.
func testKeyPair(t *testing.T, seed byte) (*btcec.PrivateKey, *btcec.PublicKey) {
	t.Helper()
	var raw [32]byte
	raw[31] = seed
	raw[0] = 0x01 // keep well clear of the zero scalar and curve order
	priv, pub := btcec.PrivKeyFromBytes(raw[:])
	return priv, pub
}

func testInputs(t *testing.T, seeds ...byte) []InputPubkey {
	t.Helper()
	inputs := make([]InputPubkey, 0, len(seeds))
	for _, s := range seeds {
		_, pub := testKeyPair(t, s)
		inputs = append(inputs, InputPubkey{PubKey: pub, IsTaproot: s%2 == 0})
	}
	return inputs
}

func testSpendPubkey(t *testing.T, seed byte) SpendPubkey {
	t.Helper()
	_, pub := testKeyPair(t, seed)
	var xonly [32]byte
	copy(xonly[:], pub.SerializeCompressed()[1:])
	spend, err := ParseSpendPubkey(xonly[:])
	if err != nil {
		t.Fatalf("ParseSpendPubkey: %v", err)
	}
	return spend
}

func taprootScript(xonly [32]byte) []byte {
	out := make([]byte, 0, 34)
	out = append(out, 0x51, 0x20)
	out = append(out, xonly[:]...)
	return out
}

// TaggedHash must be deterministic and domain-separated: the same tag
// and data always produce the same digest, and different tags produce
// different digests for identical data.
func TestTaggedHash_DeterministicAndSeparated(t *testing.T) {
	data := []byte("some shared x-coordinate")

	a := TaggedHash(TagSharedSecret, data)
	b := TaggedHash(TagSharedSecret, data)
	if a != b {
		t.Errorf("TaggedHash not deterministic: %x != %x", a, b)
	}

	c := TaggedHash(TagOutput, data)
	if a == c {
		t.Errorf("TaggedHash did not separate tags: %x == %x", a, c)
	}
}

func TestNewScanKey_RejectsWrongLengthAndZero(t *testing.T) {
	if _, err := NewScanKey(make([]byte, 31)); err == nil {
		t.Errorf("expected error for 31-byte secret")
	}
	if _, err := NewScanKey(make([]byte, 32)); err == nil {
		t.Errorf("expected error for zero secret")
	}

	var raw [32]byte
	raw[31] = 1
	if _, err := NewScanKey(raw[:]); err != nil {
		t.Errorf("unexpected error for valid secret: %v", err)
	}
}

func TestComputeSharedSecret_EmptyInputsRejected(t *testing.T) {
	key, err := NewScanKey(bytes.Repeat([]byte{0x02}, 32))
	if err != nil {
		t.Fatalf("NewScanKey: %v", err)
	}
	if _, err := ComputeSharedSecret(key, nil); err == nil {
		t.Errorf("expected error for empty input set")
	}
}

// Invariant: the shared secret is a pure function of (scan secret,
// input set) — recomputing it twice from the same material must yield
// identical bytes.
func TestComputeSharedSecret_Deterministic(t *testing.T) {
	key, err := NewScanKey(bytes.Repeat([]byte{0x03}, 32))
	if err != nil {
		t.Fatalf("NewScanKey: %v", err)
	}
	inputs := testInputs(t, 1, 2, 3)

	s1, err := ComputeSharedSecret(key, inputs)
	if err != nil {
		t.Fatalf("ComputeSharedSecret: %v", err)
	}
	s2, err := ComputeSharedSecret(key, inputs)
	if err != nil {
		t.Fatalf("ComputeSharedSecret: %v", err)
	}
	if s1 != s2 {
		t.Errorf("ComputeSharedSecret not deterministic: %x != %x", s1, s2)
	}
}

// Invariant: a single malformed input key surfaces as InvalidKey, not
// a panic or a silently wrong secret.
func TestComputeSharedSecret_RejectsNilPubKey(t *testing.T) {
	key, err := NewScanKey(bytes.Repeat([]byte{0x04}, 32))
	if err != nil {
		t.Fatalf("NewScanKey: %v", err)
	}
	if _, err := ComputeSharedSecret(key, []InputPubkey{{}}); err == nil {
		t.Errorf("expected error for nil pubkey input")
	} else if cerr, ok := err.(*Error); !ok || cerr.Kind != KindInvalidKey {
		t.Errorf("expected KindInvalidKey, got %v", err)
	}
}

func TestNewLabel_RejectsZero(t *testing.T) {
	if _, err := NewLabel(0); err == nil {
		t.Errorf("expected error for label 0")
	}
	if _, err := NewLabel(1); err != nil {
		t.Errorf("unexpected error for label 1: %v", err)
	}
}

// Invariant: distinct labels applied to the same shared secret and
// spend key must derive distinct outputs — otherwise label-based
// diversification collapses to a single address.
func TestDeriveOutput_LabelsAreDistinct(t *testing.T) {
	var sharedSecret [32]byte
	copy(sharedSecret[:], bytes.Repeat([]byte{0x05}, 32))
	spend := testSpendPubkey(t, 9)

	noLabel, _, err := DeriveOutput(sharedSecret, spend, nil)
	if err != nil {
		t.Fatalf("DeriveOutput(no label): %v", err)
	}

	seen := map[[32]byte]uint8{}
	seen[noLabel] = 0

	for m := uint8(1); m <= 10; m++ {
		label, err := NewLabel(m)
		if err != nil {
			t.Fatalf("NewLabel(%d): %v", m, err)
		}
		out, _, err := DeriveOutput(sharedSecret, spend, label)
		if err != nil {
			t.Fatalf("DeriveOutput(label %d): %v", m, err)
		}
		if prior, ok := seen[out]; ok {
			t.Errorf("label %d collided with label %d: output %x", m, prior, out)
		}
		seen[out] = m
	}
}

func TestDeriveOutput_RejectsReservedLabelZero(t *testing.T) {
	var sharedSecret [32]byte
	spend := testSpendPubkey(t, 1)
	var zero uint8
	if _, _, err := DeriveOutput(sharedSecret, spend, &zero); err == nil {
		t.Errorf("expected error for explicit label 0")
	}
}

// Round-trip: deriving an output with a given label, then building a
// Taproot script around it, must be recognized by CheckOutput as a
// match for exactly that label.
func TestCheckOutput_RoundTrip(t *testing.T) {
	key, err := NewScanKey(bytes.Repeat([]byte{0x06}, 32))
	if err != nil {
		t.Fatalf("NewScanKey: %v", err)
	}
	inputs := testInputs(t, 11, 12)
	spend := testSpendPubkey(t, 13)

	label, err := NewLabel(7)
	if err != nil {
		t.Fatalf("NewLabel: %v", err)
	}

	sharedSecret, err := ComputeSharedSecret(key, inputs)
	if err != nil {
		t.Fatalf("ComputeSharedSecret: %v", err)
	}
	output, wantTweak, err := DeriveOutput(sharedSecret, spend, label)
	if err != nil {
		t.Fatalf("DeriveOutput: %v", err)
	}

	script := taprootScript(output)
	labels := []Label{nil, mustLabel(t, 1), mustLabel(t, 7), mustLabel(t, 42)}

	result, err := key.CheckOutput(script, spend, inputs, labels)
	if err != nil {
		t.Fatalf("CheckOutput: %v", err)
	}
	if result == nil {
		t.Fatalf("expected a match, got nil")
	}
	if *result.Label != 7 {
		t.Errorf("matched wrong label: got %d, want 7", *result.Label)
	}
	if result.Tweak != wantTweak {
		t.Errorf("tweak mismatch: got %x, want %x", result.Tweak, wantTweak)
	}
	if result.OutputPubkey != output {
		t.Errorf("output pubkey mismatch: got %x, want %x", result.OutputPubkey, output)
	}
}

// A script for a different scan key's output must never match.
func TestCheckOutput_NoFalsePositiveAcrossManySamples(t *testing.T) {
	key, err := NewScanKey(bytes.Repeat([]byte{0x07}, 32))
	if err != nil {
		t.Fatalf("NewScanKey: %v", err)
	}
	spend := testSpendPubkey(t, 20)
	labels := []Label{nil, mustLabel(t, 1), mustLabel(t, 2), mustLabel(t, 3)}

	falsePositives := 0
	const samples = 1000

	for i := 0; i < samples; i++ {
		inputs := testInputs(t, byte(i%250+1), byte((i*7)%250+1))

		otherKey, err := NewScanKey(bytes.Repeat([]byte{byte(i%250 + 1)}, 32))
		if err != nil {
			t.Fatalf("NewScanKey: %v", err)
		}
		otherSecret, err := ComputeSharedSecret(otherKey, inputs)
		if err != nil {
			t.Fatalf("ComputeSharedSecret: %v", err)
		}
		otherOutput, _, err := DeriveOutput(otherSecret, spend, nil)
		if err != nil {
			t.Fatalf("DeriveOutput: %v", err)
		}

		result, err := key.CheckOutput(taprootScript(otherOutput), spend, inputs, labels)
		if err != nil {
			t.Fatalf("CheckOutput: %v", err)
		}
		if result != nil {
			falsePositives++
		}
	}

	if falsePositives*100 > samples {
		t.Errorf("false positive rate too high: %d/%d", falsePositives, samples)
	}
}

func TestCheckOutput_NonTaprootScriptNoError(t *testing.T) {
	key, err := NewScanKey(bytes.Repeat([]byte{0x08}, 32))
	if err != nil {
		t.Fatalf("NewScanKey: %v", err)
	}
	spend := testSpendPubkey(t, 1)
	inputs := testInputs(t, 1)

	scripts := [][]byte{
		nil,
		{0x76, 0xa9, 0x14},
		append([]byte{0x51, 0x20}, make([]byte, 31)...), // wrong length
	}
	for _, script := range scripts {
		result, err := key.CheckOutput(script, spend, inputs, []Label{nil})
		if err != nil {
			t.Errorf("unexpected error for non-taproot script: %v", err)
		}
		if result != nil {
			t.Errorf("expected no match for non-taproot script")
		}
	}
}

func TestIsTaprootScript(t *testing.T) {
	var xonly [32]byte
	if !IsTaprootScript(taprootScript(xonly)) {
		t.Errorf("expected well-formed taproot script to be recognized")
	}
	if IsTaprootScript([]byte{0x51, 0x20}) {
		t.Errorf("truncated script must not be recognized")
	}
}

// Invariant: ComputePrefixes must produce exactly maxLabel+1 entries,
// one of which equals the prefix of the no-label output, matching
// what a CheckOutput round-trip derives independently.
func TestComputePrefixes_MatchesDerivedOutputs(t *testing.T) {
	key, err := NewScanKey(bytes.Repeat([]byte{0x09}, 32))
	if err != nil {
		t.Fatalf("NewScanKey: %v", err)
	}
	inputs := testInputs(t, 31, 32, 33)
	spend := testSpendPubkey(t, 34)

	const maxLabel = 5
	prefixes, err := ComputePrefixes(key, spend, inputs, maxLabel)
	if err != nil {
		t.Fatalf("ComputePrefixes: %v", err)
	}
	if len(prefixes) != maxLabel+1 {
		t.Fatalf("expected %d prefixes, got %d", maxLabel+1, len(prefixes))
	}

	sharedSecret, err := ComputeSharedSecret(key, inputs)
	if err != nil {
		t.Fatalf("ComputeSharedSecret: %v", err)
	}
	noLabelOutput, _, err := DeriveOutput(sharedSecret, spend, nil)
	if err != nil {
		t.Fatalf("DeriveOutput: %v", err)
	}
	if prefixes[0] != PrefixFromXOnly(noLabelOutput) {
		t.Errorf("prefix[0] mismatch: got %x, want %x", prefixes[0], PrefixFromXOnly(noLabelOutput))
	}

	for m := uint8(1); m <= maxLabel; m++ {
		label, err := NewLabel(m)
		if err != nil {
			t.Fatalf("NewLabel(%d): %v", m, err)
		}
		out, _, err := DeriveOutput(sharedSecret, spend, label)
		if err != nil {
			t.Fatalf("DeriveOutput(%d): %v", m, err)
		}
		if prefixes[m] != PrefixFromXOnly(out) {
			t.Errorf("prefix[%d] mismatch: got %x, want %x", m, prefixes[m], PrefixFromXOnly(out))
		}
	}
}

func TestComputePrefixes_MaxLabelCeiling(t *testing.T) {
	key, err := NewScanKey(bytes.Repeat([]byte{0x0a}, 32))
	if err != nil {
		t.Fatalf("NewScanKey: %v", err)
	}
	inputs := testInputs(t, 1)
	spend := testSpendPubkey(t, 2)

	prefixes, err := ComputePrefixes(key, spend, inputs, 255)
	if err != nil {
		t.Fatalf("ComputePrefixes: %v", err)
	}
	if len(prefixes) != 256 {
		t.Fatalf("expected 256 prefixes for maxLabel=255, got %d", len(prefixes))
	}
}

// Edge cases on input-set size: single input and a wide 100-input set
// must both succeed and produce distinct shared secrets from each
// other.
func TestComputeSharedSecret_SingleAndWideInputSets(t *testing.T) {
	key, err := NewScanKey(bytes.Repeat([]byte{0x0b}, 32))
	if err != nil {
		t.Fatalf("NewScanKey: %v", err)
	}

	single := testInputs(t, 1)
	s1, err := ComputeSharedSecret(key, single)
	if err != nil {
		t.Fatalf("ComputeSharedSecret(single): %v", err)
	}

	seeds := make([]byte, 100)
	for i := range seeds {
		seeds[i] = byte(i + 1)
	}
	wide := testInputs(t, seeds...)
	s2, err := ComputeSharedSecret(key, wide)
	if err != nil {
		t.Fatalf("ComputeSharedSecret(wide): %v", err)
	}

	if s1 == s2 {
		t.Errorf("single- and wide-input shared secrets unexpectedly equal")
	}
}

func mustLabel(t *testing.T, m uint8) Label {
	t.Helper()
	label, err := NewLabel(m)
	if err != nil {
		t.Fatalf("NewLabel(%d): %v", m, err)
	}
	return label
}
