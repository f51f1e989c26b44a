package store

import (
	"context"
	"testing"

	"github.com/rawblock/whisper-indexer/pkg/models"
)

func TestMemoryStore_PrefixIndexingRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var blockHash [32]byte
	blockHash[0] = 0xaa

	var txid [32]byte
	txid[0] = 0xbb

	var xonly [32]byte
	xonly[0], xonly[1], xonly[2], xonly[3] = 0xaa, 0xbb, 0xcc, 0xdd

	block := models.Block{Height: 100, Hash: blockHash, Header: []byte("header")}
	tx := models.Transaction{Txid: txid, BlockHeight: 100, BlockIndex: 0, RawTx: []byte("tx")}

	script := append([]byte{0x51, 0x20}, xonly[:]...)
	out := models.TaprootOutput{
		Txid:         txid,
		Vout:         0,
		BlockHeight:  100,
		ScriptPubkey: script,
		AmountSats:   50000,
		XOnlyPubkey:  xonly,
		SPPrefix:     int32(uint32(0xaa)<<24 | uint32(0xbb)<<16 | uint32(0xcc)<<8 | uint32(0xdd)),
	}

	if err := s.PersistBlock(ctx, block, []models.Transaction{tx}, []models.TaprootOutput{out}); err != nil {
		t.Fatalf("PersistBlock: %v", err)
	}

	candidates, err := s.QueryCandidates(ctx, CandidateFilter{
		StartHeight: 100,
		EndHeight:   100,
		Prefixes:    []int32{out.SPPrefix},
	})
	if err != nil {
		t.Fatalf("QueryCandidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected exactly one candidate, got %d", len(candidates))
	}
	got := candidates[0]
	if got.Txid != txid {
		t.Errorf("txid mismatch: got %x, want %x", got.Txid, txid)
	}
	if got.BlockHash != blockHash {
		t.Errorf("block hash mismatch: got %x, want %x", got.BlockHash, blockHash)
	}
	if string(got.ScriptPubkey) != string(script) {
		t.Errorf("script mismatch")
	}
}

func TestMemoryStore_MarkOrphanedExcludesFromQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var hash [32]byte
	hash[0] = 0x01
	var txid [32]byte
	txid[0] = 0x02

	block := models.Block{Height: 50, Hash: hash}
	out := models.TaprootOutput{
		Txid: txid, Vout: 0, BlockHeight: 50, SPPrefix: 42,
		ScriptPubkey: []byte{0x51, 0x20},
	}
	if err := s.PersistBlock(ctx, block, nil, []models.TaprootOutput{out}); err != nil {
		t.Fatalf("PersistBlock: %v", err)
	}

	if err := s.MarkOrphaned(ctx, 50); err != nil {
		t.Fatalf("MarkOrphaned: %v", err)
	}

	candidates, err := s.QueryCandidates(ctx, CandidateFilter{StartHeight: 0, EndHeight: 100, Prefixes: []int32{42}})
	if err != nil {
		t.Fatalf("QueryCandidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected orphaned block's outputs excluded, got %d candidates", len(candidates))
	}

	tip, err := s.TipHeight(ctx)
	if err != nil {
		t.Fatalf("TipHeight: %v", err)
	}
	if tip != 0 {
		t.Errorf("expected tip height 0 after orphaning only block, got %d", tip)
	}
}

func TestMemoryStore_PersistIsIdempotentOnConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var hash [32]byte
	hash[0] = 0x05

	if err := s.PersistBlock(ctx, models.Block{Height: 1, Hash: hash, Header: []byte("a")}, nil, nil); err != nil {
		t.Fatalf("PersistBlock: %v", err)
	}
	if err := s.PersistBlock(ctx, models.Block{Height: 1, Hash: hash, Header: []byte("b")}, nil, nil); err != nil {
		t.Fatalf("PersistBlock (re-ingest): %v", err)
	}

	b, err := s.BlockAtHeight(ctx, 1)
	if err != nil {
		t.Fatalf("BlockAtHeight: %v", err)
	}
	if string(b.Header) != "a" {
		t.Errorf("expected first insert to win on conflict, got header %q", b.Header)
	}
}
