// Package store implements a thin storage port: blocks/transactions/
// taproot_outputs persistence and the prefix-filtered candidate query,
// so the ingestor and the HTTP API can be tested against an in-memory
// fake instead of a live Postgres instance.
package store

import (
	"context"
	"errors"

	"github.com/rawblock/whisper-indexer/pkg/models"
)

// ErrNotFound is returned by lookups that find nothing; callers treat
// it as "no-op", never as a hard failure.
var ErrNotFound = errors.New("store: not found")

// CandidateFilter bounds a candidate query: an inclusive height range
// plus the set of sp_prefix values to match against.
type CandidateFilter struct {
	StartHeight int32
	EndHeight   int32
	Prefixes    []int32
}

// Candidate is one row returned by QueryCandidates, joined against its
// block for the hash the API response needs.
type Candidate struct {
	Txid         [32]byte
	Vout         int32
	Amount       int64
	ScriptPubkey []byte
	BlockHeight  int32
	BlockHash    [32]byte
	CreatedAt    int64
}

// Store is the storage port the BlockIngestor, CandidateQuery and
// StatusQuery components depend on. A Postgres-backed implementation
// and an in-memory fake both satisfy it.
type Store interface {
	// PersistBlock upserts the block row together with every transaction
	// and Taproot output it carries, in a single atomic transaction: per
	// spec.md §4.6/§5, either the whole block becomes visible to readers
	// or none of it does. Conflicts (on hash/txid/(txid,vout)) are no-ops,
	// matching re-ingest of an already-seen block.
	PersistBlock(ctx context.Context, b models.Block, txs []models.Transaction, outputs []models.TaprootOutput) error

	// MarkOrphaned flags every block at height >= fromHeight as orphaned,
	// used when a reorg is detected.
	MarkOrphaned(ctx context.Context, fromHeight int32) error

	// BlockAtHeight returns the non-orphaned block stored at height, if any.
	BlockAtHeight(ctx context.Context, height int32) (models.Block, error)

	// QueryCandidates returns every Taproot output in the given height
	// range whose sp_prefix matches the filter.
	QueryCandidates(ctx context.Context, filter CandidateFilter) ([]Candidate, error)

	// TipHeight returns the max height over non-orphaned blocks, or 0 if none exist.
	TipHeight(ctx context.Context) (int32, error)
}
