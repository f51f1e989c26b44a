package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rawblock/whisper-indexer/pkg/models"
)

// MemoryStore is an in-memory Store fake, used by tests exercising the
// BlockIngestor and candidate-query logic without a live Postgres
// instance.
type MemoryStore struct {
	mu      sync.Mutex
	blocks  map[[32]byte]models.Block
	byHeight map[int32][][32]byte
	txs     map[[32]byte]models.Transaction
	outputs []models.TaprootOutput
}

// NewMemoryStore returns an empty MemoryStore ready for use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blocks:   make(map[[32]byte]models.Block),
		byHeight: make(map[int32][][32]byte),
		txs:      make(map[[32]byte]models.Transaction),
	}
}

// PersistBlock applies the block, its transactions and their Taproot
// outputs under a single mutex acquisition: readers never observe a
// block with some transactions indexed and others missing, mirroring
// the single-database-transaction contract a real engine provides.
func (m *MemoryStore) PersistBlock(_ context.Context, b models.Block, txs []models.Transaction, outputs []models.TaprootOutput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.blocks[b.Hash]; !exists {
		m.blocks[b.Hash] = b
		m.byHeight[b.Height] = append(m.byHeight[b.Height], b.Hash)
	}

	for _, tx := range txs {
		if _, exists := m.txs[tx.Txid]; !exists {
			m.txs[tx.Txid] = tx
		}
	}

	for _, out := range outputs {
		dup := false
		for _, existing := range m.outputs {
			if existing.Txid == out.Txid && existing.Vout == out.Vout {
				dup = true
				break
			}
		}
		if !dup {
			m.outputs = append(m.outputs, out)
		}
	}

	return nil
}

func (m *MemoryStore) MarkOrphaned(_ context.Context, fromHeight int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for height, hashes := range m.byHeight {
		if height < fromHeight {
			continue
		}
		for _, hash := range hashes {
			b := m.blocks[hash]
			b.IsOrphaned = true
			m.blocks[hash] = b
		}
	}
	return nil
}

func (m *MemoryStore) BlockAtHeight(_ context.Context, height int32) (models.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, hash := range m.byHeight[height] {
		b := m.blocks[hash]
		if !b.IsOrphaned {
			return b, nil
		}
	}
	return models.Block{}, ErrNotFound
}

func (m *MemoryStore) QueryCandidates(_ context.Context, filter CandidateFilter) ([]Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wantPrefix := make(map[int32]bool, len(filter.Prefixes))
	for _, p := range filter.Prefixes {
		wantPrefix[p] = true
	}

	var out []Candidate
	for _, o := range m.outputs {
		if o.BlockHeight < filter.StartHeight || o.BlockHeight > filter.EndHeight {
			continue
		}
		if !wantPrefix[o.SPPrefix] {
			continue
		}
		block, err := m.blockAtHeightLocked(o.BlockHeight)
		if err != nil {
			continue // orphaned or unknown block: excluded per is_orphaned=false contract
		}
		out = append(out, Candidate{
			Txid:         o.Txid,
			Vout:         o.Vout,
			Amount:       o.AmountSats,
			ScriptPubkey: o.ScriptPubkey,
			BlockHeight:  o.BlockHeight,
			BlockHash:    block.Hash,
			CreatedAt:    block.CreatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockHeight != out[j].BlockHeight {
			return out[i].BlockHeight < out[j].BlockHeight
		}
		if out[i].Txid != out[j].Txid {
			return string(out[i].Txid[:]) < string(out[j].Txid[:])
		}
		return out[i].Vout < out[j].Vout
	})

	if out == nil {
		out = []Candidate{}
	}
	return out, nil
}

func (m *MemoryStore) blockAtHeightLocked(height int32) (models.Block, error) {
	for _, hash := range m.byHeight[height] {
		b := m.blocks[hash]
		if !b.IsOrphaned {
			return b, nil
		}
	}
	return models.Block{}, ErrNotFound
}

func (m *MemoryStore) TipHeight(_ context.Context) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tip int32
	for height, hashes := range m.byHeight {
		for _, hash := range hashes {
			if !m.blocks[hash].IsOrphaned && height > tip {
				tip = height
			}
		}
	}
	return tip, nil
}
