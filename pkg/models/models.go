// Package models holds the value objects shared across the indexer
// server, the scanner client and the storage layer: row shapes
// persisted by the ingestor and the JSON DTOs exchanged over the HTTP
// API.
package models

// Block mirrors the blocks table: one row per consensus-valid header
// the ingestor has seen, including ones later orphaned by a reorg.
type Block struct {
	Height     int32
	Hash       [32]byte
	Header     []byte
	IsOrphaned bool
	CreatedAt  int64
}

// Transaction mirrors the transactions table.
type Transaction struct {
	Txid        [32]byte
	BlockHeight int32
	BlockIndex  int32
	IsCoinbase  bool
	RawTx       []byte
}

// TaprootOutput mirrors the taproot_outputs table: every Taproot
// (V1 witness program) output the ingestor has extracted, tagged with
// its 4-byte sp_prefix for server-side filtering.
type TaprootOutput struct {
	Txid         [32]byte
	Vout         int32
	BlockHeight  int32
	ScriptPubkey []byte
	AmountSats   int64
	XOnlyPubkey  [32]byte
	SPPrefix     int32
}

// ScanRequest is the body of POST /api/v1/scan.
type ScanRequest struct {
	ScanPubkey     string   `json:"scan_pubkey"`
	StartHeight    int32    `json:"start_height"`
	EndHeight      int32    `json:"end_height"`
	Prefixes       []string `json:"prefixes"`
	IncludeProofs  bool     `json:"include_proofs,omitempty"`
}

// Candidate is one row of ScanResponse.Candidates.
type Candidate struct {
	Txid         string `json:"txid"`
	Vout         int32  `json:"vout"`
	Amount       int64  `json:"amount"`
	ScriptPubkey string `json:"script_pubkey"`
	BlockHeight  int32  `json:"block_height"`
	BlockHash    string `json:"block_hash"`
	Timestamp    int64  `json:"timestamp"`
}

// ScanResponse is the body of a successful POST /api/v1/scan.
type ScanResponse struct {
	Candidates    []Candidate `json:"candidates"`
	ScannedBlocks []int32     `json:"scanned_blocks"`
	ServerTimeMs  uint64      `json:"server_time_ms"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Status     string `json:"status"`
	TipHeight  int32  `json:"tip_height"`
	Network    string `json:"network"`
}

// ErrorResponse is the body returned for 4xx/5xx API failures.
type ErrorResponse struct {
	Error string `json:"error"`
}
