// Package ingest implements the BlockIngestor: a ZMQ rawblock
// subscriber that consensus-decodes incoming blocks, extracts every
// Taproot output, and persists blocks/transactions/taproot_outputs
// atomically per block.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/go-zeromq/zmq4"

	"github.com/rawblock/whisper-indexer/internal/bip352"
	"github.com/rawblock/whisper-indexer/internal/bitcoin"
	"github.com/rawblock/whisper-indexer/internal/metrics"
	"github.com/rawblock/whisper-indexer/internal/store"
	"github.com/rawblock/whisper-indexer/pkg/models"
)

// BlockEventSink receives a notification once a block has been fully
// persisted, for the diagnostics websocket hub. Defined in terms of
// primitives rather than a shared struct to avoid an api<->ingest
// import cycle.
type BlockEventSink interface {
	BroadcastBlockIndexed(height int32, hash string, taprootOutputs int)
}

const rawBlockTopic = "rawblock"

// Ingestor runs the BlockIngestor state machine: Received -> Decoded ->
// Validated -> Persisted. It is the one long-lived task that writes to
// the store; the HTTP query path only reads.
type Ingestor struct {
	store   store.Store
	btc     *bitcoin.Client // optional; nil skips RPC height backfill and reorg walkback
	zmqAddr string
	events  BlockEventSink // optional; nil disables the diagnostics push
}

// NewIngestor builds an Ingestor. btc may be nil, in which case BIP-34
// extraction failures leave height at 0 and reorg walkback is skipped.
// events may be nil.
func NewIngestor(st store.Store, btc *bitcoin.Client, zmqAddr string, events BlockEventSink) *Ingestor {
	return &Ingestor{store: st, btc: btc, zmqAddr: zmqAddr, events: events}
}

// Run subscribes to the block stream and processes messages until ctx
// is canceled. It is not cancellable mid-block: the current block's
// transaction is always allowed to finish or abort before Run returns.
func (ing *Ingestor) Run(ctx context.Context) error {
	sock := zmq4.NewSub(ctx)
	defer sock.Close()

	if err := sock.Dial(ing.zmqAddr); err != nil {
		return fmt.Errorf("[BlockIngestor] dial %s: %w", ing.zmqAddr, err)
	}
	if err := sock.SetOption(zmq4.OptionSubscribe, rawBlockTopic); err != nil {
		return fmt.Errorf("[BlockIngestor] subscribe: %w", err)
	}

	log.Printf("[BlockIngestor] subscribed to %q on %s", rawBlockTopic, ing.zmqAddr)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := sock.Recv()
		if err != nil {
			log.Printf("[BlockIngestor] recv error: %v", err)
			continue
		}

		// Received: multipart message, topic check — drop silently on
		// part count < 2 or the wrong topic.
		if len(msg.Frames) < 2 || string(msg.Frames[0]) != rawBlockTopic {
			continue
		}

		start := time.Now()
		if err := ing.processBlock(ctx, msg.Frames[1]); err != nil {
			log.Printf("[BlockIngestor] failed to process block: %v", err)
			continue
		}
		metrics.BlockIngestDuration.Observe(time.Since(start).Seconds())
	}
}

// processBlock implements Decoded -> Validated -> Persisted for one
// raw block payload.
func (ing *Ingestor) processBlock(ctx context.Context, raw []byte) error {
	block, err := btcutil.NewBlockFromBytes(raw)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	msgBlock := block.MsgBlock()

	blockHash := block.Hash()
	var hashBytes [32]byte
	copy(hashBytes[:], blockHash[:])

	height := ing.extractHeight(msgBlock)

	if err := ing.detectReorg(ctx, msgBlock.Header.PrevBlock, height); err != nil {
		log.Printf("[BlockIngestor] reorg detection: %v", err)
	}

	var headerBuf bytes.Buffer
	if err := msgBlock.Header.Serialize(&headerBuf); err != nil {
		return fmt.Errorf("serialize header: %w", err)
	}

	blockRow := models.Block{
		Height: height,
		Hash:   hashBytes,
		Header: headerBuf.Bytes(),
	}

	txRows := make([]models.Transaction, 0, len(msgBlock.Transactions))
	var outputRows []models.TaprootOutput
	for idx, tx := range msgBlock.Transactions {
		txRow, outs, err := buildTransaction(tx, height, int32(idx))
		if err != nil {
			return fmt.Errorf("tx %d: %w", idx, err)
		}
		txRows = append(txRows, txRow)
		outputRows = append(outputRows, outs...)
	}

	// Persisted: blocks, transactions and taproot_outputs commit inside
	// one atomic transaction — either the whole block becomes visible to
	// CandidateQuery, or none of it does.
	if err := ing.store.PersistBlock(ctx, blockRow, txRows, outputRows); err != nil {
		return fmt.Errorf("persist block: %w", err)
	}

	for range outputRows {
		metrics.TaprootOutputsIndexed.Inc()
	}
	metrics.BlocksIngested.Inc()
	log.Printf("[BlockIngestor] persisted block %s at height %d with %d transactions", blockHash, height, len(msgBlock.Transactions))

	if ing.events != nil {
		ing.events.BroadcastBlockIndexed(height, blockHash.String(), len(outputRows))
	}
	return nil
}

// buildTransaction extracts the persistable transaction row and every
// Taproot output it carries, without touching storage: the caller
// accumulates these across a whole block so PersistBlock can commit
// them atomically.
func buildTransaction(tx *wire.MsgTx, height, index int32) (models.Transaction, []models.TaprootOutput, error) {
	txHash := tx.TxHash()
	var txid [32]byte
	copy(txid[:], txHash[:])

	var rawTx bytes.Buffer
	if err := tx.Serialize(&rawTx); err != nil {
		return models.Transaction{}, nil, fmt.Errorf("serialize tx: %w", err)
	}

	txRow := models.Transaction{
		Txid:        txid,
		BlockHeight: height,
		BlockIndex:  index,
		IsCoinbase:  isCoinbase(tx),
		RawTx:       rawTx.Bytes(),
	}

	var outputs []models.TaprootOutput
	for vout, out := range tx.TxOut {
		if !bip352.IsTaprootScript(out.PkScript) {
			continue
		}
		var xonly [32]byte
		copy(xonly[:], out.PkScript[2:34])

		outputs = append(outputs, models.TaprootOutput{
			Txid:         txid,
			Vout:         int32(vout),
			BlockHeight:  height,
			ScriptPubkey: out.PkScript,
			AmountSats:   out.Value,
			XOnlyPubkey:  xonly,
			SPPrefix:     int32(bip352.PrefixFromXOnly(xonly)),
		})
	}

	return txRow, outputs, nil
}

// isCoinbase mirrors the standard single-input, null-prevout coinbase
// test without pulling in the full btcd/blockchain validation package.
func isCoinbase(tx *wire.MsgTx) bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	prevout := tx.TxIn[0].PreviousOutPoint
	return prevout.Index == 0xffffffff && prevout.Hash == chainhash.Hash{}
}

// extractHeight implements BIP-34 height extraction: the first push of
// the coinbase scriptSig is the height as a little-endian integer of
// length 1..4 bytes. Falls back to an RPC lookup of the header at the
// block's own hash when a bitcoin.Client is configured, and to 0
// otherwise; retry/backoff beyond that single RPC attempt is left to
// the deployment.
func (ing *Ingestor) extractHeight(block *wire.MsgBlock) int32 {
	if len(block.Transactions) > 0 {
		if h, ok := heightFromCoinbase(block.Transactions[0]); ok {
			return h
		}
	}

	if ing.btc == nil {
		return 0
	}

	hash := block.BlockHash()
	header, err := ing.btc.GetBlockHeader(&hash)
	if err != nil {
		log.Printf("[BlockIngestor] RPC height backfill failed for %s: %v", hash, err)
		return 0
	}
	return int32(header.Height)
}

func heightFromCoinbase(tx *wire.MsgTx) (int32, bool) {
	if !isCoinbase(tx) || len(tx.TxIn) == 0 {
		return 0, false
	}
	script := tx.TxIn[0].SignatureScript
	if len(script) == 0 {
		return 0, false
	}
	n := int(script[0])
	if n == 0 || n > 4 || len(script) < n+1 {
		return 0, false
	}
	var height int32
	for i, b := range script[1 : 1+n] {
		height |= int32(b) << (uint(i) * 8)
	}
	return height, true
}

// detectReorg: if the incoming block's parent hash doesn't match the
// block already stored at height-1, walk back via RPC GetBlockHash
// until a common ancestor is found, then mark every block at or above
// that height as orphaned. Skipped entirely when no bitcoin.Client is
// configured, since walkback requires an authoritative best-chain view.
func (ing *Ingestor) detectReorg(ctx context.Context, parent chainhash.Hash, height int32) error {
	if ing.btc == nil || height <= 0 {
		return nil
	}

	existing, err := ing.store.BlockAtHeight(ctx, height-1)
	if err != nil {
		return nil // nothing stored yet at the parent height: not a reorg
	}
	var existingHash chainhash.Hash
	copy(existingHash[:], existing.Hash[:])
	if existingHash == parent {
		return nil
	}

	forkHeight, err := ing.walkbackForkPoint(ctx, height-1)
	if err != nil {
		return fmt.Errorf("walkback: %w", err)
	}

	if err := ing.store.MarkOrphaned(ctx, forkHeight); err != nil {
		return fmt.Errorf("mark orphaned from %d: %w", forkHeight, err)
	}
	metrics.BlocksOrphaned.Inc()
	log.Printf("[BlockIngestor] reorg detected: orphaning blocks at height >= %d", forkHeight)
	return nil
}

// walkbackForkPoint descends from startHeight comparing Core's
// best-chain hash against our stored hash at each height until they
// agree, returning the first height at which they diverge — everything
// from there up must be marked orphaned.
func (ing *Ingestor) walkbackForkPoint(ctx context.Context, startHeight int32) (int32, error) {
	for h := startHeight; h > 0; h-- {
		coreHash, err := ing.btc.GetBlockHash(int64(h))
		if err != nil {
			return 0, err
		}
		stored, err := ing.store.BlockAtHeight(ctx, h)
		if err != nil {
			continue // nothing stored at this height yet: keep walking back
		}
		var storedHash chainhash.Hash
		copy(storedHash[:], stored.Hash[:])
		if *coreHash == storedHash {
			return h + 1, nil
		}
	}
	return 0, nil
}
