package bitcoin

import (
	"log"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
)

// Client wraps the Bitcoin Core JSON-RPC client for the two things the
// ingestor needs it for: BIP-34 height backfill when coinbase
// extraction fails, and fork-point walkback on reorg detection.
// Deliberately narrow — no wallet, mempool or fee-estimation surface,
// since none of it is reachable from Silent Payments scanning.
type Client struct {
	RPC    *rpcclient.Client
	Config Config
}

type Config struct {
	Host string
	User string
	Pass string
}

func NewClient(cfg Config) (*Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	log.Printf("[Bitcoin] connecting to RPC at %s...", cfg.Host)
	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, err
	}

	blockCount, err := client.GetBlockCount()
	if err != nil {
		client.Shutdown()
		return nil, err
	}
	log.Printf("[Bitcoin] connected, current block height: %d", blockCount)

	return &Client{RPC: client, Config: cfg}, nil
}

func (c *Client) Shutdown() {
	c.RPC.Shutdown()
}

// GetBlockHash resolves a height to the hash Core currently has at the
// tip of its best chain for that height.
func (c *Client) GetBlockHash(height int64) (*chainhash.Hash, error) {
	return c.RPC.GetBlockHash(height)
}

// GetBlockHeader returns the verbose header, used to confirm a parent
// hash during reorg walkback and as the BIP-34 height-backfill source
// of truth.
func (c *Client) GetBlockHeader(hash *chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error) {
	return c.RPC.GetBlockHeaderVerbose(hash)
}

// GetBlockCount returns Core's current best-chain height.
func (c *Client) GetBlockCount() (int64, error) {
	return c.RPC.GetBlockCount()
}
