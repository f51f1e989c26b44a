package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rawblock/whisper-indexer/pkg/models"
)

// PostgresStore is the pgx-backed Store implementation used by the
// indexer-server in production.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
// MaxConns defaults to 10 to match the concurrency model's shared-pool
// assumption (§7 ordering guarantees: ingestor write transactions must
// not starve read queries).
func Connect(connStr string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %v", err)
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 10
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("[Store] connected to PostgreSQL")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes schema.sql.
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/store/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}

	if _, err := s.pool.Exec(context.Background(), string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("[Store] schema initialized")
	return nil
}

// PersistBlock inserts the block, its transactions and their Taproot
// outputs inside one pgx transaction, committing only once every insert
// has succeeded — per spec.md §4.6 step 4, any error aborts the whole
// block rather than leaving it partially visible.
func (s *PostgresStore) PersistBlock(ctx context.Context, b models.Block, txs []models.Transaction, outputs []models.TaprootOutput) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %v", err)
	}
	defer tx.Rollback(ctx)

	const insertBlock = `
		INSERT INTO blocks (height, hash, header, is_orphaned)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hash) DO NOTHING;
	`
	if _, err := tx.Exec(ctx, insertBlock, b.Height, b.Hash[:], b.Header, b.IsOrphaned); err != nil {
		return fmt.Errorf("insert block: %v", err)
	}

	const insertTx = `
		INSERT INTO transactions (txid, block_height, block_index, is_coinbase, raw_tx)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (txid) DO NOTHING;
	`
	for _, t := range txs {
		if _, err := tx.Exec(ctx, insertTx, t.Txid[:], t.BlockHeight, t.BlockIndex, t.IsCoinbase, t.RawTx); err != nil {
			return fmt.Errorf("insert transaction: %v", err)
		}
	}

	const insertOutput = `
		INSERT INTO taproot_outputs (txid, vout, block_height, script_pubkey, amount_sats, x_only_pubkey, sp_prefix)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (txid, vout) DO NOTHING;
	`
	for _, o := range outputs {
		if _, err := tx.Exec(ctx, insertOutput, o.Txid[:], o.Vout, o.BlockHeight, o.ScriptPubkey, o.AmountSats, o.XOnlyPubkey[:], o.SPPrefix); err != nil {
			return fmt.Errorf("insert taproot output: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit block %d: %v", b.Height, err)
	}
	return nil
}

func (s *PostgresStore) MarkOrphaned(ctx context.Context, fromHeight int32) error {
	const sql = `UPDATE blocks SET is_orphaned = TRUE WHERE height >= $1;`
	_, err := s.pool.Exec(ctx, sql, fromHeight)
	if err != nil {
		return fmt.Errorf("mark orphaned: %v", err)
	}
	return nil
}

func (s *PostgresStore) BlockAtHeight(ctx context.Context, height int32) (models.Block, error) {
	const sql = `
		SELECT height, hash, header, is_orphaned
		FROM blocks
		WHERE height = $1 AND is_orphaned = FALSE
		ORDER BY created_at DESC
		LIMIT 1;
	`
	var b models.Block
	var hash, header []byte
	err := s.pool.QueryRow(ctx, sql, height).Scan(&b.Height, &hash, &header, &b.IsOrphaned)
	if err != nil {
		return models.Block{}, ErrNotFound
	}
	copy(b.Hash[:], hash)
	b.Header = header
	return b, nil
}

func (s *PostgresStore) QueryCandidates(ctx context.Context, filter CandidateFilter) ([]Candidate, error) {
	const sql = `
		SELECT o.txid, o.vout, o.amount_sats, o.script_pubkey, o.block_height, b.hash, b.created_at
		FROM taproot_outputs o
		JOIN blocks b ON b.height = o.block_height AND b.is_orphaned = FALSE
		WHERE o.block_height BETWEEN $1 AND $2
		  AND o.sp_prefix = ANY($3)
		ORDER BY o.block_height, o.txid, o.vout;
	`
	rows, err := s.pool.Query(ctx, sql, filter.StartHeight, filter.EndHeight, filter.Prefixes)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %v", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var txid, hash []byte
		var createdAt time.Time
		if err := rows.Scan(&txid, &c.Vout, &c.Amount, &c.ScriptPubkey, &c.BlockHeight, &hash, &createdAt); err != nil {
			return nil, fmt.Errorf("scan candidate row: %v", err)
		}
		copy(c.Txid[:], txid)
		copy(c.BlockHash[:], hash)
		c.CreatedAt = createdAt.UnixMilli()
		out = append(out, c)
	}
	if out == nil {
		out = []Candidate{}
	}
	return out, nil
}

func (s *PostgresStore) TipHeight(ctx context.Context) (int32, error) {
	const sql = `SELECT COALESCE(MAX(height), 0) FROM blocks WHERE is_orphaned = FALSE;`
	var tip int32
	if err := s.pool.QueryRow(ctx, sql).Scan(&tip); err != nil {
		return 0, fmt.Errorf("tip height: %v", err)
	}
	return tip, nil
}
