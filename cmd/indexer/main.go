package main

import (
	"context"
	"log"

	"github.com/rawblock/whisper-indexer/internal/api"
	"github.com/rawblock/whisper-indexer/internal/bitcoin"
	"github.com/rawblock/whisper-indexer/internal/config"
	"github.com/rawblock/whisper-indexer/internal/ingest"
	"github.com/rawblock/whisper-indexer/internal/store"
)

func main() {
	log.Println("Starting Silent Payments indexer-server...")

	cfg := config.Load()

	var st store.Store
	pg, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to PostgreSQL, falling back to an in-memory store (data is not durable). Error: %v", err)
		st = store.NewMemoryStore()
	} else {
		defer pg.Close()
		if err := pg.InitSchema(); err != nil {
			log.Printf("Warning: DB schema init failed: %v", err)
		}
		st = pg
	}

	btcCfg := bitcoin.Config{
		Host: cfg.BitcoinRPCHost,
		User: cfg.BitcoinRPCUser,
		Pass: cfg.BitcoinRPCPass,
	}
	btcClient, err := bitcoin.NewClient(btcCfg)
	if err != nil {
		log.Printf("Warning: Failed to connect to Bitcoin RPC: %v", err)
		btcClient = nil
	} else {
		defer btcClient.Shutdown()
	}

	wsHub := api.NewHub()
	go wsHub.Run()

	ingestor := ingest.NewIngestor(st, btcClient, cfg.ZMQBlockSocket, wsHub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := ingestor.Run(ctx); err != nil {
			log.Printf("[BlockIngestor] stopped: %v", err)
		}
	}()

	r := api.SetupRouter(st, cfg, wsHub)

	log.Printf("Indexer running on %s:%s (network=%s)\n", cfg.Host, cfg.Port, cfg.Network)
	if err := r.Run(cfg.Host + ":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
