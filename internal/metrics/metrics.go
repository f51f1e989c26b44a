// Package metrics exposes Prometheus counters and histograms for the
// indexer-server: block ingestion throughput and candidate query
// latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BlocksIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whisper_indexer_blocks_ingested_total",
		Help: "Total number of blocks persisted by the ingestor.",
	})

	BlocksOrphaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whisper_indexer_blocks_orphaned_total",
		Help: "Total number of blocks marked orphaned by reorg detection.",
	})

	TaprootOutputsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whisper_indexer_taproot_outputs_indexed_total",
		Help: "Total number of Taproot outputs persisted with a prefix.",
	})

	BlockIngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "whisper_indexer_block_ingest_duration_seconds",
		Help:    "Time spent decoding and persisting a single block.",
		Buckets: prometheus.DefBuckets,
	})

	ScanQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "whisper_indexer_scan_query_duration_seconds",
		Help:    "Time spent serving a single /api/v1/scan request.",
		Buckets: prometheus.DefBuckets,
	})

	ScanCandidatesReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "whisper_indexer_scan_candidates_returned",
		Help:    "Number of candidate outputs returned per /api/v1/scan request.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})
)
