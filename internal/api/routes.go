package api

import (
	"encoding/hex"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rawblock/whisper-indexer/internal/config"
	"github.com/rawblock/whisper-indexer/internal/metrics"
	"github.com/rawblock/whisper-indexer/internal/store"
	"github.com/rawblock/whisper-indexer/pkg/models"
)

// APIHandler serves the indexer-server's HTTP surface: the BIP-352
// candidate query, chain status, and the ambient health/metrics
// endpoints.
type APIHandler struct {
	store  store.Store
	cfg    config.Config
	wsHub  *Hub
}

// SetupRouter wires the full route tree: public endpoints (health,
// status, the diagnostics stream) and a rate-limited, optionally
// authenticated group for the expensive scan query.
func SetupRouter(st store.Store, cfg config.Config, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// Request-id middleware using google/uuid for trace identifiers.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-Id", uuid.NewString())
		c.Next()
	})

	handler := &APIHandler{store: st, cfg: cfg, wsHub: wsHub}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/status", handler.handleStatus)
		if wsHub != nil {
			pub.GET("/stream", wsHub.Subscribe)
		}
	}

	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware())
	protected.Use(NewRateLimiter(30, 5).Middleware())
	{
		protected.POST("/scan", handler.handleScan)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// handleHealth is a pure liveness probe, independent of storage state.
func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStatus never fails hard: it reports tip_height=0 on storage
// error rather than returning a 5xx.
func (h *APIHandler) handleStatus(c *gin.Context) {
	tip, err := h.store.TipHeight(c.Request.Context())
	if err != nil {
		tip = 0
	}
	c.JSON(http.StatusOK, models.StatusResponse{
		Status:    "ok",
		TipHeight: tip,
		Network:   h.cfg.Network,
	})
}

// handleScan validates the request, queries storage for matching
// Taproot outputs, and responds with the full inclusive scanned_blocks
// range regardless of actual block presence in storage.
func (h *APIHandler) handleScan(c *gin.Context) {
	start := time.Now()

	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	if req.EndHeight < req.StartHeight {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "end_height must be >= start_height"})
		return
	}
	if int64(req.EndHeight)-int64(req.StartHeight) > int64(h.cfg.MaxBlockRange) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "block range exceeds MAX_BLOCK_RANGE"})
		return
	}
	if len(req.Prefixes) > h.cfg.MaxPrefixes {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "prefix set exceeds MAX_PREFIXES"})
		return
	}

	prefixes := make([]int32, 0, len(req.Prefixes))
	for _, p := range req.Prefixes {
		parsed, err := parsePrefixHex(p)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid prefix " + p + ": " + err.Error()})
			return
		}
		prefixes = append(prefixes, parsed)
	}

	// scan_pubkey is accepted but not used for filtering — validated
	// only for shape, never branched on.
	if req.ScanPubkey != "" {
		if _, err := hex.DecodeString(req.ScanPubkey); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid scan_pubkey hex"})
			return
		}
	}

	candidates, err := h.store.QueryCandidates(c.Request.Context(), store.CandidateFilter{
		StartHeight: req.StartHeight,
		EndHeight:   req.EndHeight,
		Prefixes:    prefixes,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "storage error"})
		return
	}

	scannedBlocks := make([]int32, 0, req.EndHeight-req.StartHeight+1)
	for height := req.StartHeight; height <= req.EndHeight; height++ {
		scannedBlocks = append(scannedBlocks, height)
	}

	resp := models.ScanResponse{
		Candidates:    make([]models.Candidate, len(candidates)),
		ScannedBlocks: scannedBlocks,
		ServerTimeMs:  uint64(time.Since(start).Milliseconds()),
	}
	for i, cand := range candidates {
		resp.Candidates[i] = models.Candidate{
			Txid:         hex.EncodeToString(cand.Txid[:]),
			Vout:         cand.Vout,
			Amount:       cand.Amount,
			ScriptPubkey: hex.EncodeToString(cand.ScriptPubkey),
			BlockHeight:  cand.BlockHeight,
			BlockHash:    hex.EncodeToString(cand.BlockHash[:]),
			Timestamp:    cand.CreatedAt,
		}
	}

	metrics.ScanQueryDuration.Observe(time.Since(start).Seconds())
	metrics.ScanCandidatesReturned.Observe(float64(len(candidates)))

	c.JSON(http.StatusOK, resp)
}

// parsePrefixHex parses a 4-byte big-endian prefix from hex, accepting
// an optional "0x" prefix.
func parsePrefixHex(s string) (int32, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return int32(uint32(n)), nil
}
