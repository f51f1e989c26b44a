// Package client implements the scanner-client: compute prefixes for a
// candidate transaction's inputs, query the indexer-server, and verify
// any returned candidates locally before trusting them.
package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rawblock/whisper-indexer/internal/bip352"
	"github.com/rawblock/whisper-indexer/pkg/models"
)

// Client scans the indexer-server for candidates matching a fixed
// (scan key, spend pubkey, max label) identity.
type Client struct {
	httpClient *http.Client
	baseURL    string
	scanKey    *bip352.ScanKey
	spend      bip352.SpendPubkey
	maxLabel   uint8
}

// New builds a Client against baseURL (e.g. "http://localhost:3000").
func New(baseURL string, scanKey *bip352.ScanKey, spend bip352.SpendPubkey, maxLabel uint8) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		scanKey:    scanKey,
		spend:      spend,
		maxLabel:   maxLabel,
	}
}

// ScanRange computes the prefix set for inputs, queries
// /api/v1/scan, and returns only the candidates that verify locally
// against this client's scan key.
func (c *Client) ScanRange(ctx context.Context, startHeight, endHeight int32, inputs []bip352.InputPubkey) ([]bip352.ScanResult, error) {
	prefixes, err := bip352.ComputePrefixes(c.scanKey, c.spend, inputs, c.maxLabel)
	if err != nil {
		return nil, fmt.Errorf("compute prefixes: %w", err)
	}

	prefixStrs := make([]string, len(prefixes))
	for i, p := range prefixes {
		prefixStrs[i] = fmt.Sprintf("%08x", p)
	}

	scanPub := c.scanKey.Public()
	req := models.ScanRequest{
		ScanPubkey:  hex.EncodeToString(scanPub[:]),
		StartHeight: startHeight,
		EndHeight:   endHeight,
		Prefixes:    prefixStrs,
	}

	var resp models.ScanResponse
	if err := c.postJSON(ctx, "/api/v1/scan", req, &resp); err != nil {
		return nil, err
	}

	labels := make([]bip352.Label, c.maxLabel+1)
	labels[0] = nil
	for m := uint8(1); m <= c.maxLabel; m++ {
		label, err := bip352.NewLabel(m)
		if err != nil {
			return nil, err
		}
		labels[m] = label
		if m == 255 {
			break
		}
	}

	var results []bip352.ScanResult
	for _, cand := range resp.Candidates {
		scriptBytes, err := hex.DecodeString(cand.ScriptPubkey)
		if err != nil {
			return nil, fmt.Errorf("invalid candidate script hex: %w", err)
		}

		result, err := c.scanKey.CheckOutput(scriptBytes, c.spend, inputs, labels)
		if err != nil {
			return nil, fmt.Errorf("check output for candidate %s:%d: %w", cand.Txid, cand.Vout, err)
		}
		if result == nil {
			continue
		}

		txidBytes, err := hex.DecodeString(cand.Txid)
		if err != nil {
			return nil, fmt.Errorf("invalid candidate txid hex: %w", err)
		}
		copy(result.Txid[:], txidBytes)
		result.Vout = uint32(cand.Vout)
		result.AmountSats = uint64(cand.Amount)

		results = append(results, *result)
	}

	return results, nil
}

// GetStatus queries /api/v1/status.
func (c *Client) GetStatus(ctx context.Context) (models.StatusResponse, error) {
	var resp models.StatusResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/status", nil)
	if err != nil {
		return resp, err
	}
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()

	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return resp, fmt.Errorf("decode status response: %w", err)
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, errResp.Error)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
