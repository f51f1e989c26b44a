// Command scanner is the reference Silent Payments scanning client: it
// reads a scan secret, spend pubkey and a set of input public keys,
// queries an indexer-server for candidates over a height range, and
// prints every output that verifies locally.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/rawblock/whisper-indexer/internal/bip352"
	"github.com/rawblock/whisper-indexer/internal/client"
)

func main() {
	var (
		baseURL     = flag.String("server", "http://localhost:3000", "indexer-server base URL")
		scanSecret  = flag.String("scan-secret", "", "32-byte scan secret, hex-encoded (required)")
		spendPub    = flag.String("spend-pubkey", "", "32-byte X-only spend public key, hex-encoded (required)")
		maxLabel    = flag.Uint("max-label", 0, "highest change/label index to probe (0 disables labels)")
		startHeight = flag.Int("start", 0, "first block height to scan, inclusive")
		endHeight   = flag.Int("end", 0, "last block height to scan, inclusive")
		inputsFlag  = flag.String("inputs", "", "comma-separated hex-encoded input public keys (required)")
	)
	flag.Parse()

	if *scanSecret == "" || *spendPub == "" || *inputsFlag == "" {
		log.Fatal("scan-secret, spend-pubkey and inputs are all required")
	}

	secretBytes, err := hex.DecodeString(*scanSecret)
	if err != nil {
		log.Fatalf("invalid scan-secret hex: %v", err)
	}
	scanKey, err := bip352.NewScanKey(secretBytes)
	if err != nil {
		log.Fatalf("invalid scan secret: %v", err)
	}

	spendBytes, err := hex.DecodeString(*spendPub)
	if err != nil {
		log.Fatalf("invalid spend-pubkey hex: %v", err)
	}
	spend, err := bip352.ParseSpendPubkey(spendBytes)
	if err != nil {
		log.Fatalf("invalid spend pubkey: %v", err)
	}

	var inputs []bip352.InputPubkey
	for _, raw := range strings.Split(*inputsFlag, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		keyBytes, err := hex.DecodeString(raw)
		if err != nil {
			log.Fatalf("invalid input pubkey hex %q: %v", raw, err)
		}
		input, err := bip352.ParseInputPubkey(keyBytes, false)
		if err != nil {
			log.Fatalf("invalid input pubkey %q: %v", raw, err)
		}
		inputs = append(inputs, input)
	}
	if len(inputs) == 0 {
		log.Fatal("no valid input public keys provided")
	}

	c := client.New(*baseURL, scanKey, spend, uint8(*maxLabel))

	ctx := context.Background()
	status, err := c.GetStatus(ctx)
	if err != nil {
		log.Printf("warning: could not fetch server status: %v", err)
	} else {
		log.Printf("server tip height %d on network %q", status.TipHeight, status.Network)
	}

	results, err := c.ScanRange(ctx, int32(*startHeight), int32(*endHeight), inputs)
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}

	if len(results) == 0 {
		fmt.Println("no matching outputs found")
		return
	}

	for _, r := range results {
		label := "none"
		if r.Label != nil {
			label = fmt.Sprintf("%d", *r.Label)
		}
		fmt.Printf("txid=%x vout=%d amount=%d label=%s output=%x\n",
			r.Txid, r.Vout, r.AmountSats, label, r.OutputPubkey)
	}
}
