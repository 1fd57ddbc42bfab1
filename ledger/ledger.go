// Package ledger defines the ledger queries needed to follow streams, and a
// client for the coinset.org full node API.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.streamcat.tech/core/types"
	"lukechampine.com/frand"
)

// ErrNotFound is returned when the ledger has no record of a coin.
var ErrNotFound = errors.New("coin not found")

// A CoinRecord is the ledger's record of a coin.
type CoinRecord struct {
	Coin            types.Coin `json:"coin"`
	ConfirmedHeight uint32     `json:"confirmed_block_index"`
	SpentHeight     uint32     `json:"spent_block_index"`
	Spent           bool       `json:"spent"`
	Coinbase        bool       `json:"coinbase"`
	Timestamp       uint64     `json:"timestamp"`
}

// A Client queries the ledger.
type Client interface {
	// CoinRecord returns the record of the coin with the given ID, or
	// ErrNotFound.
	CoinRecord(ctx context.Context, id types.Hash256) (CoinRecord, error)
	// CoinRecordsByHint returns the records of coins created with the given
	// hint.
	CoinRecordsByHint(ctx context.Context, hint types.Hash256, includeSpent bool) ([]CoinRecord, error)
	// CoinRecordsByParentIDs returns the records of the children of the given
	// coins.
	CoinRecordsByParentIDs(ctx context.Context, parentIDs []types.Hash256, includeSpent bool) ([]CoinRecord, error)
	// PuzzleAndSolution returns the spend of the coin with the given ID, which
	// was spent at the given height.
	PuzzleAndSolution(ctx context.Context, id types.Hash256, height uint32) (types.CoinSpend, error)
	// Timestamp returns the timestamp of the most recent transaction block.
	Timestamp(ctx context.Context) (uint64, error)
}

// WaitForCoin polls c until the coin with the given ID is confirmed, returning
// its record. The polling interval is jittered by up to 20%.
func WaitForCoin(ctx context.Context, c Client, id types.Hash256, interval time.Duration) (CoinRecord, error) {
	for {
		rec, err := c.CoinRecord(ctx, id)
		if err == nil {
			return rec, nil
		} else if !errors.Is(err, ErrNotFound) {
			return CoinRecord{}, fmt.Errorf("failed to get coin record: %w", err)
		}
		log.Debugf("Coin %v not yet confirmed", id)

		jitter := time.Duration(0)
		if interval >= 5 {
			jitter = time.Duration(frand.Uint64n(uint64(interval / 5)))
		}
		select {
		case <-ctx.Done():
			return CoinRecord{}, ctx.Err()
		case <-time.After(interval + jitter):
		}
	}
}
