// Package streamtest provides an in-memory ledger and helpers for building
// stream histories in tests.
package streamtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.streamcat.tech/core/clvm"
	"go.streamcat.tech/core/ledger"
	"go.streamcat.tech/core/puzzles"
	"go.streamcat.tech/core/stream"
	"go.streamcat.tech/core/types"
)

// Templates used in place of the deployed token layer and clawback stream,
// whose reveals are not bundled.
var (
	TokenTemplate    = puzzles.NewTemplate("test_cat", 0, clvm.List(clvm.Atom([]byte("test token layer"))))
	ClawbackTemplate = puzzles.NewTemplate("test_stream_v2", types.StreamV2, clvm.List(clvm.Atom([]byte("test clawback stream"))))
)

// Registry returns a registry containing the v1 template and
// ClawbackTemplate.
func Registry() puzzles.Registry {
	r, err := puzzles.DefaultRegistry().With(ClawbackTemplate)
	if err != nil {
		panic(err)
	}
	return r
}

// NewEngine returns an engine for the test templates.
func NewEngine() *stream.Engine {
	return stream.NewEngine(Registry(), TokenTemplate, stream.QuotedExtractor{})
}

// A Ledger is an in-memory ledger.Client. Coins are confirmed and spent at
// the current height; MineBlock advances it.
type Ledger struct {
	mu        sync.Mutex
	height    uint32
	timestamp uint64
	records   map[types.Hash256]ledger.CoinRecord
	spends    map[types.Hash256]types.CoinSpend
	hints     map[types.Hash256][]types.Hash256
	order     []types.Hash256
}

// NewLedger returns an empty ledger whose first block has the given
// timestamp.
func NewLedger(timestamp uint64) *Ledger {
	return &Ledger{
		height:    1,
		timestamp: timestamp,
		records:   make(map[types.Hash256]ledger.CoinRecord),
		spends:    make(map[types.Hash256]types.CoinSpend),
		hints:     make(map[types.Hash256][]types.Hash256),
	}
}

// Height returns the current height.
func (l *Ledger) Height() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height
}

// MineBlock advances the ledger by one block, dt seconds later.
func (l *Ledger) MineBlock(dt uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.height++
	l.timestamp += dt
}

// SetTimestamp sets the timestamp of the current block.
func (l *Ledger) SetTimestamp(ts uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamp = ts
}

// AddCoin confirms c at the current height, indexed under the given hint, if
// non-zero.
func (l *Ledger) AddCoin(c types.Coin, hint types.Hash256) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addCoin(c, hint)
}

func (l *Ledger) addCoin(c types.Coin, hint types.Hash256) {
	id := c.ID()
	l.records[id] = ledger.CoinRecord{
		Coin:            c,
		ConfirmedHeight: l.height,
		Timestamp:       l.timestamp,
	}
	l.order = append(l.order, id)
	if hint != (types.Hash256{}) {
		l.hints[hint] = append(l.hints[hint], id)
	}
}

// A Child is a coin created by a spend, with its hint.
type Child struct {
	Coin types.Coin
	Hint types.Hash256
}

// Spend spends cs.Coin at the current height, creating children.
func (l *Ledger) Spend(cs types.CoinSpend, children ...Child) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := cs.Coin.ID()
	rec, ok := l.records[id]
	if !ok {
		return fmt.Errorf("coin %v does not exist", id)
	} else if rec.Spent {
		return fmt.Errorf("coin %v already spent", id)
	}
	rec.Spent = true
	rec.SpentHeight = l.height
	l.records[id] = rec
	l.spends[id] = cs
	for _, c := range children {
		if c.Coin.ParentID != id {
			return fmt.Errorf("child %v is not created by %v", c.Coin.ID(), id)
		}
		l.addCoin(c.Coin, c.Hint)
	}
	return nil
}

// CoinRecord implements ledger.Client.
func (l *Ledger) CoinRecord(_ context.Context, id types.Hash256) (ledger.CoinRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return ledger.CoinRecord{}, fmt.Errorf("coin %v: %w", id, ledger.ErrNotFound)
	}
	return rec, nil
}

// CoinRecordsByHint implements ledger.Client.
func (l *Ledger) CoinRecordsByHint(_ context.Context, hint types.Hash256, includeSpent bool) ([]ledger.CoinRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var recs []ledger.CoinRecord
	for _, id := range l.hints[hint] {
		if rec := l.records[id]; includeSpent || !rec.Spent {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// CoinRecordsByParentIDs implements ledger.Client.
func (l *Ledger) CoinRecordsByParentIDs(_ context.Context, parentIDs []types.Hash256, includeSpent bool) ([]ledger.CoinRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	parents := make(map[types.Hash256]bool)
	for _, id := range parentIDs {
		parents[id] = true
	}
	var recs []ledger.CoinRecord
	for _, id := range l.order {
		if rec := l.records[id]; parents[rec.Coin.ParentID] && (includeSpent || !rec.Spent) {
			recs = append(recs, rec)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].ConfirmedHeight < recs[j].ConfirmedHeight })
	return recs, nil
}

// PuzzleAndSolution implements ledger.Client.
func (l *Ledger) PuzzleAndSolution(_ context.Context, id types.Hash256, height uint32) (types.CoinSpend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cs, ok := l.spends[id]
	if !ok || l.records[id].SpentHeight != height {
		return types.CoinSpend{}, fmt.Errorf("spend of %v at height %d: %w", id, height, ledger.ErrNotFound)
	}
	return cs, nil
}

// Timestamp implements ledger.Client.
func (l *Ledger) Timestamp(context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timestamp, nil
}
