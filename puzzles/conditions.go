package puzzles

import (
	"fmt"

	"go.streamcat.tech/core/clvm"
	"go.streamcat.tech/core/types"
)

// OpCreateCoin is the condition opcode that creates a coin.
const OpCreateCoin = 51

// A CreateCoin is a CREATE_COIN condition.
type CreateCoin struct {
	PuzzleHash types.Hash256
	Amount     uint64
	Memos      [][]byte
}

// Node returns the condition as a CLVM list.
func (cc CreateCoin) Node() clvm.Node {
	elems := []clvm.Node{clvm.Uint64(OpCreateCoin), clvm.Hash(cc.PuzzleHash), clvm.Uint64(cc.Amount)}
	if len(cc.Memos) > 0 {
		memos := make([]clvm.Node, len(cc.Memos))
		for i, m := range cc.Memos {
			memos[i] = clvm.Atom(m)
		}
		elems = append(elems, clvm.List(memos...))
	}
	return clvm.List(elems...)
}

// ParseCreateCoins returns the CREATE_COIN conditions in a condition list.
// Other conditions are ignored. A malformed memo list is treated as absent.
func ParseCreateCoins(conditions clvm.Node) ([]CreateCoin, error) {
	items, ok := conditions.Items()
	if !ok {
		return nil, fmt.Errorf("condition list: %w", clvm.ErrNotList)
	}
	var ccs []CreateCoin
	for i, cond := range items {
		if !cond.IsPair() || !cond.First().AtomEquals([]byte{OpCreateCoin}) {
			continue
		}
		args, ok := cond.Rest().Items()
		if !ok || len(args) < 2 {
			return nil, fmt.Errorf("condition %d: malformed CREATE_COIN", i)
		}
		var cc CreateCoin
		var err error
		if cc.PuzzleHash, err = args[0].AsHash(); err != nil {
			return nil, fmt.Errorf("condition %d: puzzle hash: %w", i, err)
		} else if cc.Amount, err = args[1].AsUint64(); err != nil {
			return nil, fmt.Errorf("condition %d: amount: %w", i, err)
		}
		if len(args) > 2 {
			cc.Memos = parseMemos(args[2])
		}
		ccs = append(ccs, cc)
	}
	return ccs, nil
}

func parseMemos(n clvm.Node) [][]byte {
	items, ok := n.Items()
	if !ok {
		return nil
	}
	memos := make([][]byte, 0, len(items))
	for _, m := range items {
		if !m.IsAtom() {
			return nil
		}
		memos = append(memos, m.Bytes())
	}
	return memos
}
