package puzzles

import (
	"errors"
	"fmt"

	"go.streamcat.tech/core/clvm"
	"go.streamcat.tech/core/types"
)

// CATModHash is the tree hash of the CAT v2 outer puzzle.
var CATModHash = mustParseHash("37bef360ee858133b69d595a906dc45d01af50379dad515eb9518abb7c1d2a7a")

// CATTemplate is the CAT v2 token layer. Its reveal is not bundled; use
// WithReveal or LoadTemplate to attach it before building spends.
var CATTemplate = Template{
	Name: "cat_v2",
	Hash: CATModHash,
}

// CatPuzzleHash returns the puzzle hash of a token-layer coin of the given
// asset wrapping an inner puzzle with the given hash.
func CatPuzzleHash(token Template, assetID, innerPuzzleHash types.Hash256) types.Hash256 {
	return clvm.CurryTreeHash(token.Hash,
		clvm.HashBytes32(token.Hash),
		clvm.HashBytes32(assetID),
		innerPuzzleHash,
	)
}

// PuzzleHash returns the full puzzle hash of a stream coin: the stream's inner
// puzzle wrapped in the token layer.
func PuzzleHash(token, t Template, assetID types.Hash256, p types.StreamParams, lastPaymentTime uint64) types.Hash256 {
	return CatPuzzleHash(token, assetID, InnerPuzzleHash(t, p, lastPaymentTime))
}

// CatPuzzle wraps inner in the token layer.
func CatPuzzle(token Template, assetID types.Hash256, inner clvm.Node) (clvm.Node, error) {
	reveal, err := token.Reveal()
	if err != nil {
		return clvm.Nil, err
	}
	return clvm.Curry(reveal, clvm.Hash(token.Hash), clvm.Hash(assetID), inner), nil
}

// ParseCatPuzzle recognizes n as a token-layer puzzle, returning its asset ID
// and inner puzzle.
func ParseCatPuzzle(token Template, n clvm.Node) (assetID types.Hash256, inner clvm.Node, ok bool) {
	mod, args, ok := clvm.Uncurry(n)
	if !ok || len(args) != 3 || clvm.TreeHash(mod) != token.Hash {
		return types.Hash256{}, clvm.Nil, false
	} else if modHash, err := args[0].AsHash(); err != nil || modHash != token.Hash {
		return types.Hash256{}, clvm.Nil, false
	}
	assetID, err := args[1].AsHash()
	if err != nil {
		return types.Hash256{}, clvm.Nil, false
	}
	return assetID, args[2], true
}

// A CoinProof identifies a token-layer coin by its inner puzzle hash.
type CoinProof struct {
	ParentID        types.Hash256
	InnerPuzzleHash types.Hash256
	Amount          uint64
}

// A CatSolution is the solution to a token-layer puzzle.
type CatSolution struct {
	InnerSolution clvm.Node
	LineageProof  *types.LineageProof
	PrevCoinID    types.Hash256
	ThisCoin      types.Coin
	NextCoinProof CoinProof
	PrevSubtotal  int64
	ExtraDelta    int64
}

// ErrCatSolution is returned by ParseCatSolution when a solution does not have
// the token-layer shape.
var ErrCatSolution = errors.New("malformed token-layer solution")

// Node returns the solution as a CLVM list.
func (cs CatSolution) Node() clvm.Node {
	proof := clvm.Nil
	if lp := cs.LineageProof; lp != nil {
		proof = clvm.List(clvm.Hash(lp.ParentParentID), clvm.Hash(lp.ParentInnerPuzzleHash), clvm.Uint64(lp.ParentAmount))
	}
	return clvm.List(
		cs.InnerSolution,
		proof,
		clvm.Hash(cs.PrevCoinID),
		clvm.List(clvm.Hash(cs.ThisCoin.ParentID), clvm.Hash(cs.ThisCoin.PuzzleHash), clvm.Uint64(cs.ThisCoin.Amount)),
		clvm.List(clvm.Hash(cs.NextCoinProof.ParentID), clvm.Hash(cs.NextCoinProof.InnerPuzzleHash), clvm.Uint64(cs.NextCoinProof.Amount)),
		clvm.Int64(cs.PrevSubtotal),
		clvm.Int64(cs.ExtraDelta),
	)
}

// ParseCatSolution parses a token-layer solution.
func ParseCatSolution(n clvm.Node) (cs CatSolution, err error) {
	items, err := n.ListN(7)
	if err != nil {
		return cs, fmt.Errorf("%w: %v", ErrCatSolution, err)
	}
	cs.InnerSolution = items[0]
	if !items[1].IsNil() {
		lp, err := parseHashHashAmount(items[1])
		if err != nil {
			return cs, fmt.Errorf("%w: lineage proof: %v", ErrCatSolution, err)
		}
		cs.LineageProof = &types.LineageProof{
			ParentParentID:        lp.ParentID,
			ParentInnerPuzzleHash: lp.InnerPuzzleHash,
			ParentAmount:          lp.Amount,
		}
	}
	if cs.PrevCoinID, err = items[2].AsHash(); err != nil {
		return cs, fmt.Errorf("%w: prev coin id: %v", ErrCatSolution, err)
	}
	this, err := parseHashHashAmount(items[3])
	if err != nil {
		return cs, fmt.Errorf("%w: this coin info: %v", ErrCatSolution, err)
	}
	cs.ThisCoin = types.Coin{ParentID: this.ParentID, PuzzleHash: this.InnerPuzzleHash, Amount: this.Amount}
	if cs.NextCoinProof, err = parseHashHashAmount(items[4]); err != nil {
		return cs, fmt.Errorf("%w: next coin proof: %v", ErrCatSolution, err)
	}
	if cs.PrevSubtotal, err = items[5].AsInt64(); err != nil {
		return cs, fmt.Errorf("%w: prev subtotal: %v", ErrCatSolution, err)
	}
	if cs.ExtraDelta, err = items[6].AsInt64(); err != nil {
		return cs, fmt.Errorf("%w: extra delta: %v", ErrCatSolution, err)
	}
	return cs, nil
}

func parseHashHashAmount(n clvm.Node) (p CoinProof, err error) {
	items, err := n.ListN(3)
	if err != nil {
		return p, err
	} else if p.ParentID, err = items[0].AsHash(); err != nil {
		return p, err
	} else if p.InnerPuzzleHash, err = items[1].AsHash(); err != nil {
		return p, err
	} else if p.Amount, err = items[2].AsUint64(); err != nil {
		return p, err
	}
	return p, nil
}
