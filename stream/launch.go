package stream

import (
	"errors"

	"go.streamcat.tech/core/clvm"
	"go.streamcat.tech/core/puzzles"
	"go.streamcat.tech/core/types"
)

// ErrUnsupportedPuzzle is returned by a ConditionExtractor that cannot
// determine the conditions of a puzzle.
var ErrUnsupportedPuzzle = errors.New("puzzle not supported by condition extractor")

// A ConditionExtractor returns the coins created when a puzzle is run with a
// solution.
type ConditionExtractor interface {
	CreateCoins(puzzle, solution clvm.Node) ([]puzzles.CreateCoin, error)
}

// ExtractorFunc adapts a function to the ConditionExtractor interface.
type ExtractorFunc func(puzzle, solution clvm.Node) ([]puzzles.CreateCoin, error)

// CreateCoins implements ConditionExtractor.
func (fn ExtractorFunc) CreateCoins(puzzle, solution clvm.Node) ([]puzzles.CreateCoin, error) {
	return fn(puzzle, solution)
}

// QuotedExtractor extracts conditions from puzzles of the form (q . conditions).
type QuotedExtractor struct{}

// CreateCoins implements ConditionExtractor.
func (QuotedExtractor) CreateCoins(puzzle, _ clvm.Node) ([]puzzles.CreateCoin, error) {
	return quotedConditions(puzzle)
}

// DelegatedExtractor extracts conditions from spends of the standard
// transaction puzzle, whose solution is
//
//	(original_public_key delegated_puzzle delegated_solution)
//
// when the delegated puzzle is a quoted condition list. It does not check the
// puzzle itself; it is only meaningful for spends the ledger accepted.
type DelegatedExtractor struct{}

// CreateCoins implements ConditionExtractor.
func (DelegatedExtractor) CreateCoins(_, solution clvm.Node) ([]puzzles.CreateCoin, error) {
	items, ok := solution.Items()
	if !ok || len(items) != 3 || !items[0].IsNil() {
		return nil, ErrUnsupportedPuzzle
	}
	return quotedConditions(items[1])
}

func quotedConditions(puzzle clvm.Node) ([]puzzles.CreateCoin, error) {
	if !puzzle.IsPair() || !puzzle.First().AtomEquals([]byte{1}) {
		return nil, ErrUnsupportedPuzzle
	}
	return puzzles.ParseCreateCoins(puzzle.Rest())
}

// Extractors returns a ConditionExtractor that tries each extractor in turn,
// skipping those that return ErrUnsupportedPuzzle.
func Extractors(extractors ...ConditionExtractor) ConditionExtractor {
	return ExtractorFunc(func(puzzle, solution clvm.Node) ([]puzzles.CreateCoin, error) {
		for _, ex := range extractors {
			ccs, err := ex.CreateCoins(puzzle, solution)
			if !errors.Is(err, ErrUnsupportedPuzzle) {
				return ccs, err
			}
		}
		return nil, ErrUnsupportedPuzzle
	})
}

// DetectLaunches returns every stream created by the spend of coin. Launch
// hints attached to created coins are only used to guess the stream
// parameters; a launch is accepted only if the guessed parameters reproduce
// the created coin's puzzle hash.
func (e *Engine) DetectLaunches(coin types.Coin, puzzle, solution []byte) ([]types.VestingStream, error) {
	puz, err := clvm.Deserialize(puzzle)
	if err != nil {
		return nil, decodeErr(ErrMalformed, "puzzle reveal", err)
	}
	sol, err := clvm.Deserialize(solution)
	if err != nil {
		return nil, decodeErr(ErrMalformed, "solution", err)
	}
	assetID, inner, cs, ok, err := e.parseCatSpend(coin, puz, sol)
	if err != nil || !ok {
		return nil, err
	}
	return e.detectLaunches(coin, assetID, inner, cs.InnerSolution)
}

func (e *Engine) detectLaunches(coin types.Coin, assetID types.Hash256, inner, innerSol clvm.Node) ([]types.VestingStream, error) {
	ccs, err := e.Extractor.CreateCoins(inner, innerSol)
	if errors.Is(err, ErrUnsupportedPuzzle) {
		log.Tracef("Coin %v: cannot extract conditions", coin.ID())
		return nil, nil
	} else if err != nil {
		return nil, decodeErr(ErrDecode, "conditions", err)
	}

	parentID := coin.ID()
	innerHash := clvm.TreeHash(inner)
	var launches []types.VestingStream
	for _, cc := range ccs {
		s, ok := e.matchLaunch(cc, assetID)
		if !ok {
			continue
		}
		s.Coin = types.Coin{
			ParentID:   parentID,
			PuzzleHash: puzzles.CatPuzzleHash(e.Token, assetID, cc.PuzzleHash),
			Amount:     cc.Amount,
		}
		s.Proof = types.LineageProof{
			ParentParentID:        coin.ParentID,
			ParentInnerPuzzleHash: innerHash,
			ParentAmount:          coin.Amount,
		}
		log.Debugf("Coin %v: launched stream %v (%d until %d)", parentID, s.Coin.ID(), s.Coin.Amount, s.Params.EndTime)
		launches = append(launches, s)
	}
	return launches, nil
}

// matchLaunch returns the stream created by cc, if its hints reproduce its
// puzzle hash under some registered template.
func (e *Engine) matchLaunch(cc puzzles.CreateCoin, assetID types.Hash256) (types.VestingStream, bool) {
	for _, h := range puzzles.ParseLaunchHints(cc.Memos) {
		if h.StartTime >= h.EndTime {
			continue
		}
		for _, t := range e.Registry.Templates() {
			if t.Version.SupportsClawback() != (h.Clawback != nil) {
				continue
			}
			p := types.StreamParams{
				Version:   t.Version,
				Recipient: h.Recipient,
				Clawback:  h.Clawback,
				EndTime:   h.EndTime,
			}
			if puzzles.InnerPuzzleHash(t, p, h.StartTime) == cc.PuzzleHash {
				return types.VestingStream{
					AssetID:         assetID,
					Params:          p,
					LastPaymentTime: h.StartTime,
				}, true
			}
		}
	}
	return types.VestingStream{}, false
}
