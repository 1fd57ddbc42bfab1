package stream

import (
	"fmt"

	"go.streamcat.tech/core/clvm"
	"go.streamcat.tech/core/puzzles"
	"go.streamcat.tech/core/types"
)

// An OutcomeKind classifies the result of replaying one spend.
type OutcomeKind uint8

// Replay outcomes.
const (
	// NoMatch means the spend is unrelated to any stream.
	NoMatch OutcomeKind = iota
	// Advance means the spend claimed from a stream, creating a successor.
	Advance
	// Clawback means the spend terminated a stream.
	Clawback
	// Launch means the spend created a new stream coin.
	Launch
)

// String implements fmt.Stringer.
func (k OutcomeKind) String() string {
	switch k {
	case NoMatch:
		return "no match"
	case Advance:
		return "advance"
	case Clawback:
		return "clawback"
	case Launch:
		return "launch"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// An Outcome is the result of replaying one spend.
type Outcome struct {
	Kind OutcomeKind
	// Spent is the stream state of the spent coin, for Advance and Clawback.
	// Its Proof is the lineage proof revealed by the spend.
	Spent types.VestingStream
	// Stream is the successor state for Advance, and the launched stream for
	// Launch.
	Stream types.VestingStream
	// Paid is the amount paid to the recipient, for Advance and Clawback.
	Paid uint64
}

// An Engine reconstructs stream state from spends.
type Engine struct {
	Registry  puzzles.Registry
	Token     puzzles.Template
	Extractor ConditionExtractor
}

// NewEngine returns an Engine that recognizes the templates in r wrapped in
// the token layer described by token. If extractor is nil, launches are only
// detected from spends whose inner puzzle is a quoted condition list.
func NewEngine(r puzzles.Registry, token puzzles.Template, extractor ConditionExtractor) *Engine {
	if extractor == nil {
		extractor = QuotedExtractor{}
	}
	return &Engine{
		Registry:  r,
		Token:     token,
		Extractor: extractor,
	}
}

func (e *Engine) template(p types.StreamParams) (puzzles.Template, error) {
	if err := p.Validate(); err != nil {
		return puzzles.Template{}, invariant("%v", err)
	}
	t, ok := e.Registry.Template(p.Version)
	if !ok {
		return puzzles.Template{}, invariant("no template registered for %v streams", p.Version)
	}
	return t, nil
}

// PuzzleHash returns the puzzle hash of a stream coin with the given
// parameters and last payment time.
func (e *Engine) PuzzleHash(assetID types.Hash256, p types.StreamParams, lastPaymentTime uint64) (types.Hash256, error) {
	t, err := e.template(p)
	if err != nil {
		return types.Hash256{}, err
	}
	return puzzles.PuzzleHash(e.Token, t, assetID, p, lastPaymentTime), nil
}

// InnerPuzzleHash returns the inner puzzle hash of a stream coin with the
// given parameters and last payment time. This is the hash a launching spend
// pays to.
func (e *Engine) InnerPuzzleHash(p types.StreamParams, lastPaymentTime uint64) (types.Hash256, error) {
	t, err := e.template(p)
	if err != nil {
		return types.Hash256{}, err
	}
	return puzzles.InnerPuzzleHash(t, p, lastPaymentTime), nil
}

// ReplayStep interprets the spend of coin, given its revealed puzzle and
// solution. If the coin is a stream coin, the outcome is Advance or Clawback.
// Otherwise, if the spend created a stream coin, the outcome is Launch (for
// the first such coin). If neither, the outcome is NoMatch.
func (e *Engine) ReplayStep(coin types.Coin, puzzle, solution []byte) (Outcome, error) {
	puz, err := clvm.Deserialize(puzzle)
	if err != nil {
		return Outcome{}, decodeErr(ErrMalformed, "puzzle reveal", err)
	}
	sol, err := clvm.Deserialize(solution)
	if err != nil {
		return Outcome{}, decodeErr(ErrMalformed, "solution", err)
	}
	return e.replay(coin, puz, sol)
}

func (e *Engine) replay(coin types.Coin, puz, sol clvm.Node) (Outcome, error) {
	assetID, inner, cs, ok, err := e.parseCatSpend(coin, puz, sol)
	if err != nil {
		return Outcome{}, err
	} else if !ok {
		return Outcome{Kind: NoMatch}, nil
	}

	ps, isStream, err := e.Registry.ParseStreamPuzzle(inner)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	} else if !isStream {
		launches, err := e.detectLaunches(coin, assetID, inner, cs.InnerSolution)
		if err != nil {
			return Outcome{}, err
		} else if len(launches) == 0 {
			return Outcome{Kind: NoMatch}, nil
		}
		return Outcome{Kind: Launch, Stream: launches[0]}, nil
	}
	return e.replayStream(coin, assetID, inner, cs, ps)
}

// parseCatSpend recognizes a token-layer spend of coin. It returns false if
// puz is not a token-layer puzzle.
func (e *Engine) parseCatSpend(coin types.Coin, puz, sol clvm.Node) (types.Hash256, clvm.Node, puzzles.CatSolution, bool, error) {
	assetID, inner, ok := puzzles.ParseCatPuzzle(e.Token, puz)
	if !ok {
		log.Tracef("Coin %v: not a token-layer spend", coin.ID())
		return types.Hash256{}, clvm.Nil, puzzles.CatSolution{}, false, nil
	} else if h := clvm.TreeHash(puz); h != coin.PuzzleHash {
		return types.Hash256{}, clvm.Nil, puzzles.CatSolution{}, false, violation("puzzle reveal hashes to %v, but coin puzzle hash is %v", h, coin.PuzzleHash)
	}
	cs, err := puzzles.ParseCatSolution(sol)
	if err != nil {
		return types.Hash256{}, clvm.Nil, puzzles.CatSolution{}, false, decodeErr(ErrSolutionShape, "token-layer solution", err)
	}
	return assetID, inner, cs, true, nil
}

func (e *Engine) replayStream(coin types.Coin, assetID types.Hash256, inner clvm.Node, cs puzzles.CatSolution, ps puzzles.ParsedStream) (Outcome, error) {
	spent := types.VestingStream{
		Coin:            coin,
		AssetID:         assetID,
		Params:          ps.Params,
		LastPaymentTime: ps.LastPaymentTime,
	}
	if cs.LineageProof != nil {
		spent.Proof = *cs.LineageProof
	}
	if spent.LastPaymentTime >= spent.Params.EndTime {
		return Outcome{}, violation("stream coin %v has last payment time %d at or after end time %d", coin.ID(), spent.LastPaymentTime, spent.Params.EndTime)
	} else if ps.Params.Version.SupportsClawback() && ps.Params.Clawback == nil {
		return Outcome{}, violation("stream coin %v has no clawback target", coin.ID())
	}

	sol, err := DecodeSolution(ps.Params.Version, cs.InnerSolution)
	if err != nil {
		return Outcome{}, err
	} else if sol.MyAmount != coin.Amount {
		return Outcome{}, violation("solution amount %d does not match coin amount %d", sol.MyAmount, coin.Amount)
	} else if sol.PaymentTime <= spent.LastPaymentTime || sol.PaymentTime > spent.Params.EndTime {
		return Outcome{}, violation("payment time %d outside (%d, %d]", sol.PaymentTime, spent.LastPaymentTime, spent.Params.EndTime)
	}
	due, err := AmountToBePaid(spent, sol.PaymentTime)
	if err != nil {
		return Outcome{}, err
	}

	if sol.Clawback {
		if sol.ToPay != due {
			return Outcome{}, violation("clawback pays %d, but %d is due at %d", sol.ToPay, due, sol.PaymentTime)
		}
		log.Debugf("Coin %v: clawback at %d, paid %d", coin.ID(), sol.PaymentTime, sol.ToPay)
		return Outcome{Kind: Clawback, Spent: spent, Paid: sol.ToPay}, nil
	}
	if !ps.Params.Version.SupportsClawback() {
		sol.ToPay = due
	} else if sol.ToPay != due {
		return Outcome{}, violation("claim pays %d, but %d is due at %d", sol.ToPay, due, sol.PaymentTime)
	}

	next := types.VestingStream{
		AssetID: assetID,
		Proof: types.LineageProof{
			ParentParentID:        coin.ParentID,
			ParentInnerPuzzleHash: clvm.TreeHash(inner),
			ParentAmount:          coin.Amount,
		},
		Params:          ps.Params,
		LastPaymentTime: sol.PaymentTime,
	}
	next.Coin = types.Coin{
		ParentID:   coin.ID(),
		PuzzleHash: puzzles.PuzzleHash(e.Token, ps.Template, assetID, ps.Params, sol.PaymentTime),
		Amount:     coin.Amount - sol.ToPay,
	}
	log.Debugf("Coin %v: claim at %d, paid %d, %d remaining", coin.ID(), sol.PaymentTime, sol.ToPay, next.Coin.Amount)
	return Outcome{Kind: Advance, Spent: spent, Stream: next, Paid: sol.ToPay}, nil
}
