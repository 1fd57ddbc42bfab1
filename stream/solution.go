package stream

import (
	"go.streamcat.tech/core/clvm"
	"go.streamcat.tech/core/puzzles"
	"go.streamcat.tech/core/types"
)

// A Solution is the inner solution of a stream spend.
//
// Streams without clawback support are solved with (my_amount payment_time);
// the amount paid is implied by the vesting schedule and ToPay is derived
// rather than encoded. Clawback-capable streams are solved with
// (my_amount payment_time to_pay clawback).
type Solution struct {
	MyAmount    uint64
	PaymentTime uint64
	ToPay       uint64
	Clawback    bool
}

// Node encodes the solution for the given stream version.
func (s Solution) Node(v types.StreamVersion) (clvm.Node, error) {
	if !v.SupportsClawback() {
		if s.Clawback {
			return clvm.Nil, invariant("%v streams cannot be clawed back", v)
		}
		return clvm.List(clvm.Uint64(s.MyAmount), clvm.Uint64(s.PaymentTime)), nil
	}
	return clvm.List(
		clvm.Uint64(s.MyAmount),
		clvm.Uint64(s.PaymentTime),
		clvm.Uint64(s.ToPay),
		clvm.Bool(s.Clawback),
	), nil
}

// DecodeSolution decodes the inner solution of a stream spend. For versions
// that do not encode the payout, ToPay is left zero.
func DecodeSolution(v types.StreamVersion, n clvm.Node) (s Solution, err error) {
	size := 2
	if v.SupportsClawback() {
		size = 4
	}
	items, err := n.ListN(size)
	if err != nil {
		return s, decodeErr(ErrSolutionShape, "stream solution", err)
	}
	if s.MyAmount, err = items[0].AsUint64(); err != nil {
		return s, decodeErr(ErrSolutionShape, "my_amount", err)
	} else if s.PaymentTime, err = items[1].AsUint64(); err != nil {
		return s, decodeErr(ErrSolutionShape, "payment_time", err)
	}
	if v.SupportsClawback() {
		if s.ToPay, err = items[2].AsUint64(); err != nil {
			return s, decodeErr(ErrSolutionShape, "to_pay", err)
		} else if s.Clawback, err = items[3].AsBool(); err != nil {
			return s, decodeErr(ErrSolutionShape, "clawback", err)
		}
	}
	return s, nil
}

// ClaimSolution returns the inner solution that claims (or, if clawback is
// set, claws back) s at paymentTime. Payment times after the end of the stream
// are clamped to the end time.
func ClaimSolution(s types.VestingStream, paymentTime uint64, clawback bool) (Solution, error) {
	if clawback && !s.Params.Version.SupportsClawback() {
		return Solution{}, invariant("%v streams cannot be clawed back", s.Params.Version)
	}
	paymentTime = ClampPaymentTime(s, paymentTime)
	toPay, err := AmountToBePaid(s, paymentTime)
	if err != nil {
		return Solution{}, err
	}
	return Solution{
		MyAmount:    s.Coin.Amount,
		PaymentTime: paymentTime,
		ToPay:       toPay,
		Clawback:    clawback,
	}, nil
}

// catSolution wraps a stream solution in the token layer. A stream coin is
// always spent alone, so the coin is its own ring neighbour.
func catSolution(t puzzles.Template, s types.VestingStream, inner clvm.Node) puzzles.CatSolution {
	proof := s.Proof
	return puzzles.CatSolution{
		InnerSolution: inner,
		LineageProof:  &proof,
		PrevCoinID:    s.Coin.ID(),
		ThisCoin:      s.Coin,
		NextCoinProof: puzzles.CoinProof{
			ParentID:        s.Coin.ParentID,
			InnerPuzzleHash: puzzles.InnerPuzzleHash(t, s.Params, s.LastPaymentTime),
			Amount:          s.Coin.Amount,
		},
	}
}

// DecodeCatSolution decodes a serialized token-layer solution wrapping a
// stream solution.
func DecodeCatSolution(v types.StreamVersion, b []byte) (puzzles.CatSolution, Solution, error) {
	n, err := clvm.Deserialize(b)
	if err != nil {
		return puzzles.CatSolution{}, Solution{}, decodeErr(ErrMalformed, "solution", err)
	}
	cs, err := puzzles.ParseCatSolution(n)
	if err != nil {
		return puzzles.CatSolution{}, Solution{}, decodeErr(ErrSolutionShape, "token-layer solution", err)
	}
	sol, err := DecodeSolution(v, cs.InnerSolution)
	return cs, sol, err
}

// BuildClaimSolution returns the serialized solution that claims (or claws
// back) s at paymentTime.
func (e *Engine) BuildClaimSolution(s types.VestingStream, paymentTime uint64, clawback bool) ([]byte, error) {
	t, err := e.template(s.Params)
	if err != nil {
		return nil, err
	}
	sol, err := ClaimSolution(s, paymentTime, clawback)
	if err != nil {
		return nil, err
	}
	inner, err := sol.Node(s.Params.Version)
	if err != nil {
		return nil, err
	}
	return clvm.Serialize(catSolution(t, s, inner).Node()), nil
}

// BuildContract returns the serialized puzzle reveal of the stream coin.
func (e *Engine) BuildContract(s types.VestingStream) ([]byte, error) {
	t, err := e.template(s.Params)
	if err != nil {
		return nil, err
	}
	inner, err := puzzles.StreamPuzzle(t, s.Params, s.LastPaymentTime)
	if err != nil {
		return nil, invariant("%v", err)
	}
	puz, err := puzzles.CatPuzzle(e.Token, s.AssetID, inner)
	if err != nil {
		return nil, invariant("%v", err)
	}
	if h := clvm.TreeHash(puz); h != s.Coin.PuzzleHash {
		return nil, invariant("stream state does not match coin puzzle hash (%v != %v)", h, s.Coin.PuzzleHash)
	}
	return clvm.Serialize(puz), nil
}

// BuildCoinSpend returns the spend that claims (or claws back) s at
// paymentTime.
func (e *Engine) BuildCoinSpend(s types.VestingStream, paymentTime uint64, clawback bool) (types.CoinSpend, error) {
	puzzle, err := e.BuildContract(s)
	if err != nil {
		return types.CoinSpend{}, err
	}
	solution, err := e.BuildClaimSolution(s, paymentTime, clawback)
	if err != nil {
		return types.CoinSpend{}, err
	}
	return types.CoinSpend{
		Coin:         s.Coin,
		PuzzleReveal: puzzle,
		Solution:     solution,
	}, nil
}
