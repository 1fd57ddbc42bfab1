package streamtest

import (
	"fmt"

	"go.streamcat.tech/core/clvm"
	"go.streamcat.tech/core/puzzles"
	"go.streamcat.tech/core/stream"
	"go.streamcat.tech/core/types"
	"lukechampine.com/frand"
)

// A Sim builds stream histories on an in-memory ledger.
type Sim struct {
	*Ledger
	Engine *stream.Engine
}

// NewSim returns a Sim whose ledger starts at the given timestamp.
func NewSim(timestamp uint64) *Sim {
	return &Sim{
		Ledger: NewLedger(timestamp),
		Engine: NewEngine(),
	}
}

// SendSpend returns a token-layer spend of a fresh coin of assetID that
// creates a coin of the given amount paying innerHash, along with the created
// coin. The spent coin is not added to the ledger.
func (s *Sim) SendSpend(assetID, innerHash types.Hash256, amount uint64, memos [][]byte) (types.CoinSpend, types.Coin, error) {
	cc := puzzles.CreateCoin{
		PuzzleHash: innerHash,
		Amount:     amount,
		Memos:      memos,
	}
	inner := clvm.Pair(clvm.Atom([]byte{1}), clvm.List(cc.Node()))
	puz, err := puzzles.CatPuzzle(s.Engine.Token, assetID, inner)
	if err != nil {
		return types.CoinSpend{}, types.Coin{}, err
	}
	coin := types.Coin{
		ParentID:   frand.Entropy256(),
		PuzzleHash: clvm.TreeHash(puz),
		Amount:     amount,
	}
	sol := puzzles.CatSolution{
		InnerSolution: clvm.Nil,
		PrevCoinID:    coin.ID(),
		ThisCoin:      coin,
		NextCoinProof: puzzles.CoinProof{
			ParentID:        coin.ParentID,
			InnerPuzzleHash: clvm.TreeHash(inner),
			Amount:          amount,
		},
	}
	cs := types.CoinSpend{
		Coin:         coin,
		PuzzleReveal: clvm.Serialize(puz),
		Solution:     clvm.Serialize(sol.Node()),
	}
	child := types.Coin{
		ParentID:   coin.ID(),
		PuzzleHash: puzzles.CatPuzzleHash(s.Engine.Token, assetID, innerHash),
		Amount:     amount,
	}
	return cs, child, nil
}

// Send confirms a fresh coin of assetID and spends it to create a coin paying
// innerHash. Like a full node, the ledger indexes the created coin by its
// first memo, if that memo is 32 bytes long. Send returns the id of the spent
// coin and the created coin.
func (s *Sim) Send(assetID, innerHash types.Hash256, amount uint64, memos [][]byte) (types.Hash256, types.Coin, error) {
	cs, coin, err := s.SendSpend(assetID, innerHash, amount, memos)
	if err != nil {
		return types.Hash256{}, types.Coin{}, err
	}
	var hint types.Hash256
	if len(memos) > 0 && len(memos[0]) == len(hint) {
		copy(hint[:], memos[0])
	}
	s.AddCoin(cs.Coin, types.Hash256{})
	if err := s.Spend(cs, Child{Coin: coin, Hint: hint}); err != nil {
		return types.Hash256{}, types.Coin{}, err
	}
	return cs.Coin.ID(), coin, nil
}

// Launch creates a stream with the given parameters. It returns the id of the
// launching coin and the new stream.
func (s *Sim) Launch(assetID types.Hash256, p types.StreamParams, amount, start uint64) (types.Hash256, types.VestingStream, error) {
	innerHash, err := s.Engine.InnerPuzzleHash(p, start)
	if err != nil {
		return types.Hash256{}, types.VestingStream{}, err
	}
	cs, _, err := s.SendSpend(assetID, innerHash, amount, puzzles.LaunchHints(p, start))
	if err != nil {
		return types.Hash256{}, types.VestingStream{}, err
	}
	launches, err := s.Engine.DetectLaunches(cs.Coin, cs.PuzzleReveal, cs.Solution)
	if err != nil {
		return types.Hash256{}, types.VestingStream{}, err
	} else if len(launches) != 1 {
		return types.Hash256{}, types.VestingStream{}, fmt.Errorf("launch spend created %d streams", len(launches))
	}
	s.AddCoin(cs.Coin, types.Hash256{})
	child := Child{Coin: launches[0].Coin, Hint: puzzles.RecipientIndexKey(p.Recipient)}
	if err := s.Spend(cs, child); err != nil {
		return types.Hash256{}, types.VestingStream{}, err
	}
	return cs.Coin.ID(), launches[0], nil
}

// Claim spends vs at paymentTime. See Submit.
func (s *Sim) Claim(vs types.VestingStream, paymentTime uint64, clawback bool) (stream.Outcome, error) {
	cs, err := s.Engine.BuildCoinSpend(vs, paymentTime, clawback)
	if err != nil {
		return stream.Outcome{}, err
	}
	return s.Submit(cs)
}

// Submit replays and applies the spend of a stream coin, confirming the
// payment to the recipient and, for a claim, the successor stream coin. For a
// clawback, the remainder is paid to the clawback target.
func (s *Sim) Submit(cs types.CoinSpend) (stream.Outcome, error) {
	out, err := s.Engine.ReplayStep(cs.Coin, cs.PuzzleReveal, cs.Solution)
	if err != nil {
		return stream.Outcome{}, err
	}
	vs := out.Spent

	var children []Child
	pay := func(to types.Hash256, amount uint64) {
		if amount == 0 {
			return
		}
		children = append(children, Child{
			Coin: types.Coin{
				ParentID:   cs.Coin.ID(),
				PuzzleHash: puzzles.CatPuzzleHash(s.Engine.Token, vs.AssetID, to),
				Amount:     amount,
			},
			Hint: to,
		})
	}
	pay(vs.Params.Recipient, out.Paid)
	switch out.Kind {
	case stream.Advance:
		children = append(children, Child{Coin: out.Stream.Coin})
	case stream.Clawback:
		pay(*vs.Params.Clawback, vs.Coin.Amount-out.Paid)
	default:
		return stream.Outcome{}, fmt.Errorf("spend of %v replayed as %v", cs.Coin.ID(), out.Kind)
	}
	return out, s.Spend(cs, children...)
}
