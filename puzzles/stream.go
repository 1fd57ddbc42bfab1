package puzzles

import (
	"errors"
	"fmt"

	"go.streamcat.tech/core/clvm"
	"go.streamcat.tech/core/types"
)

// Errors returned by ParseStreamPuzzle.
var (
	ErrUnknownTemplate = errors.New("stream puzzle uses an unknown template")
	ErrMalformedArgs   = errors.New("stream puzzle has malformed curried arguments")
)

// firstCurryArgs returns the immutable arguments bound by the first curry.
func firstCurryArgs(t Template, p types.StreamParams) []clvm.Node {
	if t.Version.SupportsClawback() {
		clawback := clvm.Nil
		if p.Clawback != nil {
			clawback = clvm.Hash(*p.Clawback)
		}
		return []clvm.Node{clvm.Hash(p.Recipient), clawback, clvm.Uint64(p.EndTime)}
	}
	return []clvm.Node{clvm.Hash(p.Recipient), clvm.Uint64(p.EndTime)}
}

func firstCurryArgHashes(t Template, p types.StreamParams) []types.Hash256 {
	if t.Version.SupportsClawback() {
		clawback := clvm.NilHash
		if p.Clawback != nil {
			clawback = clvm.HashBytes32(*p.Clawback)
		}
		return []types.Hash256{clvm.HashBytes32(p.Recipient), clawback, clvm.HashUint64(p.EndTime)}
	}
	return []types.Hash256{clvm.HashBytes32(p.Recipient), clvm.HashUint64(p.EndTime)}
}

// SelfHash returns the hash of t curried with the immutable stream
// parameters. It is constant for the lifetime of a stream.
func SelfHash(t Template, p types.StreamParams) types.Hash256 {
	return clvm.CurryTreeHash(t.Hash, firstCurryArgHashes(t, p)...)
}

// InnerPuzzleHash returns the hash of the stream's inner puzzle at the given
// last payment time. The arity of the curried arguments is determined by t;
// a clawback target is only committed to by templates that support it.
func InnerPuzzleHash(t Template, p types.StreamParams, lastPaymentTime uint64) types.Hash256 {
	self := SelfHash(t, p)
	return clvm.CurryTreeHash(self, clvm.HashBytes32(self), clvm.HashUint64(lastPaymentTime))
}

// StreamPuzzle returns the stream's inner puzzle at the given last payment
// time.
func StreamPuzzle(t Template, p types.StreamParams, lastPaymentTime uint64) (clvm.Node, error) {
	reveal, err := t.Reveal()
	if err != nil {
		return clvm.Nil, err
	}
	first := clvm.Curry(reveal, firstCurryArgs(t, p)...)
	return clvm.Curry(first, clvm.Hash(SelfHash(t, p)), clvm.Uint64(lastPaymentTime)), nil
}

// A ParsedStream is the information recovered from a stream's inner puzzle.
type ParsedStream struct {
	Template        Template
	Params          types.StreamParams
	LastPaymentTime uint64
	SelfHash        types.Hash256
}

// ParseStreamPuzzle attempts to recognize n as a stream inner puzzle. It
// returns false if n does not have the two-stage curried shape: an outer curry
// of exactly two arguments whose first argument is the hash of the inner
// curried program. If n has that shape but its template is not in r, or its
// arguments do not decode, an error is returned.
func (r Registry) ParseStreamPuzzle(n clvm.Node) (ParsedStream, bool, error) {
	first, args, ok := clvm.Uncurry(n)
	if !ok || len(args) != 2 {
		return ParsedStream{}, false, nil
	}
	self, err := args[0].AsHash()
	if err != nil || clvm.TreeHash(first) != self {
		return ParsedStream{}, false, nil
	}
	mod, modArgs, ok := clvm.Uncurry(first)
	if !ok {
		return ParsedStream{}, false, nil
	}

	modHash := clvm.TreeHash(mod)
	t, ok := r.ByHash(modHash)
	if !ok {
		return ParsedStream{}, true, fmt.Errorf("%w: %v", ErrUnknownTemplate, modHash)
	}
	ps := ParsedStream{
		Template: t,
		SelfHash: self,
	}
	ps.Params, err = parseFirstCurryArgs(t, modArgs)
	if err != nil {
		return ParsedStream{}, true, err
	}
	ps.LastPaymentTime, err = args[1].AsUint64()
	if err != nil {
		return ParsedStream{}, true, fmt.Errorf("%w: last payment time: %v", ErrMalformedArgs, err)
	}
	return ps, true, nil
}

func parseFirstCurryArgs(t Template, args []clvm.Node) (p types.StreamParams, err error) {
	p.Version = t.Version
	want := 2
	if t.Version.SupportsClawback() {
		want = 3
	}
	if len(args) != want {
		return p, fmt.Errorf("%w: expected %d arguments, got %d", ErrMalformedArgs, want, len(args))
	}
	if p.Recipient, err = args[0].AsHash(); err != nil {
		return p, fmt.Errorf("%w: recipient: %v", ErrMalformedArgs, err)
	}
	if t.Version.SupportsClawback() {
		if !args[1].IsNil() {
			clawback, err := args[1].AsHash()
			if err != nil {
				return p, fmt.Errorf("%w: clawback: %v", ErrMalformedArgs, err)
			}
			p.Clawback = &clawback
		}
		args = args[1:]
	}
	if p.EndTime, err = args[1].AsUint64(); err != nil {
		return p, fmt.Errorf("%w: end time: %v", ErrMalformedArgs, err)
	}
	return p, nil
}
