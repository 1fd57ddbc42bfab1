package clvm

import (
	"go.streamcat.tech/core/types"
)

const (
	atomHashPrefix = 1
	pairHashPrefix = 2
)

// HashAtom returns the tree hash of an atom containing b.
func HashAtom(b []byte) types.Hash256 {
	h := types.GetHasher()
	defer types.PutHasher(h)
	h.WriteByte(atomHashPrefix)
	h.Write(b)
	return h.Sum()
}

// HashPair returns the tree hash of a pair whose elements have the given tree
// hashes.
func HashPair(first, rest types.Hash256) types.Hash256 {
	h := types.GetHasher()
	defer types.PutHasher(h)
	h.WriteByte(pairHashPrefix)
	h.WriteHash(first)
	h.WriteHash(rest)
	return h.Sum()
}

// HashUint64 returns the tree hash of the integer atom u.
func HashUint64(u uint64) types.Hash256 {
	h := types.GetHasher()
	defer types.PutHasher(h)
	h.WriteByte(atomHashPrefix)
	h.WriteUint64(u)
	return h.Sum()
}

// HashBytes32 returns the tree hash of an atom containing x.
func HashBytes32(x types.Hash256) types.Hash256 {
	return HashAtom(x[:])
}

// TreeHash returns the tree hash of n.
func TreeHash(n Node) types.Hash256 {
	if n.IsAtom() {
		return HashAtom(n.atom)
	}
	return HashPair(TreeHash(n.pair.first), TreeHash(n.pair.rest))
}

// Precomputed hashes of frequently used atoms.
var (
	NilHash = HashAtom(nil)
	OneHash = HashAtom([]byte{opQuote})
)
