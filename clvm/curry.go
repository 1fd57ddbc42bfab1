package clvm

import (
	"go.streamcat.tech/core/types"
)

// operator atoms used by the curry form
const (
	opQuote = 1
	opApply = 2
	opCons  = 4
)

var (
	quoteOp = Atom([]byte{opQuote})
	applyOp = Atom([]byte{opApply})
	consOp  = Atom([]byte{opCons})

	quoteHash = HashAtom([]byte{opQuote})
	applyHash = HashAtom([]byte{opApply})
	consHash  = HashAtom([]byte{opCons})
)

// Curry binds args to mod, producing the program
//
//	(a (q . mod) (c (q . arg1) (c (q . arg2) ... 1)))
//
// which, when run, runs mod with the curried arguments prepended to its
// environment.
func Curry(mod Node, args ...Node) Node {
	env := quoteOp // the atom 1 is the environment itself
	for i := len(args) - 1; i >= 0; i-- {
		env = List(consOp, Pair(quoteOp, args[i]), env)
	}
	return List(applyOp, Pair(quoteOp, mod), env)
}

// Uncurry is the inverse of Curry. The boolean is false if n is not of the
// curried form.
func Uncurry(n Node) (mod Node, args []Node, ok bool) {
	items, ok := n.Items()
	if !ok || len(items) != 3 || !items[0].AtomEquals([]byte{opApply}) {
		return Nil, nil, false
	}
	quoted := items[1]
	if !quoted.IsPair() || !quoted.First().AtomEquals([]byte{opQuote}) {
		return Nil, nil, false
	}
	mod = quoted.Rest()

	env := items[2]
	for !env.IsAtom() {
		cons, ok := env.Items()
		if !ok || len(cons) != 3 || !cons[0].AtomEquals([]byte{opCons}) {
			return Nil, nil, false
		}
		arg := cons[1]
		if !arg.IsPair() || !arg.First().AtomEquals([]byte{opQuote}) {
			return Nil, nil, false
		}
		args = append(args, arg.Rest())
		env = cons[2]
	}
	if !env.AtomEquals([]byte{opQuote}) {
		return Nil, nil, false
	}
	return mod, args, true
}

// CurryTreeHash returns the tree hash of Curry(mod, args...) given only the
// tree hashes of mod and each argument.
func CurryTreeHash(modHash types.Hash256, argHashes ...types.Hash256) types.Hash256 {
	quotedArgs := OneHash
	for i := len(argHashes) - 1; i >= 0; i-- {
		quotedArg := HashPair(quoteHash, argHashes[i])
		terminated := HashPair(quotedArgs, NilHash)
		quotedArgs = HashPair(consHash, HashPair(quotedArg, terminated))
	}
	quotedMod := HashPair(quoteHash, modHash)
	return HashPair(applyHash, HashPair(quotedMod, HashPair(quotedArgs, NilHash)))
}
