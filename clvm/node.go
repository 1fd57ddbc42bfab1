// Package clvm implements the value model, serialization, and tree hashing of
// CLVM programs.
package clvm

import (
	"bytes"
	"errors"
	"fmt"

	"go.streamcat.tech/core/types"
)

// A Node is a CLVM value: either an atom (a byte string) or a pair of Nodes.
// The zero Node is the empty atom, nil. Nodes are immutable.
type Node struct {
	atom []byte
	pair *pair
}

type pair struct {
	first, rest Node
}

// Nil is the empty atom.
var Nil Node

// Atom returns an atom Node containing b.
func Atom(b []byte) Node { return Node{atom: b} }

// Pair returns a pair Node.
func Pair(first, rest Node) Node { return Node{pair: &pair{first, rest}} }

// List returns a proper list containing the given Nodes.
func List(elems ...Node) Node {
	n := Nil
	for i := len(elems) - 1; i >= 0; i-- {
		n = Pair(elems[i], n)
	}
	return n
}

// Uint64 returns an atom containing the canonical integer encoding of u.
func Uint64(u uint64) Node { return Atom(types.EncodeUint64(u)) }

// Int64 returns an atom containing the canonical signed integer encoding of v.
func Int64(v int64) Node { return Atom(types.AppendInt64(nil, v)) }

// Hash returns an atom containing h.
func Hash(h types.Hash256) Node { return Atom(h[:]) }

// Bool returns the canonical atom for b: 1 for true, nil for false.
func Bool(b bool) Node {
	if b {
		return Atom([]byte{1})
	}
	return Nil
}

// IsPair reports whether n is a pair.
func (n Node) IsPair() bool { return n.pair != nil }

// IsAtom reports whether n is an atom.
func (n Node) IsAtom() bool { return n.pair == nil }

// IsNil reports whether n is the empty atom.
func (n Node) IsNil() bool { return n.pair == nil && len(n.atom) == 0 }

// Bytes returns the contents of an atom. It returns nil for pairs.
func (n Node) Bytes() []byte {
	if n.pair != nil {
		return nil
	}
	return n.atom
}

// First returns the first element of a pair. It returns Nil for atoms.
func (n Node) First() Node {
	if n.pair == nil {
		return Nil
	}
	return n.pair.first
}

// Rest returns the second element of a pair. It returns Nil for atoms.
func (n Node) Rest() Node {
	if n.pair == nil {
		return Nil
	}
	return n.pair.rest
}

// Items returns the elements of a proper list. The boolean is false if n is
// not a proper list.
func (n Node) Items() ([]Node, bool) {
	var items []Node
	for n.IsPair() {
		items = append(items, n.pair.first)
		n = n.pair.rest
	}
	if len(n.atom) != 0 {
		return nil, false
	}
	return items, true
}

// AtomEquals reports whether n is an atom with the given contents.
func (n Node) AtomEquals(b []byte) bool {
	return n.pair == nil && bytes.Equal(n.atom, b)
}

// Errors returned when interpreting atoms as typed values.
var (
	ErrNotAtom   = errors.New("expected atom, got pair")
	ErrNotHash   = errors.New("atom is not 32 bytes")
	ErrNotList   = errors.New("expected proper list")
	ErrWrongSize = errors.New("list has wrong number of elements")
)

// AsUint64 interprets n as a canonical unsigned integer.
func (n Node) AsUint64() (uint64, error) {
	if n.pair != nil {
		return 0, ErrNotAtom
	}
	return types.DecodeUint64(n.atom)
}

// AsInt64 interprets n as a canonical signed integer.
func (n Node) AsInt64() (int64, error) {
	if n.pair != nil {
		return 0, ErrNotAtom
	}
	return types.DecodeInt64(n.atom)
}

// AsHash interprets n as a 32-byte hash.
func (n Node) AsHash() (h types.Hash256, err error) {
	if n.pair != nil {
		return h, ErrNotAtom
	} else if len(n.atom) != len(h) {
		return h, fmt.Errorf("%w (got %d bytes)", ErrNotHash, len(n.atom))
	}
	copy(h[:], n.atom)
	return h, nil
}

// AsBool interprets n as a boolean: nil is false, any other atom is true.
func (n Node) AsBool() (bool, error) {
	if n.pair != nil {
		return false, ErrNotAtom
	}
	return len(n.atom) != 0, nil
}

// ListN returns the elements of n, which must be a proper list of exactly
// size elements.
func (n Node) ListN(size int) ([]Node, error) {
	items, ok := n.Items()
	if !ok {
		return nil, ErrNotList
	} else if len(items) != size {
		return nil, fmt.Errorf("%w (expected %d, got %d)", ErrWrongSize, size, len(items))
	}
	return items, nil
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b Node) bool {
	for {
		if a.IsAtom() || b.IsAtom() {
			return a.IsAtom() && b.IsAtom() && bytes.Equal(a.atom, b.atom)
		} else if !Equal(a.pair.first, b.pair.first) {
			return false
		}
		a, b = a.pair.rest, b.pair.rest
	}
}

// String implements fmt.Stringer, rendering n in hex-atom s-expression form.
func (n Node) String() string {
	var buf bytes.Buffer
	writeNode(&buf, n)
	return buf.String()
}

func writeNode(buf *bytes.Buffer, n Node) {
	if n.IsAtom() {
		if len(n.atom) == 0 {
			buf.WriteString("()")
		} else {
			fmt.Fprintf(buf, "0x%x", n.atom)
		}
		return
	}
	buf.WriteByte('(')
	writeNode(buf, n.pair.first)
	for n = n.pair.rest; n.IsPair(); n = n.pair.rest {
		buf.WriteByte(' ')
		writeNode(buf, n.pair.first)
	}
	if len(n.atom) != 0 {
		buf.WriteString(" . ")
		writeNode(buf, n)
	}
	buf.WriteByte(')')
}
