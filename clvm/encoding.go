package clvm

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const (
	consBox   = 0xff
	backref   = 0xfe
	nilAtom   = 0x80
	maxSingle = 0x7f

	// atoms of this size or larger cannot be represented
	maxAtomSize = 0x400000000
)

// ErrInvalidEncoding is returned when bytes are not a valid serialized CLVM
// value.
var ErrInvalidEncoding = errors.New("invalid CLVM encoding")

// An Encoder writes serialized CLVM values to an underlying stream.
type Encoder struct {
	w   io.Writer
	buf [1024]byte
	n   int
	err error
}

// Flush writes any pending data to the underlying stream. It returns the first
// error encountered by the Encoder.
func (e *Encoder) Flush() error {
	if e.err == nil && e.n > 0 {
		_, e.err = e.w.Write(e.buf[:e.n])
		e.n = 0
	}
	return e.err
}

// Write implements io.Writer.
func (e *Encoder) Write(p []byte) (int, error) {
	lenp := len(p)
	for e.err == nil && len(p) > 0 {
		if e.n == len(e.buf) {
			e.Flush()
		}
		c := copy(e.buf[e.n:], p)
		e.n += c
		p = p[c:]
	}
	return lenp, e.err
}

// WriteAtom writes a size-prefixed atom to the underlying stream.
func (e *Encoder) WriteAtom(b []byte) {
	size := uint64(len(b))
	switch {
	case size == 0:
		e.Write([]byte{nilAtom})
		return
	case size == 1 && b[0] <= maxSingle:
		e.Write(b)
		return
	case size < 0x40:
		e.Write([]byte{0x80 | byte(size)})
	case size < 0x2000:
		e.Write([]byte{0xc0 | byte(size>>8), byte(size)})
	case size < 0x100000:
		e.Write([]byte{0xe0 | byte(size>>16), byte(size >> 8), byte(size)})
	case size < 0x8000000:
		e.Write([]byte{0xf0 | byte(size>>24), byte(size >> 16), byte(size >> 8), byte(size)})
	case size < maxAtomSize:
		e.Write([]byte{0xf8 | byte(size>>32), byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)})
	default:
		if e.err == nil {
			e.err = fmt.Errorf("atom too large (%d bytes)", size)
		}
		return
	}
	e.Write(b)
}

// WriteNode writes n to the underlying stream.
func (e *Encoder) WriteNode(n Node) {
	for n.IsPair() {
		e.Write([]byte{consBox})
		e.WriteNode(n.pair.first)
		n = n.pair.rest
	}
	e.WriteAtom(n.atom)
}

// NewEncoder returns an Encoder that wraps the provided stream.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w: w,
	}
}

// A Decoder reads serialized CLVM values from an underlying stream. Callers
// MUST check (*Decoder).Err before using any decoded values.
type Decoder struct {
	lr  io.LimitedReader
	buf [8]byte
	err error
}

// SetErr sets the Decoder's error if it has not already been set.
func (d *Decoder) SetErr(err error) {
	if err != nil && d.err == nil {
		d.err = err
		d.buf = [len(d.buf)]byte{}
	}
}

// Err returns the first error encountered during decoding.
func (d *Decoder) Err() error { return d.err }

// Remaining returns the number of bytes left in the stream.
func (d *Decoder) Remaining() int64 { return d.lr.N }

// Read implements the io.Reader interface. It always returns an error if fewer
// than len(p) bytes were read.
func (d *Decoder) Read(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	n, err := io.ReadFull(&d.lr, p)
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	d.SetErr(err)
	return n, d.err
}

func (d *Decoder) readByte() byte {
	d.Read(d.buf[:1])
	return d.buf[0]
}

// readAtomSize decodes the size prefix that begins with b.
func (d *Decoder) readAtomSize(b byte) uint64 {
	count := 0
	for mask := byte(0x80); b&mask != 0; mask >>= 1 {
		count++
		b &^= mask
	}
	if count > 6 {
		d.SetErr(fmt.Errorf("%w: size prefix too long", ErrInvalidEncoding))
		return 0
	}
	size := uint64(b)
	if count > 1 {
		d.Read(d.buf[:count-1])
		for _, c := range d.buf[:count-1] {
			size = size<<8 | uint64(c)
		}
	}
	if size >= maxAtomSize {
		d.SetErr(fmt.Errorf("%w: atom size %d too large", ErrInvalidEncoding, size))
		return 0
	}
	return size
}

// ReadNode reads a serialized value from the underlying stream.
func (d *Decoder) ReadNode() Node {
	const (
		opParse = iota
		opCons
	)
	ops := []uint8{opParse}
	var vals []Node
	for len(ops) > 0 && d.err == nil {
		op := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if op == opCons {
			first, rest := vals[len(vals)-2], vals[len(vals)-1]
			vals = append(vals[:len(vals)-2], Pair(first, rest))
			continue
		}

		switch b := d.readByte(); {
		case d.err != nil:
		case b == consBox:
			ops = append(ops, opCons, opParse, opParse)
		case b == backref:
			d.SetErr(fmt.Errorf("%w: back references are not supported", ErrInvalidEncoding))
		case b == nilAtom:
			vals = append(vals, Nil)
		case b <= maxSingle:
			vals = append(vals, Atom([]byte{b}))
		default:
			size := d.readAtomSize(b)
			if d.err != nil {
				break
			} else if size > uint64(d.lr.N) {
				d.SetErr(fmt.Errorf("%w: atom size %d exceeds %d remaining bytes", ErrInvalidEncoding, size, d.lr.N))
				break
			}
			atom := make([]byte, size)
			d.Read(atom)
			vals = append(vals, Atom(atom))
		}
	}
	if d.err != nil {
		return Nil
	}
	return vals[0]
}

// NewDecoder returns a Decoder that wraps the provided stream.
func NewDecoder(lr io.LimitedReader) *Decoder {
	return &Decoder{
		lr: lr,
	}
}

// NewBufDecoder returns a Decoder for the provided byte slice.
func NewBufDecoder(buf []byte) *Decoder {
	return NewDecoder(io.LimitedReader{
		R: bytes.NewReader(buf),
		N: int64(len(buf)),
	})
}

// Serialize returns the serialized form of n.
func Serialize(n Node) []byte {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.WriteNode(n)
	e.Flush() // no error possible for atoms produced in memory
	return buf.Bytes()
}

// Deserialize decodes a single serialized value, which must span all of b.
func Deserialize(b []byte) (Node, error) {
	d := NewBufDecoder(b)
	n := d.ReadNode()
	if err := d.Err(); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
		}
		return Nil, err
	} else if d.Remaining() != 0 {
		return Nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidEncoding, d.Remaining())
	}
	return n, nil
}

// DeserializeHex decodes a hex-encoded serialized value. A leading 0x is
// ignored.
func DeserializeHex(s string) (Node, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return Deserialize(b)
}
