package types

import (
	"encoding/binary"
	"errors"
)

// Errors returned by DecodeUint64.
var (
	ErrNegativeInteger     = errors.New("integer atom is negative")
	ErrIntegerOverflow     = errors.New("integer atom does not fit in 64 bits")
	ErrNonCanonicalInteger = errors.New("integer atom has redundant leading zero")
)

// AppendUint64 appends the canonical integer atom encoding of u to dst. The
// encoding is big-endian two's complement with no redundant leading bytes;
// zero is the empty atom.
func AppendUint64(dst []byte, u uint64) []byte {
	if u == 0 {
		return dst
	}
	var buf [9]byte
	binary.BigEndian.PutUint64(buf[1:], u)
	i := 1
	for buf[i] == 0 {
		i++
	}
	if buf[i]&0x80 != 0 {
		i-- // sign byte
	}
	return append(dst, buf[i:]...)
}

// EncodeUint64 returns the canonical integer atom encoding of u.
func EncodeUint64(u uint64) []byte {
	return AppendUint64(nil, u)
}

// DecodeUint64 decodes a canonical integer atom.
func DecodeUint64(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, nil
	} else if b[0]&0x80 != 0 {
		return 0, ErrNegativeInteger
	} else if b[0] == 0 {
		if len(b) == 1 || b[1]&0x80 == 0 {
			return 0, ErrNonCanonicalInteger
		}
		b = b[1:]
	}
	if len(b) > 8 {
		return 0, ErrIntegerOverflow
	}
	var u uint64
	for _, c := range b {
		u = u<<8 | uint64(c)
	}
	return u, nil
}

// AppendInt64 appends the canonical signed integer atom encoding of v to dst.
func AppendInt64(dst []byte, v int64) []byte {
	if v >= 0 {
		return AppendUint64(dst, uint64(v))
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	i := 0
	for i < 7 && buf[i] == 0xff && buf[i+1]&0x80 != 0 {
		i++
	}
	return append(dst, buf[i:]...)
}

// DecodeInt64 decodes a canonical signed integer atom.
func DecodeInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, nil
	} else if b[0]&0x80 == 0 {
		u, err := DecodeUint64(b)
		if err != nil {
			return 0, err
		} else if u > 1<<63-1 {
			return 0, ErrIntegerOverflow
		}
		return int64(u), nil
	} else if len(b) > 1 && b[0] == 0xff && b[1]&0x80 != 0 {
		return 0, ErrNonCanonicalInteger
	} else if len(b) > 8 {
		return 0, ErrIntegerOverflow
	}
	v := int64(-1)
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v, nil
}
