// Package address encodes puzzle hashes and stream ids as bech32m strings.
package address

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"go.streamcat.tech/core/types"
)

// Human-readable prefixes.
const (
	MainnetPrefix = "xch"
	TestnetPrefix = "txch"
	StreamPrefix  = "s"
)

// ErrWrongPrefix is returned when an address has an unexpected prefix.
var ErrWrongPrefix = errors.New("unexpected address prefix")

// Prefix returns the address prefix for the given network.
func Prefix(mainnet bool) string {
	if mainnet {
		return MainnetPrefix
	}
	return TestnetPrefix
}

// Encode returns the bech32m encoding of h with the given prefix.
func Encode(prefix string, h types.Hash256) (string, error) {
	data, err := bech32.ConvertBits(h[:], 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.EncodeM(prefix, data)
}

// Decode decodes a bech32m address, returning its prefix and payload.
func Decode(s string) (prefix string, h types.Hash256, err error) {
	prefix, data, version, err := bech32.DecodeGeneric(s)
	if err != nil {
		return "", types.Hash256{}, fmt.Errorf("invalid address %q: %w", s, err)
	} else if version != bech32.VersionM {
		return "", types.Hash256{}, fmt.Errorf("invalid address %q: not bech32m", s)
	}
	b, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", types.Hash256{}, fmt.Errorf("invalid address %q: %w", s, err)
	} else if len(b) != len(h) {
		return "", types.Hash256{}, fmt.Errorf("invalid address %q: payload is %d bytes", s, len(b))
	}
	copy(h[:], b)
	return prefix, h, nil
}

// DecodePrefix decodes a bech32m address, requiring the given prefix.
func DecodePrefix(s, want string) (types.Hash256, error) {
	prefix, h, err := Decode(s)
	if err != nil {
		return types.Hash256{}, err
	} else if prefix != want {
		return types.Hash256{}, fmt.Errorf("%w: expected %q, got %q", ErrWrongPrefix, want, prefix)
	}
	return h, nil
}

// EncodeStreamID encodes the id of a stream's launching coin.
func EncodeStreamID(id types.Hash256) string {
	s, err := Encode(StreamPrefix, id)
	if err != nil {
		panic(err) // should never happen
	}
	return s
}

// ParseStreamID parses a stream id, accepting either its bech32m form or a
// hex coin id.
func ParseStreamID(s string) (types.Hash256, error) {
	if id, err := DecodePrefix(s, StreamPrefix); err == nil {
		return id, nil
	} else if id, herr := types.ParseHash256(s); herr == nil {
		return id, nil
	} else {
		return types.Hash256{}, err
	}
}
