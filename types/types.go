// Package types defines the essential types of the streamed CAT driver.
package types

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// A Hash256 is a generic 256-bit cryptographic hash. Puzzle hashes, coin IDs,
// and asset IDs are all Hash256 values.
type Hash256 [32]byte

// A Coin is a ledger value unit.
type Coin struct {
	ParentID   Hash256 `json:"parent_coin_info"`
	PuzzleHash Hash256 `json:"puzzle_hash"`
	Amount     uint64  `json:"amount"`
}

// ID returns the coin's identifier.
func (c Coin) ID() Hash256 {
	return CoinID(c.ParentID, c.PuzzleHash, c.Amount)
}

// A LineageProof proves that a token-layer coin is the child of another
// token-layer coin of the same asset.
type LineageProof struct {
	ParentParentID        Hash256 `json:"parent_parent_coin_info"`
	ParentInnerPuzzleHash Hash256 `json:"parent_inner_puzzle_hash"`
	ParentAmount          uint64  `json:"parent_amount"`
}

// A StreamVersion identifies a version of the streaming puzzle.
type StreamVersion uint8

// Supported streaming puzzle versions.
const (
	// StreamV1 streams cannot be clawed back.
	StreamV1 StreamVersion = 1
	// StreamV2 streams designate a party that may terminate the stream early.
	StreamV2 StreamVersion = 2
)

// String implements fmt.Stringer.
func (v StreamVersion) String() string {
	switch v {
	case StreamV1:
		return "v1"
	case StreamV2:
		return "v2"
	default:
		return fmt.Sprintf("StreamVersion(%d)", uint8(v))
	}
}

// SupportsClawback reports whether streams of this version can be clawed
// back.
func (v StreamVersion) SupportsClawback() bool { return v == StreamV2 }

// StreamParams are the parameters of a stream that never change over its
// lifetime.
type StreamParams struct {
	Version   StreamVersion `json:"version"`
	Recipient Hash256       `json:"recipient"`
	Clawback  *Hash256      `json:"clawback,omitempty"`
	EndTime   uint64        `json:"end_time"`
}

// Validate checks that the parameters are consistent with their version.
func (p StreamParams) Validate() error {
	switch p.Version {
	case StreamV1:
		if p.Clawback != nil {
			return errors.New("v1 streams cannot have a clawback puzzle hash")
		}
	case StreamV2:
		if p.Clawback == nil {
			return errors.New("v2 streams require a clawback puzzle hash")
		}
	default:
		return fmt.Errorf("unknown stream version %v", p.Version)
	}
	return nil
}

// A VestingStream is the state of a stream at one point in its lineage.
type VestingStream struct {
	Coin            Coin         `json:"coin"`
	AssetID         Hash256      `json:"asset_id"`
	Proof           LineageProof `json:"lineage_proof"`
	Params          StreamParams `json:"params"`
	LastPaymentTime uint64       `json:"last_payment_time"`
}

// Exhausted reports whether the stream has paid out its full balance.
func (s VestingStream) Exhausted() bool {
	return s.Coin.Amount == 0 && s.LastPaymentTime == s.Params.EndTime
}

// Validate checks the invariants of the stream state.
func (s VestingStream) Validate() error {
	if err := s.Params.Validate(); err != nil {
		return err
	} else if s.LastPaymentTime >= s.Params.EndTime && !s.Exhausted() {
		return fmt.Errorf("last payment time (%d) is not before end time (%d)", s.LastPaymentTime, s.Params.EndTime)
	}
	return nil
}

// Implementations of fmt.Stringer and encoding.Text(Un)marshaler

func stringerHex(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

func unmarshalHex(dst []byte, data []byte) error {
	data = bytes.TrimPrefix(data, []byte("0x"))
	if len(data) != hex.EncodedLen(len(dst)) {
		return fmt.Errorf("decoding 0x<hex> failed: %w", io.ErrUnexpectedEOF)
	} else if _, err := hex.Decode(dst, data); err != nil {
		return fmt.Errorf("decoding 0x<hex> failed: %w", err)
	}
	return nil
}

// String implements fmt.Stringer.
func (h Hash256) String() string { return stringerHex(h[:]) }

// MarshalText implements encoding.TextMarshaler.
func (h Hash256) MarshalText() ([]byte, error) { return []byte(stringerHex(h[:])), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash256) UnmarshalText(b []byte) error { return unmarshalHex(h[:], b) }

// ParseHash256 parses a Hash256 from a hex string, with or without the 0x
// prefix.
func ParseHash256(s string) (h Hash256, err error) {
	err = h.UnmarshalText([]byte(s))
	return
}

// String implements fmt.Stringer.
func (c Coin) String() string {
	return fmt.Sprintf("%v (%d)", c.ID(), c.Amount)
}

// A Program is a serialized CLVM program. Its text form is 0x-prefixed hex.
type Program []byte

// String implements fmt.Stringer.
func (p Program) String() string { return stringerHex(p) }

// MarshalText implements encoding.TextMarshaler.
func (p Program) MarshalText() ([]byte, error) { return []byte(stringerHex(p)), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Program) UnmarshalText(b []byte) error {
	b = bytes.TrimPrefix(b, []byte("0x"))
	buf := make([]byte, hex.DecodedLen(len(b)))
	if _, err := hex.Decode(buf, b); err != nil {
		return fmt.Errorf("decoding 0x<hex> failed: %w", err)
	}
	*p = buf
	return nil
}

// A CoinSpend reveals the puzzle of a coin and the solution it was spent
// with.
type CoinSpend struct {
	Coin         Coin    `json:"coin"`
	PuzzleReveal Program `json:"puzzle_reveal"`
	Solution     Program `json:"solution"`
}
