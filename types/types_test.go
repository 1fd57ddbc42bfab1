package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"lukechampine.com/frand"
)

func TestUint64Encoding(t *testing.T) {
	tests := []struct {
		u   uint64
		enc []byte
	}{
		{0, nil},
		{1, []byte{0x01}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x00, 0x80}},
		{0xff, []byte{0x00, 0xff}},
		{0x100, []byte{0x01, 0x00}},
		{1000, []byte{0x03, 0xe8}},
		{1 << 63, []byte{0x00, 0x80, 0, 0, 0, 0, 0, 0, 0}},
		{^uint64(0), []byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}
	for _, test := range tests {
		if enc := EncodeUint64(test.u); !bytes.Equal(enc, test.enc) {
			t.Errorf("EncodeUint64(%d): expected %x, got %x", test.u, test.enc, enc)
		}
		if u, err := DecodeUint64(test.enc); err != nil {
			t.Errorf("DecodeUint64(%x): %v", test.enc, err)
		} else if u != test.u {
			t.Errorf("DecodeUint64(%x): expected %d, got %d", test.enc, test.u, u)
		}
	}

	for i := 0; i < 1000; i++ {
		u := frand.Uint64n(^uint64(0))
		if got, err := DecodeUint64(EncodeUint64(u)); err != nil || got != u {
			t.Fatalf("roundtrip of %d failed: %d, %v", u, got, err)
		}
	}
}

func TestDecodeUint64Invalid(t *testing.T) {
	tests := []struct {
		enc []byte
		err error
	}{
		{[]byte{0x80}, ErrNegativeInteger},
		{[]byte{0xff, 0xff}, ErrNegativeInteger},
		{[]byte{0x00}, ErrNonCanonicalInteger},
		{[]byte{0x00, 0x7f}, ErrNonCanonicalInteger},
		{[]byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0}, ErrIntegerOverflow},
		{[]byte{0x00, 0x80, 0, 0, 0, 0, 0, 0, 0, 0}, ErrIntegerOverflow},
	}
	for _, test := range tests {
		if _, err := DecodeUint64(test.enc); !errors.Is(err, test.err) {
			t.Errorf("DecodeUint64(%x): expected %v, got %v", test.enc, test.err, err)
		}
	}
}

func TestCoinID(t *testing.T) {
	c := Coin{
		ParentID:   frand.Entropy256(),
		PuzzleHash: frand.Entropy256(),
		Amount:     1000,
	}
	buf := append(append(append([]byte(nil), c.ParentID[:]...), c.PuzzleHash[:]...), 0x03, 0xe8)
	if c.ID() != HashBytes(buf) {
		t.Fatal("coin ID does not match manual computation")
	}

	// zero amounts contribute no bytes
	c.Amount = 0
	if c.ID() != HashBytes(buf[:64]) {
		t.Fatal("coin ID of zero-value coin does not match manual computation")
	}
}

func TestHashText(t *testing.T) {
	h := Hash256(frand.Entropy256())
	for _, s := range []string{h.String(), h.String()[2:]} {
		got, err := ParseHash256(s)
		if err != nil {
			t.Fatal(err)
		} else if got != h {
			t.Fatalf("expected %v, got %v", h, got)
		}
	}
	for _, s := range []string{"", "0x", "0x1234", h.String() + "00", "0x" + string(bytes.Repeat([]byte("zz"), 32))} {
		if _, err := ParseHash256(s); err == nil {
			t.Errorf("expected error parsing %q", s)
		}
	}
}

func TestCoinJSON(t *testing.T) {
	c := Coin{
		ParentID:   Hash256{1},
		PuzzleHash: Hash256{2},
		Amount:     716,
	}
	js, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	const exp = `{"parent_coin_info":"0x0100000000000000000000000000000000000000000000000000000000000000","puzzle_hash":"0x0200000000000000000000000000000000000000000000000000000000000000","amount":716}`
	if string(js) != exp {
		t.Fatalf("expected %s, got %s", exp, js)
	}
	var c2 Coin
	if err := json.Unmarshal(js, &c2); err != nil {
		t.Fatal(err)
	} else if c2 != c {
		t.Fatalf("expected %v, got %v", c, c2)
	}
}

func TestStreamValidate(t *testing.T) {
	clawback := Hash256{9}
	tests := []struct {
		s     VestingStream
		valid bool
	}{
		{VestingStream{Params: StreamParams{Version: StreamV1, EndTime: 10}, LastPaymentTime: 5}, true},
		{VestingStream{Params: StreamParams{Version: StreamV1, EndTime: 10}, LastPaymentTime: 10}, true}, // exhausted
		{VestingStream{Params: StreamParams{Version: StreamV1, EndTime: 10}, LastPaymentTime: 10, Coin: Coin{Amount: 1}}, false},
		{VestingStream{Params: StreamParams{Version: StreamV1, EndTime: 10}, LastPaymentTime: 11}, false},
		{VestingStream{Params: StreamParams{Version: StreamV1, Clawback: &clawback, EndTime: 10}}, false},
		{VestingStream{Params: StreamParams{Version: StreamV2, EndTime: 10}}, false},
		{VestingStream{Params: StreamParams{Version: StreamV2, Clawback: &clawback, EndTime: 10}}, true},
		{VestingStream{Params: StreamParams{Version: 7, EndTime: 10}}, false},
	}
	for i, test := range tests {
		if err := test.s.Validate(); (err == nil) != test.valid {
			t.Errorf("test %d: expected valid=%v, got %v", i, test.valid, err)
		}
	}
}

func TestInt64Encoding(t *testing.T) {
	tests := []struct {
		v   int64
		enc []byte
	}{
		{0, nil},
		{1, []byte{0x01}},
		{-1, []byte{0xff}},
		{127, []byte{0x7f}},
		{128, []byte{0x00, 0x80}},
		{-128, []byte{0x80}},
		{-129, []byte{0xff, 0x7f}},
		{-256, []byte{0xff, 0x00}},
		{-1 << 63, []byte{0x80, 0, 0, 0, 0, 0, 0, 0}},
	}
	for _, test := range tests {
		if enc := AppendInt64(nil, test.v); !bytes.Equal(enc, test.enc) {
			t.Errorf("AppendInt64(%d): expected %x, got %x", test.v, test.enc, enc)
		}
		if v, err := DecodeInt64(test.enc); err != nil {
			t.Errorf("DecodeInt64(%x): %v", test.enc, err)
		} else if v != test.v {
			t.Errorf("DecodeInt64(%x): expected %d, got %d", test.enc, test.v, v)
		}
	}
	for _, enc := range [][]byte{{0xff, 0xff}, {0xff, 0x80}, {0x00, 0x80, 0, 0, 0, 0, 0, 0, 0}, {0x80, 0, 0, 0, 0, 0, 0, 0, 0}} {
		if _, err := DecodeInt64(enc); err == nil {
			t.Errorf("DecodeInt64(%x): expected error", enc)
		}
	}
}

func TestCoinSpendJSON(t *testing.T) {
	cs := CoinSpend{
		Coin:         Coin{ParentID: frand.Entropy256(), PuzzleHash: frand.Entropy256(), Amount: 1},
		PuzzleReveal: Program{0xff, 0x01, 0x80},
		Solution:     Program{0x80},
	}
	js, err := json.Marshal(cs)
	if err != nil {
		t.Fatal(err)
	} else if !bytes.Contains(js, []byte(`"puzzle_reveal":"0xff0180"`)) || !bytes.Contains(js, []byte(`"solution":"0x80"`)) {
		t.Fatalf("unexpected encoding %s", js)
	}
	var cs2 CoinSpend
	if err := json.Unmarshal(js, &cs2); err != nil {
		t.Fatal(err)
	} else if cs2.Coin != cs.Coin || !bytes.Equal(cs2.PuzzleReveal, cs.PuzzleReveal) || !bytes.Equal(cs2.Solution, cs.Solution) {
		t.Fatalf("expected %v, got %v", cs, cs2)
	}
	// the ledger omits the prefix in some responses
	var p Program
	if err := p.UnmarshalText([]byte("ff0180")); err != nil || !bytes.Equal(p, cs.PuzzleReveal) {
		t.Fatal("failed to decode unprefixed program", err)
	} else if err := p.UnmarshalText([]byte("0xf")); err == nil {
		t.Fatal("expected error for odd-length hex")
	}
}
