package puzzles

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"go.streamcat.tech/core/clvm"
	"go.streamcat.tech/core/types"
	"lukechampine.com/frand"
)

var (
	testToken    = NewTemplate("test_cat", 0, clvm.List(clvm.Atom([]byte("test token layer"))))
	testClawback = NewTemplate("test_stream_v2", types.StreamV2, clvm.List(clvm.Atom([]byte("test clawback stream"))))
)

func testRegistry(t *testing.T) Registry {
	t.Helper()
	r, err := DefaultRegistry().With(testClawback)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func randomParams(v types.StreamVersion) types.StreamParams {
	p := types.StreamParams{
		Version:   v,
		Recipient: frand.Entropy256(),
		EndTime:   frand.Uint64n(1<<40) + 1,
	}
	if v.SupportsClawback() {
		c := types.Hash256(frand.Entropy256())
		p.Clawback = &c
	}
	return p
}

func TestStreamV1Reveal(t *testing.T) {
	reveal, err := StreamV1Template.Reveal()
	if err != nil {
		t.Fatal(err)
	}
	if h := clvm.TreeHash(reveal); h != StreamV1Hash {
		t.Fatalf("v1 reveal hashes to %v, expected %v", h, StreamV1Hash)
	}
	exp, _ := hex.DecodeString(streamV1Reveal)
	if len(exp) != 517 {
		t.Fatalf("expected 517-byte reveal, got %d", len(exp))
	} else if !bytes.Equal(clvm.Serialize(reveal), exp) {
		t.Fatal("v1 reveal does not reserialize to the same bytes")
	}
	if _, err := LoadTemplate("v1", types.StreamV1, streamV1Reveal, StreamV1Hash); err != nil {
		t.Fatal(err)
	} else if _, err := LoadTemplate("v1", types.StreamV1, streamV1Reveal, CATModHash); err == nil {
		t.Fatal("expected hash mismatch")
	}
}

func TestGoldenPuzzleHashes(t *testing.T) {
	p := types.StreamParams{
		Version:   types.StreamV1,
		Recipient: types.Hash256{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11},
		EndTime:   4510,
	}
	var assetID types.Hash256
	for i := range assetID {
		assetID[i] = 0x22
	}
	if h := SelfHash(StreamV1Template, p); h != mustParseHash("996f9b6e49cf3ab51ae4f62fe2f37d9210da2e290ad1d9024d913112c3dd0d1b") {
		t.Errorf("unexpected self hash %v", h)
	}
	tests := []struct {
		lpt   uint64
		inner string
		outer string
	}{
		{1000, "757beb0a25575c7e4b03f84d3a00fdfa8540031f8523043dffb1717c8d9713f0", "1f4a5c4e1782b4a9fef25499a56053964df96fafb0658f9594a2fbb48fe83f4b"},
		{2000, "bc0dc967046065344af337c4526f126ab09042131f462cfd9348cd00061d1546", "3c83ed45477b010ff25a226f1e8bcf783f7c8ef8e9952b09e2ca77c05fb08f23"},
	}
	for _, test := range tests {
		if h := InnerPuzzleHash(StreamV1Template, p, test.lpt); h != mustParseHash(test.inner) {
			t.Errorf("lpt %d: unexpected inner puzzle hash %v", test.lpt, h)
		}
		if h := PuzzleHash(CATTemplate, StreamV1Template, assetID, p, test.lpt); h != mustParseHash(test.outer) {
			t.Errorf("lpt %d: unexpected puzzle hash %v", test.lpt, h)
		}
	}
	if k := RecipientIndexKey(p.Recipient); k != mustParseHash("ffc94d09806f1315804738ff3d5473e945843af32aa2fe4309a6fc07dade2d9a") {
		t.Errorf("unexpected recipient index key %v", k)
	}
}

func TestStreamPuzzle(t *testing.T) {
	r := testRegistry(t)
	for _, tmpl := range []Template{StreamV1Template, testClawback} {
		p := randomParams(tmpl.Version)
		lpt := frand.Uint64n(p.EndTime)
		puz, err := StreamPuzzle(tmpl, p, lpt)
		if err != nil {
			t.Fatal(err)
		} else if clvm.TreeHash(puz) != InnerPuzzleHash(tmpl, p, lpt) {
			t.Fatalf("%v: InnerPuzzleHash does not match TreeHash of built puzzle", tmpl.Version)
		}

		ps, ok, err := r.ParseStreamPuzzle(puz)
		if err != nil || !ok {
			t.Fatalf("%v: failed to parse stream puzzle: %v %v", tmpl.Version, ok, err)
		} else if ps.Template.Hash != tmpl.Hash || ps.LastPaymentTime != lpt || ps.SelfHash != SelfHash(tmpl, p) {
			t.Fatalf("%v: parsed stream mismatch: %+v", tmpl.Version, ps)
		} else if ps.Params.Recipient != p.Recipient || ps.Params.EndTime != p.EndTime || ps.Params.Version != p.Version {
			t.Fatalf("%v: parsed params mismatch: %+v", tmpl.Version, ps.Params)
		} else if (ps.Params.Clawback == nil) != (p.Clawback == nil) || (p.Clawback != nil && *ps.Params.Clawback != *p.Clawback) {
			t.Fatalf("%v: parsed clawback mismatch", tmpl.Version)
		}
	}

	// a clawback template without a clawback target commits to nil
	p := randomParams(types.StreamV2)
	p.Clawback = nil
	puz, err := StreamPuzzle(testClawback, p, 0)
	if err != nil {
		t.Fatal(err)
	} else if clvm.TreeHash(puz) != InnerPuzzleHash(testClawback, p, 0) {
		t.Fatal("nil clawback hash mismatch")
	}
}

func TestParseStreamPuzzleRejects(t *testing.T) {
	r := DefaultRegistry()
	p := randomParams(types.StreamV2)

	// unknown template with the right shape is a violation
	puz, err := StreamPuzzle(testClawback, p, 5)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := r.ParseStreamPuzzle(puz); !ok || !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected ErrUnknownTemplate, got %v %v", ok, err)
	}

	// known template with the wrong number of arguments
	reveal, _ := StreamV1Template.Reveal()
	first := clvm.Curry(reveal, clvm.Hash(p.Recipient))
	bad := clvm.Curry(first, clvm.Hash(clvm.TreeHash(first)), clvm.Uint64(5))
	if _, ok, err := r.ParseStreamPuzzle(bad); !ok || !errors.Is(err, ErrMalformedArgs) {
		t.Fatalf("expected ErrMalformedArgs, got %v %v", ok, err)
	}

	// negative last payment time
	first = clvm.Curry(reveal, clvm.Hash(p.Recipient), clvm.Uint64(10))
	bad = clvm.Curry(first, clvm.Hash(clvm.TreeHash(first)), clvm.Atom([]byte{0xff}))
	if _, ok, err := r.ParseStreamPuzzle(bad); !ok || !errors.Is(err, ErrMalformedArgs) {
		t.Fatalf("expected ErrMalformedArgs, got %v %v", ok, err)
	}

	// shapes that are not streams at all
	notStreams := []clvm.Node{
		clvm.Nil,
		clvm.Atom([]byte("program")),
		clvm.Curry(reveal, clvm.Hash(p.Recipient), clvm.Uint64(10)),
		clvm.Curry(first, clvm.Hash(types.Hash256{1}), clvm.Uint64(5)),
		clvm.Curry(first, clvm.Uint64(5), clvm.Uint64(5)),
		clvm.Curry(first, clvm.Hash(clvm.TreeHash(first)), clvm.Uint64(5), clvm.Nil),
		clvm.Curry(clvm.Nil, clvm.Hash(clvm.TreeHash(clvm.Nil)), clvm.Uint64(5)),
	}
	for i, n := range notStreams {
		if _, ok, err := r.ParseStreamPuzzle(n); ok || err != nil {
			t.Errorf("case %d: expected no match, got %v %v", i, ok, err)
		}
	}
}

func TestCatPuzzle(t *testing.T) {
	assetID := types.Hash256(frand.Entropy256())
	inner := clvm.List(clvm.Atom([]byte("inner")))
	puz, err := CatPuzzle(testToken, assetID, inner)
	if err != nil {
		t.Fatal(err)
	} else if clvm.TreeHash(puz) != CatPuzzleHash(testToken, assetID, clvm.TreeHash(inner)) {
		t.Fatal("CatPuzzleHash does not match TreeHash of built puzzle")
	}
	gotAsset, gotInner, ok := ParseCatPuzzle(testToken, puz)
	if !ok || gotAsset != assetID || !clvm.Equal(gotInner, inner) {
		t.Fatal("failed to parse token-layer puzzle")
	}
	if _, _, ok := ParseCatPuzzle(CATTemplate, puz); ok {
		t.Fatal("parsed puzzle with wrong token template")
	} else if _, _, ok := ParseCatPuzzle(testToken, inner); ok {
		t.Fatal("parsed non-token puzzle")
	}
	if _, err := CatPuzzle(CATTemplate, assetID, inner); !errors.Is(err, ErrNoReveal) {
		t.Fatal("expected ErrNoReveal, got", err)
	}
}

func TestCatSolution(t *testing.T) {
	cs := CatSolution{
		InnerSolution: clvm.List(clvm.Uint64(1000), clvm.Uint64(2000)),
		LineageProof: &types.LineageProof{
			ParentParentID:        frand.Entropy256(),
			ParentInnerPuzzleHash: frand.Entropy256(),
			ParentAmount:          1000,
		},
		PrevCoinID: frand.Entropy256(),
		ThisCoin:   types.Coin{ParentID: frand.Entropy256(), PuzzleHash: frand.Entropy256(), Amount: 1000},
		NextCoinProof: CoinProof{
			ParentID:        frand.Entropy256(),
			InnerPuzzleHash: frand.Entropy256(),
			Amount:          1000,
		},
		PrevSubtotal: -5,
		ExtraDelta:   0,
	}
	got, err := ParseCatSolution(cs.Node())
	if err != nil {
		t.Fatal(err)
	} else if !clvm.Equal(got.Node(), cs.Node()) || *got.LineageProof != *cs.LineageProof || got.PrevSubtotal != -5 {
		t.Fatal("token-layer solution mismatch")
	}

	cs.LineageProof = nil
	if got, err := ParseCatSolution(cs.Node()); err != nil || got.LineageProof != nil {
		t.Fatal("expected nil lineage proof", err)
	}

	bad := []clvm.Node{
		clvm.Nil,
		clvm.List(clvm.Nil, clvm.Nil),
		clvm.List(clvm.Nil, clvm.Nil, clvm.Uint64(1), clvm.Nil, clvm.Nil, clvm.Nil, clvm.Nil),
		clvm.List(clvm.Nil, clvm.Uint64(7), clvm.Hash(types.Hash256{}), clvm.Nil, clvm.Nil, clvm.Nil, clvm.Nil),
	}
	for i, n := range bad {
		if _, err := ParseCatSolution(n); !errors.Is(err, ErrCatSolution) {
			t.Errorf("case %d: expected ErrCatSolution, got %v", i, err)
		}
	}
}

func TestLaunchHints(t *testing.T) {
	for _, v := range []types.StreamVersion{types.StreamV1, types.StreamV2} {
		p := randomParams(v)
		start := frand.Uint64n(p.EndTime)
		memos := LaunchHints(p, start)
		key := RecipientIndexKey(p.Recipient)
		if !bytes.Equal(memos[0], key[:]) {
			t.Fatalf("%v: first memo is not the recipient index key", v)
		}

		var found bool
		for _, h := range ParseLaunchHints(memos) {
			if h.Recipient == p.Recipient && h.StartTime == start && h.EndTime == p.EndTime &&
				(h.Clawback == nil) == (p.Clawback == nil) && (h.Clawback == nil || *h.Clawback == *p.Clawback) {
				found = true
			}
		}
		if !found {
			t.Fatalf("%v: launch hints did not parse back", v)
		}
	}

	if hints := ParseLaunchHints([][]byte{{1}, {2}, {3}}); len(hints) != 0 {
		t.Fatal("expected no hints from short memo list")
	}
	if hints := ParseLaunchHints([][]byte{{1}, make([]byte, 32), {0x80}, {1}}); len(hints) != 0 {
		t.Fatal("expected negative start time to be rejected")
	}
}

func TestCreateCoins(t *testing.T) {
	ccs := []CreateCoin{
		{PuzzleHash: frand.Entropy256(), Amount: 1000, Memos: [][]byte{{1, 2, 3}, {}}},
		{PuzzleHash: frand.Entropy256(), Amount: 0},
	}
	conds := clvm.List(
		ccs[0].Node(),
		clvm.List(clvm.Uint64(73), clvm.Uint64(1000)), // ASSERT_MY_AMOUNT
		ccs[1].Node(),
	)
	got, err := ParseCreateCoins(conds)
	if err != nil {
		t.Fatal(err)
	} else if len(got) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(got))
	} else if got[0].PuzzleHash != ccs[0].PuzzleHash || got[0].Amount != 1000 || len(got[0].Memos) != 2 || !bytes.Equal(got[0].Memos[0], []byte{1, 2, 3}) {
		t.Fatalf("condition mismatch: %+v", got[0])
	} else if got[1].Memos != nil {
		t.Fatal("expected no memos")
	}

	if _, err := ParseCreateCoins(clvm.Pair(clvm.Nil, clvm.Uint64(1))); err == nil {
		t.Fatal("expected error for improper condition list")
	} else if _, err := ParseCreateCoins(clvm.List(clvm.List(clvm.Uint64(OpCreateCoin), clvm.Uint64(1)))); err == nil {
		t.Fatal("expected error for short CREATE_COIN")
	}
}

func TestRegistry(t *testing.T) {
	r := testRegistry(t)
	if ts := r.Templates(); len(ts) != 2 || ts[0].Version != types.StreamV1 || ts[1].Version != types.StreamV2 {
		t.Fatalf("unexpected templates %v", ts)
	}
	if tmpl, ok := r.ByHash(testClawback.Hash); !ok || tmpl.Version != types.StreamV2 {
		t.Fatal("ByHash failed")
	}
	if _, err := NewRegistry(StreamV1Template, StreamV1Template); err == nil {
		t.Fatal("expected duplicate version error")
	} else if _, err := NewRegistry(testToken); err == nil {
		t.Fatal("expected error for non-stream template")
	}
	if _, err := (Template{Name: "x", Hash: StreamV1Hash}).WithReveal(clvm.Nil); err == nil {
		t.Fatal("expected reveal hash mismatch")
	}
}
