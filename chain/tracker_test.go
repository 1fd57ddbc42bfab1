package chain

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.streamcat.tech/core/internal/streamtest"
	"go.streamcat.tech/core/ledger"
	"go.streamcat.tech/core/stream"
	"go.streamcat.tech/core/types"
	"lukechampine.com/frand"
)

// eventSubscriber is not safe for concurrent use; the tracker must not call it
// from more than one goroutine.
type eventSubscriber struct {
	ids    []types.Hash256
	events []Event
}

func (es *eventSubscriber) ProcessStreamEvent(id types.Hash256, e Event) error {
	es.ids = append(es.ids, id)
	es.events = append(es.events, e)
	return nil
}

func mustClaim(t *testing.T, sim *streamtest.Sim, vs types.VestingStream, at uint64, clawback bool) stream.Outcome {
	t.Helper()
	sim.MineBlock(10)
	out, err := sim.Claim(vs, at, clawback)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestTracker(t *testing.T) {
	ctx := context.Background()
	sim := streamtest.NewSim(1000)
	tracker := NewTracker(sim, sim.Engine)
	var es eventSubscriber
	tracker.AddSubscriber(&es)

	recipient := types.Hash256(frand.Entropy256())
	clawback := types.Hash256(frand.Entropy256())
	assetID := types.Hash256(frand.Entropy256())

	// a clawback stream, claimed twice and then clawed back
	v2 := types.StreamParams{Version: types.StreamV2, Recipient: recipient, Clawback: &clawback, EndTime: 2000}
	launcherID, launched, err := sim.Launch(assetID, v2, 1000, 1000)
	if err != nil {
		t.Fatal(err)
	}
	first := mustClaim(t, sim, launched, 1500, false)
	second := mustClaim(t, sim, first.Stream, 1800, false)
	if first.Paid != 500 || second.Paid != 300 {
		t.Fatal("unexpected claim amounts", first.Paid, second.Paid)
	}

	// resolving works from either the launcher or the stream coin
	for _, id := range []types.Hash256{launcherID, launched.Coin.ID()} {
		ev, err := tracker.Resolve(ctx, id)
		if err != nil {
			t.Fatal(err)
		} else if ev.Kind != stream.Launch || !reflect.DeepEqual(ev.Stream, launched) || ev.Height != 1 {
			t.Fatal("unexpected launch event", ev)
		}
	}
	ev, err := tracker.Resolve(ctx, second.Stream.Coin.ID())
	if err != nil {
		t.Fatal(err)
	} else if ev.Kind != stream.Advance || !reflect.DeepEqual(ev.Stream, second.Stream) || ev.Paid != 300 {
		t.Fatal("unexpected advance event", ev)
	}

	history, err := tracker.History(ctx, second.Stream.Coin.ID())
	if err != nil {
		t.Fatal(err)
	} else if len(history) != 3 {
		t.Fatal("expected 3 events, got", len(history))
	} else if !reflect.DeepEqual(history[0].Stream, launched) || !reflect.DeepEqual(history[1].Stream, first.Stream) || !reflect.DeepEqual(history[2].Stream, second.Stream) {
		t.Fatal("history does not match claims")
	}

	status, err := tracker.Sync(ctx, launcherID)
	if err != nil {
		t.Fatal(err)
	} else if status.ID != launcherID || !status.Active() || status.Paid != 800 {
		t.Fatal("unexpected status", status)
	} else if !reflect.DeepEqual(status.Stream, second.Stream) {
		t.Fatal("sync did not reach the latest stream coin")
	} else if c := status.Claimable(1900); c != 100 {
		t.Fatal("expected 100 claimable, got", c)
	} else if len(es.events) != 3 {
		t.Fatal("subscriber should see every event, got", len(es.events))
	}

	clawed := mustClaim(t, sim, second.Stream, 1900, true)
	if clawed.Paid != 100 {
		t.Fatal("unexpected clawback amount", clawed.Paid)
	}
	// syncing from the middle of the lineage reaches the same state
	status, err = tracker.Sync(ctx, first.Stream.Coin.ID())
	if err != nil {
		t.Fatal(err)
	} else if status.ID != launcherID || !status.ClawedBack || status.Active() {
		t.Fatal("stream should be clawed back", status)
	} else if status.Paid != 900 || len(status.Events) != 4 {
		t.Fatal("unexpected status after clawback", status.Paid, len(status.Events))
	} else if status.Claimable(2000) != 0 {
		t.Fatal("clawed back stream should have nothing claimable")
	} else if last := status.Events[3]; last.Kind != stream.Clawback || !reflect.DeepEqual(last.Stream, second.Stream) {
		t.Fatal("unexpected clawback event", last)
	}

	// a second stream to the same recipient, claimed to exhaustion
	v1 := types.StreamParams{Version: types.StreamV1, Recipient: recipient, EndTime: 1600}
	sim.MineBlock(10)
	launcherID1, launched1, err := sim.Launch(assetID, v1, 600, 1000)
	if err != nil {
		t.Fatal(err)
	}
	out := mustClaim(t, sim, launched1, 1300, false)
	out = mustClaim(t, sim, out.Stream, 2000, false)
	if !out.Stream.Exhausted() {
		t.Fatal("stream should be exhausted")
	}

	es = eventSubscriber{}
	statuses, err := tracker.List(ctx, recipient)
	if err != nil {
		t.Fatal(err)
	} else if len(statuses) != 2 {
		t.Fatal("expected 2 streams, got", len(statuses))
	} else if statuses[0].ID != launcherID || statuses[1].ID != launcherID1 {
		t.Fatal("streams not ordered by launch height")
	} else if s := statuses[1]; s.Paid != 600 || s.Active() || s.ClawedBack {
		t.Fatal("unexpected status of exhausted stream", s)
	}
	// events arrive one stream at a time, in the order List returns them
	if len(es.events) != len(statuses[0].Events)+len(statuses[1].Events) {
		t.Fatal("subscriber missed events, got", len(es.events))
	}
	for i, id := range es.ids {
		want := statuses[1].ID
		if i < len(statuses[0].Events) {
			want = statuses[0].ID
		}
		if id != want {
			t.Fatalf("event %d belongs to %v, expected %v", i, id, want)
		}
	}

	statuses, err = tracker.List(ctx, types.Hash256{1})
	if err != nil {
		t.Fatal(err)
	} else if len(statuses) != 0 {
		t.Fatal("expected no streams for unrelated recipient")
	}
}

func TestTrackerNotStream(t *testing.T) {
	ctx := context.Background()
	sim := streamtest.NewSim(1000)
	tracker := NewTracker(sim, sim.Engine)

	coin := types.Coin{ParentID: frand.Entropy256(), PuzzleHash: frand.Entropy256(), Amount: 1}
	sim.AddCoin(coin, types.Hash256{})
	if _, err := tracker.Resolve(ctx, coin.ID()); !errors.Is(err, ErrNotStream) {
		t.Fatal("expected ErrNotStream, got", err)
	}
	if _, err := tracker.Sync(ctx, coin.ID()); !errors.Is(err, ErrNotStream) {
		t.Fatal("expected ErrNotStream, got", err)
	}
	if _, err := tracker.Resolve(ctx, types.Hash256{}); err == nil {
		t.Fatal("expected error for unknown coin")
	}
}

func TestTrackerMissingSuccessor(t *testing.T) {
	ctx := context.Background()
	sim := streamtest.NewSim(1000)
	tracker := NewTracker(sim, sim.Engine)

	p := types.StreamParams{Version: types.StreamV1, Recipient: frand.Entropy256(), EndTime: 2000}
	launcherID, launched, err := sim.Launch(frand.Entropy256(), p, 1000, 1000)
	if err != nil {
		t.Fatal(err)
	}
	sim.MineBlock(10)
	cs, err := sim.Engine.BuildCoinSpend(launched, 1500, false)
	if err != nil {
		t.Fatal(err)
	}
	// the claim is recorded, but the ledger never confirms its successor
	if err := sim.Spend(cs); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Sync(ctx, launcherID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatal("expected ErrNotFound, got", err)
	}
}
