// Package chain follows streams through the ledger, replaying each spend in
// their lineage.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.streamcat.tech/core/ledger"
	"go.streamcat.tech/core/puzzles"
	"go.streamcat.tech/core/stream"
	"go.streamcat.tech/core/types"
	"golang.org/x/sync/errgroup"
)

// ErrNotStream is returned when a coin neither belongs to a stream nor
// launched one.
var ErrNotStream = errors.New("not a stream")

// maxConcurrentSyncs bounds the number of streams List syncs at once.
const maxConcurrentSyncs = 4

// An Event is one step in the lineage of a stream.
type Event struct {
	Kind stream.OutcomeKind `json:"kind"`
	// Height is the height at which the spend was confirmed.
	Height uint32 `json:"height"`
	// Stream is the state created by a Launch or Advance, and the state
	// destroyed by a Clawback.
	Stream types.VestingStream `json:"stream"`
	Paid   uint64              `json:"paid"`
}

// A Status summarizes the history of a stream.
type Status struct {
	// ID is the id of the coin whose spend launched the stream.
	ID types.Hash256 `json:"id"`
	// Stream is the latest state of the stream. If the stream was clawed
	// back, it is the state that was clawed back.
	Stream     types.VestingStream `json:"stream"`
	ClawedBack bool                `json:"clawed_back"`
	// Paid is the total paid to the recipient.
	Paid   uint64  `json:"paid"`
	Events []Event `json:"events"`
}

// Active reports whether the stream can still be claimed from.
func (s Status) Active() bool {
	return !s.ClawedBack && s.Stream.LastPaymentTime < s.Stream.Params.EndTime
}

// Claimable returns the amount a claim at the given time would pay.
func (s Status) Claimable(now uint64) uint64 {
	if !s.Active() || stream.ClampPaymentTime(s.Stream, now) <= s.Stream.LastPaymentTime {
		return 0
	}
	due, err := stream.AmountToBePaid(s.Stream, now)
	if err != nil {
		panic(err) // should never happen
	}
	return due
}

// A Subscriber is notified of each event a Tracker discovers while syncing.
// Notifications are delivered from the calling goroutine, one stream at a
// time.
type Subscriber interface {
	ProcessStreamEvent(id types.Hash256, e Event) error
}

// A Tracker reconstructs stream state from the ledger.
type Tracker struct {
	ledger      ledger.Client
	engine      *stream.Engine
	subscribers []Subscriber
}

// NewTracker returns a Tracker that queries c and replays spends with e.
func NewTracker(c ledger.Client, e *stream.Engine) *Tracker {
	return &Tracker{
		ledger: c,
		engine: e,
	}
}

// AddSubscriber adds a subscriber to the tracker.
func (t *Tracker) AddSubscriber(s Subscriber) {
	t.subscribers = append(t.subscribers, s)
}

func (t *Tracker) spend(ctx context.Context, rec ledger.CoinRecord) (types.CoinSpend, error) {
	cs, err := t.ledger.PuzzleAndSolution(ctx, rec.Coin.ID(), rec.SpentHeight)
	if err != nil {
		return types.CoinSpend{}, fmt.Errorf("failed to get spend of %v: %w", rec.Coin.ID(), err)
	}
	return cs, nil
}

// creation returns the event that created coin, if it is a stream coin.
func (t *Tracker) creation(ctx context.Context, coin types.Coin) (Event, bool, error) {
	parent, err := t.ledger.CoinRecord(ctx, coin.ParentID)
	if errors.Is(err, ledger.ErrNotFound) {
		return Event{}, false, nil
	} else if err != nil {
		return Event{}, false, fmt.Errorf("failed to get parent of %v: %w", coin.ID(), err)
	} else if !parent.Spent {
		return Event{}, false, nil
	}
	cs, err := t.spend(ctx, parent)
	if err != nil {
		return Event{}, false, err
	}
	out, err := t.engine.ReplayStep(cs.Coin, cs.PuzzleReveal, cs.Solution)
	if err != nil {
		return Event{}, false, fmt.Errorf("failed to replay spend of %v: %w", parent.Coin.ID(), err)
	}
	switch out.Kind {
	case stream.Advance:
		if out.Stream.Coin != coin {
			return Event{}, false, nil
		}
		return Event{Kind: stream.Advance, Height: parent.SpentHeight, Stream: out.Stream, Paid: out.Paid}, true, nil
	case stream.Launch:
		launches, err := t.engine.DetectLaunches(cs.Coin, cs.PuzzleReveal, cs.Solution)
		if err != nil {
			return Event{}, false, fmt.Errorf("failed to detect launches in spend of %v: %w", parent.Coin.ID(), err)
		}
		for _, l := range launches {
			if l.Coin == coin {
				return Event{Kind: stream.Launch, Height: parent.SpentHeight, Stream: l}, true, nil
			}
		}
	}
	return Event{}, false, nil
}

// Resolve returns the event that created the stream coin with the given id.
// If id is instead the id of a coin whose spend launched a stream, the
// launch is returned.
func (t *Tracker) Resolve(ctx context.Context, id types.Hash256) (Event, error) {
	rec, err := t.ledger.CoinRecord(ctx, id)
	if err != nil {
		return Event{}, fmt.Errorf("failed to get coin %v: %w", id, err)
	}
	if ev, ok, err := t.creation(ctx, rec.Coin); err != nil || ok {
		return ev, err
	} else if !rec.Spent {
		return Event{}, fmt.Errorf("coin %v: %w", id, ErrNotStream)
	}

	cs, err := t.spend(ctx, rec)
	if err != nil {
		return Event{}, err
	}
	launches, err := t.engine.DetectLaunches(cs.Coin, cs.PuzzleReveal, cs.Solution)
	if err != nil {
		return Event{}, fmt.Errorf("failed to detect launches in spend of %v: %w", id, err)
	} else if len(launches) == 0 {
		return Event{}, fmt.Errorf("coin %v: %w", id, ErrNotStream)
	}
	return Event{Kind: stream.Launch, Height: rec.SpentHeight, Stream: launches[0]}, nil
}

// History returns the events leading to the stream coin with the given id,
// oldest first, starting with the stream's launch.
func (t *Tracker) History(ctx context.Context, id types.Hash256) ([]Event, error) {
	var events []Event
	for {
		ev, err := t.Resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
		if ev.Kind == stream.Launch {
			break
		}
		id = ev.Stream.Coin.ParentID
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// Sync returns the status of the stream containing the coin with the given
// id, which may be any coin in the stream's lineage or the coin that launched
// it. Subscribers are notified of every event in the stream's history.
func (t *Tracker) Sync(ctx context.Context, id types.Hash256) (Status, error) {
	s, err := t.sync(ctx, id)
	if err != nil {
		return Status{}, err
	} else if err := t.notify(s); err != nil {
		return Status{}, err
	}
	return s, nil
}

func (t *Tracker) sync(ctx context.Context, id types.Hash256) (Status, error) {
	events, err := t.History(ctx, id)
	if err != nil {
		return Status{}, err
	}
	s := Status{ID: events[0].Stream.Coin.ParentID}
	for _, ev := range events {
		s.apply(ev)
	}
	log.Debugf("Stream %v: resolved %d events back to launch", s.ID, len(events))
	if !s.Active() {
		return s, nil
	}

	rec, err := t.ledger.CoinRecord(ctx, s.Stream.Coin.ID())
	if err != nil {
		return Status{}, fmt.Errorf("failed to get stream coin %v: %w", s.Stream.Coin.ID(), err)
	}
	for rec.Spent {
		cs, err := t.spend(ctx, rec)
		if err != nil {
			return Status{}, err
		}
		out, err := t.engine.ReplayStep(cs.Coin, cs.PuzzleReveal, cs.Solution)
		if err != nil {
			return Status{}, fmt.Errorf("failed to replay spend of %v: %w", rec.Coin.ID(), err)
		}
		switch out.Kind {
		case stream.Advance:
			s.apply(Event{Kind: stream.Advance, Height: rec.SpentHeight, Stream: out.Stream, Paid: out.Paid})
		case stream.Clawback:
			s.apply(Event{Kind: stream.Clawback, Height: rec.SpentHeight, Stream: out.Spent, Paid: out.Paid})
		default:
			return Status{}, fmt.Errorf("%w: stream coin %v spent without a claim (%v)", stream.ErrProtocolViolation, rec.Coin.ID(), out.Kind)
		}
		if !s.Active() {
			break
		}
		if rec, err = t.successor(ctx, rec.Coin.ID(), s.Stream.Coin); err != nil {
			return Status{}, err
		}
	}
	return s, nil
}

// successor returns the record of the coin created by the spend of parentID
// that matches the replayed successor c.
func (t *Tracker) successor(ctx context.Context, parentID types.Hash256, c types.Coin) (ledger.CoinRecord, error) {
	children, err := t.ledger.CoinRecordsByParentIDs(ctx, []types.Hash256{parentID}, true)
	if err != nil {
		return ledger.CoinRecord{}, fmt.Errorf("failed to get children of %v: %w", parentID, err)
	}
	for _, child := range children {
		if child.Coin == c {
			return child, nil
		}
	}
	return ledger.CoinRecord{}, fmt.Errorf("successor %v of %v: %w", c.ID(), parentID, ledger.ErrNotFound)
}

func (t *Tracker) notify(s Status) error {
	for _, sub := range t.subscribers {
		for _, ev := range s.Events {
			if err := sub.ProcessStreamEvent(s.ID, ev); err != nil {
				return fmt.Errorf("subscriber failed to process event: %w", err)
			}
		}
	}
	return nil
}

func (s *Status) apply(ev Event) {
	s.Events = append(s.Events, ev)
	s.Stream = ev.Stream
	s.Paid += ev.Paid
	s.ClawedBack = ev.Kind == stream.Clawback
}

// List returns the status of every stream launched to recipient, ordered by
// launch height. Streams are synced concurrently; subscribers are notified
// once all of them are, in the returned order.
func (t *Tracker) List(ctx context.Context, recipient types.Hash256) ([]Status, error) {
	recs, err := t.ledger.CoinRecordsByHint(ctx, puzzles.RecipientIndexKey(recipient), true)
	if err != nil {
		return nil, fmt.Errorf("failed to get hinted coins: %w", err)
	}

	statuses := make([]Status, len(recs))
	found := make([]bool, len(recs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSyncs)
	for i, rec := range recs {
		i, rec := i, rec
		g.Go(func() error {
			s, err := t.sync(gCtx, rec.Coin.ID())
			if errors.Is(err, ErrNotStream) {
				log.Debugf("Coin %v is hinted to %v but is not a stream", rec.Coin.ID(), recipient)
				return nil
			} else if err != nil {
				return err
			}
			statuses[i], found[i] = s, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[types.Hash256]bool)
	var out []Status
	for i, s := range statuses {
		if found[i] && s.Stream.Params.Recipient == recipient && !seen[s.ID] {
			seen[s.ID] = true
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Events[0].Height < out[j].Events[0].Height })
	for _, s := range out {
		if err := t.notify(s); err != nil {
			return nil, err
		}
	}
	return out, nil
}
