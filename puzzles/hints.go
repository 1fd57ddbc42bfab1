package puzzles

import (
	"go.streamcat.tech/core/types"
)

// RecipientIndexKey returns the hint under which launches to recipient are
// indexed. Scanning the ledger for coins hinted with this key finds every
// stream paying recipient.
func RecipientIndexKey(recipient types.Hash256) types.Hash256 {
	h := types.GetHasher()
	defer types.PutHasher(h)
	h.Write([]byte("s"))
	h.WriteHash(recipient)
	return h.Sum()
}

// LaunchHints returns the memos a launching spend attaches to the stream
// coin it creates:
//
//	[index_key recipient clawback start_time end_time]  (clawback streams)
//	[index_key recipient start_time end_time]
//
// The hints are untrusted. A reader must recompute the stream's puzzle hash
// from them before accepting a launch.
func LaunchHints(p types.StreamParams, startTime uint64) [][]byte {
	memos := [][]byte{
		hashBytes(RecipientIndexKey(p.Recipient)),
		hashBytes(p.Recipient),
	}
	if p.Clawback != nil {
		memos = append(memos, hashBytes(*p.Clawback))
	}
	return append(memos, types.EncodeUint64(startTime), types.EncodeUint64(p.EndTime))
}

// A LaunchHint is one positional decoding of a launch memo list.
type LaunchHint struct {
	Recipient types.Hash256
	Clawback  *types.Hash256
	StartTime uint64
	EndTime   uint64
}

// ParseLaunchHints decodes memos under every supported layout. The result may
// contain zero, one, or two candidates; none of them is trusted.
func ParseLaunchHints(memos [][]byte) []LaunchHint {
	var hints []LaunchHint
	if len(memos) >= 5 {
		if h, ok := parseHintFields(memos[1], memos[2], memos[3], memos[4]); ok {
			hints = append(hints, h)
		}
	}
	if len(memos) >= 4 {
		if h, ok := parseHintFields(memos[1], nil, memos[2], memos[3]); ok {
			hints = append(hints, h)
		}
	}
	return hints
}

func parseHintFields(recipient, clawback, start, end []byte) (h LaunchHint, ok bool) {
	if len(recipient) != len(h.Recipient) {
		return h, false
	}
	copy(h.Recipient[:], recipient)
	if clawback != nil {
		var c types.Hash256
		if len(clawback) != len(c) {
			return h, false
		}
		copy(c[:], clawback)
		h.Clawback = &c
	}
	var err error
	if h.StartTime, err = types.DecodeUint64(start); err != nil {
		return h, false
	} else if h.EndTime, err = types.DecodeUint64(end); err != nil {
		return h, false
	}
	return h, true
}

func hashBytes(h types.Hash256) []byte {
	return append([]byte(nil), h[:]...)
}
