// Package stream implements the vesting schedule, spend construction, and
// history replay of streamed CATs.
package stream

import (
	"math/bits"

	"go.streamcat.tech/core/types"
)

// ClampPaymentTime returns at, or the stream's end time if at is later. The
// streaming puzzle pays out in proportion to elapsed time, so a payment time
// past the end would pay more than the coin holds.
func ClampPaymentTime(s types.VestingStream, at uint64) uint64 {
	if at > s.Params.EndTime {
		return s.Params.EndTime
	}
	return at
}

// AmountToBePaid returns the amount vested between the stream's last payment
// and at:
//
//	floor(amount * (at - last_payment_time) / (end_time - last_payment_time))
//
// Times after the end of the stream are treated as the end time, at which
// point the full remaining amount is due. It is an error for at not to be
// strictly after the last payment time.
func AmountToBePaid(s types.VestingStream, at uint64) (uint64, error) {
	lpt, end := s.LastPaymentTime, s.Params.EndTime
	if lpt >= end {
		return 0, invariant("last payment time (%d) is not before end time (%d)", lpt, end)
	}
	at = ClampPaymentTime(s, at)
	if at <= lpt {
		return 0, invariant("payment time (%d) is not after last payment time (%d)", at, lpt)
	}
	return mulDiv(s.Coin.Amount, at-lpt, end-lpt), nil
}

// mulDiv returns floor(a*b/c). It requires b <= c, which guarantees that the
// quotient fits in 64 bits.
func mulDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, c)
	return q
}
