// Package budget tracks the per-request time, body-size, and header-size
// allowances the HTTP reader enforces while pulling bytes off a
// connection. It mirrors the teacher library's pkg/timing.Timer, but
// where that type accumulates elapsed durations for reporting, Budget
// decrements fixed allowances and fails closed the moment one is
// exhausted.
package budget

import (
	"time"

	"github.com/caldervale/go-rawhttpd/pkg/httperr"
)

// Defaults per spec.md §4.4.
const (
	DefaultRequestTimeout = 100 * time.Second
	DefaultMaxBodySize    = 30 * 1024 * 1024 // 30 MB
	DefaultMaxHeaderSize  = 32 * 1024        // 32 KB
)

// Limits configures the three allowances reset before each request.
type Limits struct {
	Timeout        time.Duration
	MaxBodySize    int64
	MaxHeaderBytes int64
}

// DefaultLimits returns the spec.md §4.4 defaults.
func DefaultLimits() Limits {
	return Limits{
		Timeout:        DefaultRequestTimeout,
		MaxBodySize:    DefaultMaxBodySize,
		MaxHeaderBytes: DefaultMaxHeaderSize,
	}
}

// Budget is the live, per-request counters derived from Limits. Every I/O
// call the HTTP reader performs must go through ChargeTime (usually via
// TimedOp), ChargeHeaderBytes or ChargeBody so the remaining allowances
// stay accurate.
type Budget struct {
	limits Limits

	remainingTime   time.Duration
	remainingBody   int64
	remainingHeader int64
}

// New resets a Budget to limits, as done before each request per
// spec.md §4.4 ("budgets, reset before each request").
func New(limits Limits) *Budget {
	return &Budget{
		limits:          limits,
		remainingTime:   limits.Timeout,
		remainingBody:   limits.MaxBodySize,
		remainingHeader: limits.MaxHeaderBytes,
	}
}

// Reset restores all three allowances to the configured limits, used at
// the start of each request and again once its body has been read, so the
// Budget can be reused on a keep-alive connection.
func (b *Budget) Reset() {
	b.remainingTime = b.limits.Timeout
	b.remainingBody = b.limits.MaxBodySize
	b.remainingHeader = b.limits.MaxHeaderBytes
}

// ChargeTime deducts elapsed from the wall-clock allowance and fails with
// a RequestTimeout HttpError if it goes negative.
func (b *Budget) ChargeTime(op string, elapsed time.Duration) error {
	b.remainingTime -= elapsed
	if b.remainingTime < 0 {
		return httperr.NewRequestTimeout(op, "request exceeded its time budget")
	}
	return nil
}

// ChargeHeaderBytes deducts n from the header-size allowance.
func (b *Budget) ChargeHeaderBytes(op string, n int64) error {
	b.remainingHeader -= n
	if b.remainingHeader < 0 {
		return httperr.NewBadRequest(op, "header section exceeded the configured size limit")
	}
	return nil
}

// ChargeBody deducts n from the body-size allowance. The canonical rule
// (spec.md REDESIGN FLAG 2) rejects the charge when it would drive the
// remaining allowance below zero, not merely when it has already reached
// zero.
func (b *Budget) ChargeBody(op string, n int64) error {
	if n > b.remainingBody {
		return httperr.NewPayloadTooLarge(op, "body exceeded the configured size limit")
	}
	b.remainingBody -= n
	return nil
}

// RemainingBody reports the bytes still allowed for the body.
func (b *Budget) RemainingBody() int64 { return b.remainingBody }

// RemainingHeaderBytes reports the bytes still allowed for the header
// section, used by the HTTP reader to bound the next line read.
func (b *Budget) RemainingHeaderBytes() int64 { return b.remainingHeader }

// TimedOp runs fn, timing it and charging the elapsed duration against
// the time budget. The HTTP reader's header-line, chunk-size and body
// reads pass through it, mirroring the teacher's timer.Start*/End* pairs
// collapsed into one helper since the server side only needs a single
// "time spent reading" phase rather than DNS/TCP/TLS/TTFB breakdown.
func (b *Budget) TimedOp(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	if chargeErr := b.ChargeTime(op, time.Since(start)); chargeErr != nil {
		if err != nil {
			return err
		}
		return chargeErr
	}
	return err
}
