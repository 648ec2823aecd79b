// Package blink decodes a stream of timestamped eye states into Morse
// symbols. The decoder is push-based: the caller feeds one event per
// classified frame and gets back at most one symbol.
package blink

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/dmitrijs2005/visionlock/internal/morse"
)

var (
	ErrBlinkTooLong    = errors.New("blink too long")
	ErrOutOfOrder      = errors.New("event out of order")
	ErrDecoderFinished = errors.New("decoder finished")
)

// Event is one classified frame.
type Event struct {
	At     time.Time
	Closed bool
}

// Thresholds bound the run durations, all inclusive.
type Thresholds struct {
	DotMax       time.Duration // closed run up to this is a dot
	DashMax      time.Duration // closed run up to this is a dash, longer is an error
	SymbolGapMax time.Duration // open run up to this separates dots and dashes
	CharGapMax   time.Duration // open run up to this ends a digit, longer ends the PIN
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DotMax:       250 * time.Millisecond,
		DashMax:      800 * time.Millisecond,
		SymbolGapMax: 500 * time.Millisecond,
		CharGapMax:   1500 * time.Millisecond,
	}
}

func (t Thresholds) Validate() error {
	if t.DotMax <= 0 || t.DashMax <= t.DotMax {
		return fmt.Errorf("blink thresholds: need 0 < dot max < dash max, got %s, %s", t.DotMax, t.DashMax)
	}
	if t.SymbolGapMax <= 0 || t.CharGapMax <= t.SymbolGapMax {
		return fmt.Errorf("blink thresholds: need 0 < symbol gap max < char gap max, got %s, %s", t.SymbolGapMax, t.CharGapMax)
	}
	return nil
}

// Decoder is not safe for concurrent use. A finished decoder stays
// finished; start a new one for the next entry.
type Decoder struct {
	t Thresholds

	started  bool
	armed    bool // a valid closed run has completed, open runs now count
	overrun  bool // current closed run already reported as too long
	finished bool

	closed bool
	since  time.Time
	last   time.Time
}

func NewDecoder(t Thresholds) *Decoder {
	return &Decoder{t: t}
}

// Finished reports whether a TerminatorGap has been emitted.
func (d *Decoder) Finished() bool { return d.finished }

// Feed consumes one event. ok is true when sym holds an emitted symbol.
// An error leaves no symbol; ErrBlinkTooLong is reported once per run and
// decoding continues after it with the decoder disarmed, as at the start
// of an entry.
func (d *Decoder) Feed(ev Event) (sym morse.Symbol, ok bool, err error) {
	if d.finished {
		return 0, false, ErrDecoderFinished
	}
	if d.started && !ev.At.After(d.last) {
		return 0, false, fmt.Errorf("%w: %s not after %s", ErrOutOfOrder,
			ev.At.Format(time.RFC3339Nano), d.last.Format(time.RFC3339Nano))
	}
	if !d.started {
		d.started = true
		d.closed, d.since, d.last = ev.Closed, ev.At, ev.At
		return 0, false, nil
	}
	d.last = ev.At
	elapsed := ev.At.Sub(d.since)

	if ev.Closed == d.closed {
		return d.ongoing(elapsed)
	}

	wasClosed := d.closed
	d.closed, d.since = ev.Closed, ev.At
	if wasClosed {
		return d.endClosed(elapsed)
	}
	return d.endOpen(elapsed)
}

// ongoing handles an event that extends the current run.
func (d *Decoder) ongoing(elapsed time.Duration) (morse.Symbol, bool, error) {
	switch {
	case d.closed && !d.overrun && elapsed > d.t.DashMax:
		d.overrun, d.armed = true, false
		return 0, false, fmt.Errorf("%w: closed for %s", ErrBlinkTooLong, elapsed)
	case !d.closed && d.armed && elapsed > d.t.CharGapMax:
		d.finished = true
		return morse.TerminatorGap, true, nil
	}
	return 0, false, nil
}

func (d *Decoder) endClosed(elapsed time.Duration) (morse.Symbol, bool, error) {
	if d.overrun {
		d.overrun = false
		return 0, false, nil
	}
	switch {
	case elapsed <= d.t.DotMax:
		d.armed = true
		return morse.Dot, true, nil
	case elapsed <= d.t.DashMax:
		d.armed = true
		return morse.Dash, true, nil
	default:
		d.armed = false
		return 0, false, fmt.Errorf("%w: closed for %s", ErrBlinkTooLong, elapsed)
	}
}

func (d *Decoder) endOpen(elapsed time.Duration) (morse.Symbol, bool, error) {
	if !d.armed {
		return 0, false, nil
	}
	switch {
	case elapsed <= d.t.SymbolGapMax:
		return 0, false, nil
	case elapsed <= d.t.CharGapMax:
		return morse.CharacterGap, true, nil
	default:
		d.finished = true
		return morse.TerminatorGap, true, nil
	}
}

// Symbols decodes events lazily, yielding each symbol or error in order.
// The sequence ends after a TerminatorGap or when events run out.
func (d *Decoder) Symbols(events iter.Seq[Event]) iter.Seq2[morse.Symbol, error] {
	return func(yield func(morse.Symbol, error) bool) {
		for ev := range events {
			sym, ok, err := d.Feed(ev)
			switch {
			case err != nil:
				if !yield(0, err) {
					return
				}
				if errors.Is(err, ErrDecoderFinished) {
					return
				}
			case ok:
				if !yield(sym, nil) || sym == morse.TerminatorGap {
					return
				}
			}
		}
	}
}

// Runs builds events from alternating run durations, starting with a closed
// run at start. A final event closes the last run. It is meant for
// calibration tools and tests.
func Runs(start time.Time, durations ...time.Duration) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		at := start
		closed := true
		for _, dur := range durations {
			if !yield(Event{At: at, Closed: closed}) {
				return
			}
			at = at.Add(dur)
			closed = !closed
		}
		if len(durations) > 0 {
			yield(Event{At: at, Closed: closed})
		}
	}
}
