package session

import (
	"errors"

	"github.com/dmitrijs2005/visionlock/internal/blink"
	"github.com/dmitrijs2005/visionlock/internal/morse"
)

// EntryStep is what one eye event produced during PIN entry.
type EntryStep struct {
	Symbol  morse.Symbol
	Emitted bool
	Pin     string
	Done    bool
}

// PinAttempt pairs a blink decoder with a Morse assembler for PIN entry.
// A finished PIN starts a fresh attempt.
type PinAttempt struct {
	thresholds blink.Thresholds
	decoder    *blink.Decoder
	assembler  *morse.Assembler
}

func NewPinAttempt(t blink.Thresholds, minLength int) *PinAttempt {
	return &PinAttempt{
		thresholds: t,
		decoder:    blink.NewDecoder(t),
		assembler:  morse.NewAssembler(minLength),
	}
}

// Observe feeds one event. Errors are per-frame: the caller reports them
// and keeps feeding.
//
// ErrBlinkTooLong drops the digits entered so far but keeps the decoder,
// which swallows the rest of the over-long run. A step with Done set may
// carry ErrUnrecognizedPattern when the last character was dropped.
func (p *PinAttempt) Observe(ev blink.Event) (EntryStep, error) {
	sym, ok, err := p.decoder.Feed(ev)
	if err != nil {
		if errors.Is(err, blink.ErrBlinkTooLong) {
			p.assembler.Reset()
		}
		return EntryStep{}, err
	}
	if !ok {
		return EntryStep{}, nil
	}

	step := EntryStep{Symbol: sym, Emitted: true}
	pin, done, err := p.assembler.Push(sym)
	if sym == morse.TerminatorGap {
		p.decoder = blink.NewDecoder(p.thresholds)
	}
	step.Pin, step.Done = pin, done
	return step, err
}

// Digits is the number of digits entered in the current attempt.
func (p *PinAttempt) Digits() int { return p.assembler.Len() }

func (p *PinAttempt) Reset() {
	p.decoder = blink.NewDecoder(p.thresholds)
	p.assembler.Reset()
}
