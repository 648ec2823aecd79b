package morse

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnrecognizedPattern = errors.New("unrecognized morse pattern")
	ErrEmptyPin            = errors.New("pin too short")
)

const DefaultMinLength = 1

// Assembler accumulates symbols into digits. It is not safe for concurrent
// use; each PIN entry owns one.
type Assembler struct {
	minLength int
	pattern   strings.Builder
	pin       []byte
}

func NewAssembler(minLength int) *Assembler {
	if minLength < 1 {
		minLength = DefaultMinLength
	}
	return &Assembler{minLength: minLength}
}

// Push consumes one symbol. done is true exactly when a TerminatorGap
// completed a PIN of at least the minimum length; pin is only set then.
//
// An unrecognized pattern is dropped and reported with
// ErrUnrecognizedPattern while the digits so far are kept. At a
// TerminatorGap that error may come together with a completed PIN. A PIN
// that is too short is discarded with ErrEmptyPin.
func (a *Assembler) Push(s Symbol) (pin string, done bool, err error) {
	switch s {
	case Dot:
		a.pattern.WriteByte('.')
	case Dash:
		a.pattern.WriteByte('-')
	case SymbolGap:
	case CharacterGap:
		if err := a.flush(); err != nil {
			return "", false, err
		}
	case TerminatorGap:
		defer a.Reset()
		patternErr := a.flush()
		if len(a.pin) < a.minLength {
			err := fmt.Errorf("%w: %d digits, need %d", ErrEmptyPin, len(a.pin), a.minLength)
			if patternErr != nil {
				err = fmt.Errorf("%w; %w", patternErr, err)
			}
			return "", false, err
		}
		return string(a.pin), true, patternErr
	default:
		return "", false, fmt.Errorf("unknown symbol %v", s)
	}
	return "", false, nil
}

func (a *Assembler) flush() error {
	if a.pattern.Len() == 0 {
		return nil
	}
	p := a.pattern.String()
	a.pattern.Reset()

	d, ok := Digit(p)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnrecognizedPattern, p)
	}
	a.pin = append(a.pin, d)
	return nil
}

// Len is the number of digits collected so far.
func (a *Assembler) Len() int { return len(a.pin) }

// Pending is the dot/dash pattern of the character being entered.
func (a *Assembler) Pending() string { return a.pattern.String() }

func (a *Assembler) Reset() {
	a.pattern.Reset()
	clear(a.pin)
	a.pin = a.pin[:0]
}
