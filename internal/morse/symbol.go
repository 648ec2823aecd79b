// Package morse turns a stream of Morse symbols into a numeric PIN.
package morse

import "fmt"

type Symbol int

const (
	Dot Symbol = iota + 1
	Dash
	SymbolGap
	CharacterGap
	TerminatorGap
)

func (s Symbol) String() string {
	switch s {
	case Dot:
		return "dot"
	case Dash:
		return "dash"
	case SymbolGap:
		return "symbol_gap"
	case CharacterGap:
		return "character_gap"
	case TerminatorGap:
		return "terminator_gap"
	default:
		return fmt.Sprintf("symbol(%d)", int(s))
	}
}

// Mark is the wire form of a dot or dash. Gaps have no mark.
func (s Symbol) Mark() (string, bool) {
	switch s {
	case Dot:
		return ".", true
	case Dash:
		return "_", true
	default:
		return "", false
	}
}

var digits = map[string]byte{
	".----": '1',
	"..---": '2',
	"...--": '3',
	"....-": '4',
	".....": '5',
	"-....": '6',
	"--...": '7',
	"---..": '8',
	"----.": '9',
	"-----": '0',
}

// Digit looks up a dot/dash pattern such as "..---".
func Digit(pattern string) (byte, bool) {
	d, ok := digits[pattern]
	return d, ok
}

// Pattern is the inverse of Digit.
func Pattern(digit byte) (string, bool) {
	for p, d := range digits {
		if d == digit {
			return p, true
		}
	}
	return "", false
}
