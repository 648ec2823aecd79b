package morse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encode renders a digit string as the symbol stream a user would blink.
func encode(t *testing.T, pin string) []Symbol {
	t.Helper()
	var out []Symbol
	for i := 0; i < len(pin); i++ {
		p, ok := Pattern(pin[i])
		require.True(t, ok, "no pattern for %q", pin[i])
		for j, c := range p {
			if j > 0 {
				out = append(out, SymbolGap)
			}
			if c == '.' {
				out = append(out, Dot)
			} else {
				out = append(out, Dash)
			}
		}
		out = append(out, CharacterGap)
	}
	return append(out, TerminatorGap)
}

func pushAll(a *Assembler, syms []Symbol) (pin string, done bool, errs []error) {
	for _, s := range syms {
		p, d, err := a.Push(s)
		if err != nil {
			errs = append(errs, err)
		}
		if d {
			pin, done = p, d
		}
	}
	return pin, done, errs
}

func TestDigitTable(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range []byte("0123456789") {
		p, ok := Pattern(d)
		require.True(t, ok)
		assert.Len(t, p, 5)
		assert.False(t, seen[p], "duplicate pattern %s", p)
		seen[p] = true

		back, ok := Digit(p)
		require.True(t, ok)
		assert.Equal(t, d, back)
	}

	_, ok := Digit(".-")
	assert.False(t, ok)
}

func TestAssembler_FullPin(t *testing.T) {
	a := NewAssembler(DefaultMinLength)

	pin, done, errs := pushAll(a, encode(t, "2580"))
	assert.Empty(t, errs)
	assert.True(t, done)
	assert.Equal(t, "2580", pin)
	assert.Zero(t, a.Len())
	assert.Empty(t, a.Pending())
}

func TestAssembler_TerminatorFlushesPendingPattern(t *testing.T) {
	a := NewAssembler(1)

	// "..---" followed directly by the terminator, no character gap
	syms := []Symbol{Dot, Dot, Dash, Dash, Dash, TerminatorGap}
	pin, done, errs := pushAll(a, syms)
	assert.Empty(t, errs)
	assert.True(t, done)
	assert.Equal(t, "2", pin)
}

func TestAssembler_UnrecognizedAtCharacterGapKeepsDigits(t *testing.T) {
	a := NewAssembler(1)

	syms := encode(t, "1")
	syms = syms[:len(syms)-1] // drop terminator
	_, _, errs := pushAll(a, syms)
	require.Empty(t, errs)

	_, _, err := a.Push(Dot)
	require.NoError(t, err)
	_, _, err = a.Push(Dash)
	require.NoError(t, err)
	_, done, err := a.Push(CharacterGap)
	assert.ErrorIs(t, err, ErrUnrecognizedPattern)
	assert.False(t, done)
	assert.Equal(t, 1, a.Len())
	assert.Empty(t, a.Pending())

	pin, done, errs := pushAll(a, encode(t, "9"))
	assert.Empty(t, errs)
	assert.True(t, done)
	assert.Equal(t, "19", pin)
}

func TestAssembler_UnrecognizedAtTerminatorKeepsDigits(t *testing.T) {
	a := NewAssembler(1)

	// "1", a character gap, then a lone dot ended by the terminator
	syms := encode(t, "1")
	syms = syms[:len(syms)-1]
	syms = append(syms, CharacterGap, Dot, TerminatorGap)

	pin, done, errs := pushAll(a, syms)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrUnrecognizedPattern)
	assert.True(t, done)
	assert.Equal(t, "1", pin)
	assert.Zero(t, a.Len())
	assert.Empty(t, a.Pending())
}

func TestAssembler_UnrecognizedAtTerminatorBelowMinLength(t *testing.T) {
	a := NewAssembler(1)

	pin, done, errs := pushAll(a, []Symbol{Dot, Dot, TerminatorGap})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrUnrecognizedPattern)
	assert.ErrorIs(t, errs[0], ErrEmptyPin)
	assert.False(t, done)
	assert.Empty(t, pin)
	assert.Zero(t, a.Len())
}

func TestAssembler_EmptyPin(t *testing.T) {
	a := NewAssembler(1)

	_, done, err := a.Push(TerminatorGap)
	assert.ErrorIs(t, err, ErrEmptyPin)
	assert.False(t, done)
}

func TestAssembler_MinLength(t *testing.T) {
	a := NewAssembler(4)

	_, done, errs := pushAll(a, encode(t, "12"))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrEmptyPin)
	assert.False(t, done)

	pin, done, errs := pushAll(a, encode(t, "1234"))
	assert.Empty(t, errs)
	assert.True(t, done)
	assert.Equal(t, "1234", pin)
}

func TestAssembler_GapsAreIdempotent(t *testing.T) {
	a := NewAssembler(1)

	for _, s := range []Symbol{CharacterGap, SymbolGap, CharacterGap} {
		_, done, err := a.Push(s)
		require.NoError(t, err)
		assert.False(t, done)
	}
	assert.Zero(t, a.Len())
}

func TestSymbol_Mark(t *testing.T) {
	m, ok := Dot.Mark()
	assert.True(t, ok)
	assert.Equal(t, ".", m)

	m, ok = Dash.Mark()
	assert.True(t, ok)
	assert.Equal(t, "_", m)

	_, ok = CharacterGap.Mark()
	assert.False(t, ok)
	assert.Equal(t, "terminator_gap", TerminatorGap.String())
}
