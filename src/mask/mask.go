// Package mask implements fixed input masks such as 99-99-9999.
package mask

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// SlotRune marks a digit position in a pattern
const SlotRune = '9'

// Mask is a compiled pattern
type Mask struct {
	pattern     []rune
	placeholder []rune
	slots       []int
}

// State マスク適用後の状態
type State struct {
	Value    string
	Filled   int
	Complete bool
}

// New compiles pattern. placeholder is either one rune (used for every slot)
// or as long as the pattern.
func New(pattern, placeholder string) (*Mask, error) {
	p := []rune(pattern)
	if len(p) == 0 {
		return nil, fmt.Errorf("mask pattern is empty")
	}

	var ph []rune
	switch utf8.RuneCountInString(placeholder) {
	case 1:
		r, _ := utf8.DecodeRuneInString(placeholder)
		ph = make([]rune, len(p))
		for i := range p {
			if p[i] == SlotRune {
				ph[i] = r
			} else {
				ph[i] = p[i]
			}
		}
	case len(p):
		ph = []rune(placeholder)
	default:
		return nil, fmt.Errorf("placeholder %q does not fit pattern %q", placeholder, pattern)
	}

	m := &Mask{pattern: p, placeholder: ph}
	for i, r := range p {
		if r == SlotRune {
			m.slots = append(m.slots, i)
		}
	}
	if len(m.slots) == 0 {
		return nil, fmt.Errorf("mask pattern %q has no slots", pattern)
	}
	return m, nil
}

// MustNew is like New but panics on error
func MustNew(pattern, placeholder string) *Mask {
	m, err := New(pattern, placeholder)
	if err != nil {
		panic(err)
	}
	return m
}

// Slots returns the number of digit positions
func (m *Mask) Slots() int {
	return len(m.slots)
}

// Placeholder returns the value shown when nothing has been typed
func (m *Mask) Placeholder() string {
	return string(m.placeholder)
}

// Digits extracts the digits of s that fit into the mask
func (m *Mask) Digits(s string) []rune {
	digits := make([]rune, 0, len(m.slots))
	for _, r := range s {
		if len(digits) == len(m.slots) {
			break
		}
		if unicode.IsDigit(r) && r < utf8.RuneSelf {
			digits = append(digits, r)
		}
	}
	return digits
}

// Apply places the digits of typed into the slots. Literals and
// non-digits in typed are skipped; unfilled slots show the placeholder.
func (m *Mask) Apply(typed string) State {
	digits := m.Digits(typed)

	buf := make([]rune, len(m.pattern))
	copy(buf, m.placeholder)
	for i, d := range digits {
		buf[m.slots[i]] = d
	}

	return State{
		Value:    string(buf),
		Filled:   len(digits),
		Complete: len(digits) == len(m.slots),
	}
}
