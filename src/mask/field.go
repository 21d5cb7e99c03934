package mask

import (
	"ppn-portal/src/birthdate"
)

// Field is an in-memory masked text input. It behaves like a browser input
// with a mask plugin: typing fills the slots, completion fires a callback,
// and an incomplete value is cleared on blur.
type Field struct {
	raw       string
	mask      *Mask
	digits    []rune
	focused   bool
	completed func()
	onBlur    []func()
	displays  []*birthdate.Fragment
}

// NewField creates a field holding an initial value
func NewField(initial string) *Field {
	return &Field{raw: initial}
}

// Value returns the current contents
func (f *Field) Value() string {
	if f.mask == nil {
		return f.raw
	}
	state := f.mask.Apply(string(f.digits))
	if state.Filled == 0 && !f.focused {
		return ""
	}
	return state.Value
}

// Mask installs the mask. Digits already present in the value are kept.
func (f *Field) Mask(pattern, placeholder string, completed func()) {
	f.mask = MustNew(pattern, placeholder)
	f.digits = f.mask.Digits(f.raw)
	f.completed = completed
}

// OnFocusOut registers a blur handler
func (f *Field) OnFocusOut(handler func()) {
	f.onBlur = append(f.onBlur, handler)
}

// AppendDisplay creates a display fragment next to the field
func (f *Field) AppendDisplay(id string) birthdate.Display {
	d := birthdate.NewFragment(id)
	f.displays = append(f.displays, d)
	return d
}

// Display returns the first appended display, or nil
func (f *Field) Display() *birthdate.Fragment {
	if len(f.displays) == 0 {
		return nil
	}
	return f.displays[0]
}

// Focus gives the field focus
func (f *Field) Focus() {
	f.focused = true
}

// Type appends keystrokes. The completion callback runs when the last slot
// gets filled.
func (f *Field) Type(text string) {
	if f.mask == nil {
		f.raw += text
		return
	}
	wasComplete := len(f.digits) == f.mask.Slots()
	for _, r := range f.mask.Digits(text) {
		if len(f.digits) == f.mask.Slots() {
			break
		}
		f.digits = append(f.digits, r)
	}
	if !wasComplete && len(f.digits) == f.mask.Slots() && f.completed != nil {
		f.completed()
	}
}

// Backspace removes the last typed digit
func (f *Field) Backspace() {
	if f.mask == nil {
		if n := len(f.raw); n > 0 {
			f.raw = f.raw[:n-1]
		}
		return
	}
	if n := len(f.digits); n > 0 {
		f.digits = f.digits[:n-1]
	}
}

// Blur removes focus, clears an incomplete value and runs the blur handlers
func (f *Field) Blur() {
	f.focused = false
	if f.mask != nil && len(f.digits) < f.mask.Slots() {
		f.digits = f.digits[:0]
	}
	for _, h := range f.onBlur {
		h()
	}
}
