package birthdate

const (
	// DisplayID 確認表示エリアのID
	DisplayID = "formatted_birthday_value"

	KeyInvalid  = "birthdate:error:invalid"
	KeyTooEarly = "birthdate:error:too_early"
)

// Input is the masked birth-date field
type Input interface {
	Value() string
	// Mask installs pattern and calls completed once every slot is filled
	Mask(pattern, placeholder string, completed func())
	OnFocusOut(handler func())
	// AppendDisplay creates the display element next to the field
	AppendDisplay(id string) Display
}

// Display is the element beneath the field
type Display interface {
	Hide()
	Show(text string)
	ShowError(message string)
}

// Config 日付フィールドの設定
type Config struct {
	Evaluator Evaluator
	Lookup    func(key string) string
}

// Binding ties a field, its display and the evaluator together
type Binding struct {
	input    Input
	display  Display
	evaluate func(raw string) Result
	lookup   func(key string) string
	last     Result
}

// Attach masks input, creates its display and re-evaluates on mask
// completion and focus loss. The initial value is evaluated immediately.
func Attach(input Input, cfg Config) *Binding {
	lookup := cfg.Lookup
	if lookup == nil {
		lookup = func(key string) string { return key }
	}

	b := &Binding{
		input:    input,
		display:  input.AppendDisplay(DisplayID),
		evaluate: cfg.Evaluator.Evaluate,
		lookup:   lookup,
	}

	input.Mask(MaskPattern, cfg.Evaluator.Placeholder, b.refresh)
	input.OnFocusOut(b.refresh)
	b.refresh()

	return b
}

// Last returns the most recent evaluation
func (b *Binding) Last() Result {
	return b.last
}

func (b *Binding) refresh() {
	b.last = b.evaluate(b.input.Value())
	Present(b.last, b.display, b.lookup)
}

// Present routes a result to the display
func Present(r Result, d Display, lookup func(key string) string) {
	switch r.Kind {
	case Empty:
		d.Hide()
	case Invalid:
		d.ShowError(lookup(KeyInvalid))
	case TooEarly:
		d.ShowError(lookup(KeyTooEarly))
	case Valid:
		d.Show(r.Display)
	}
}
