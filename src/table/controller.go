// Package table wires per-column filter inputs and confirmation prompts to
// a table renderer, and provides a server-side table engine.
package table

// SearchInitClass marks a filter input that still shows its placeholder
const SearchInitClass = "search_init"

// Table is the rendering collaborator: tbl.Column(i).Search(text).Draw()
type Table interface {
	Column(index int) Column
}

// Column is one column of a Table
type Column interface {
	Search(text string) Column
	Draw()
}

// FilterInput is a footer filter text box
type FilterInput interface {
	Value() string
	SetValue(value string)
	Class() string
	SetClass(class string)
}

// FilterController connects footer inputs to column filtering
type FilterController struct {
	table        Table
	inputs       []FilterInput
	placeholders map[int]string
}

// NewFilterController captures the initial value of every input as the
// placeholder for its column.
func NewFilterController(tbl Table, inputs []FilterInput) *FilterController {
	placeholders := make(map[int]string, len(inputs))
	for i, in := range inputs {
		placeholders[i] = in.Value()
	}
	return &FilterController{
		table:        tbl,
		inputs:       inputs,
		placeholders: placeholders,
	}
}

// IndexOf returns the 0-based position of input among the filter inputs, or -1
func (fc *FilterController) IndexOf(input FilterInput) int {
	for i, in := range fc.inputs {
		if in == input {
			return i
		}
	}
	return -1
}

// Placeholder returns the captured placeholder of column index
func (fc *FilterController) Placeholder(index int) string {
	return fc.placeholders[index]
}

// OnFilterInput filters the column of input by its current value and redraws
func (fc *FilterController) OnFilterInput(input FilterInput) {
	index := fc.IndexOf(input)
	if index < 0 {
		return
	}
	fc.table.Column(index).Search(input.Value()).Draw()
}

// OnFocus clears an input that still shows its placeholder
func (fc *FilterController) OnFocus(input FilterInput) {
	if input.Class() == SearchInitClass {
		input.SetClass("")
		input.SetValue("")
	}
}

// OnBlur restores the placeholder of an input left empty
func (fc *FilterController) OnBlur(input FilterInput) {
	if input.Value() != "" {
		return
	}
	index := fc.IndexOf(input)
	if index < 0 {
		return
	}
	input.SetClass(SearchInitClass)
	input.SetValue(fc.placeholders[index])
}

// TextInput is a plain FilterInput
type TextInput struct {
	value string
	class string
}

// NewTextInput creates an input showing placeholder in the search_init state
func NewTextInput(placeholder string) *TextInput {
	return &TextInput{value: placeholder, class: SearchInitClass}
}

func (t *TextInput) Value() string         { return t.value }
func (t *TextInput) SetValue(value string) { t.value = value }
func (t *TextInput) Class() string         { return t.class }
func (t *TextInput) SetClass(class string) { t.class = class }
