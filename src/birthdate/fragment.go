package birthdate

import (
	"html"
	"html/template"
)

// Fragment is a server-rendered Display
type Fragment struct {
	ID      string
	Visible bool
	Text    string
	IsError bool
}

// NewFragment creates a hidden fragment
func NewFragment(id string) *Fragment {
	return &Fragment{ID: id}
}

// Hide hides the fragment
func (f *Fragment) Hide() {
	f.Visible = false
	f.Text = ""
	f.IsError = false
}

// Show shows plain text
func (f *Fragment) Show(text string) {
	f.Visible = true
	f.Text = text
	f.IsError = false
}

// ShowError shows a red-highlighted message
func (f *Fragment) ShowError(message string) {
	f.Visible = true
	f.Text = message
	f.IsError = true
}

// HTML renders the fragment. Text is escaped.
func (f *Fragment) HTML() template.HTML {
	id := html.EscapeString(f.ID)
	if !f.Visible {
		return template.HTML(`<div id="` + id + `" style="display: none;"></div>`)
	}
	body := html.EscapeString(f.Text)
	if f.IsError {
		body = `<span style="color: red;">` + body + `</span>`
	}
	return template.HTML(`<div id="` + id + `">` + body + `</div>`)
}
