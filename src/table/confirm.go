package table

const (
	KeyConfirmRemoveParticipant = "timeslot:warning:confirm_remove_participant"
	KeyConfirmDownload          = "timeslot:warning:download_csv"
)

// Confirmer asks the user a yes/no question. Dismissal counts as no.
type Confirmer interface {
	Confirm(message string) bool
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(message string) bool

// Confirm calls f
func (f ConfirmFunc) Confirm(message string) bool {
	return f(message)
}

// Always is a Confirmer with a fixed answer
type Always bool

// Confirm returns the fixed answer
func (a Always) Confirm(string) bool {
	return bool(a)
}

// Actions gates destructive actions behind localized confirmations
type Actions struct {
	lookup func(key string) string
}

// NewActions creates Actions using lookup for the prompt texts
func NewActions(lookup func(key string) string) *Actions {
	if lookup == nil {
		lookup = func(key string) string { return key }
	}
	return &Actions{lookup: lookup}
}

// RemoveParticipantPrompt returns the localized prompt text
func (a *Actions) RemoveParticipantPrompt() string {
	return a.lookup(KeyConfirmRemoveParticipant)
}

// DownloadPrompt returns the localized prompt text
func (a *Actions) DownloadPrompt() string {
	return a.lookup(KeyConfirmDownload)
}

// ConfirmRemoveParticipant reports whether removal may proceed
func (a *Actions) ConfirmRemoveParticipant(c Confirmer) bool {
	return c != nil && c.Confirm(a.RemoveParticipantPrompt())
}

// ConfirmDownload reports whether the CSV download may proceed
func (a *Actions) ConfirmDownload(c Confirmer) bool {
	return c != nil && c.Confirm(a.DownloadPrompt())
}
