package table

// All is the page length that shows every row
const All = -1

// Direction 並び順
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// IsValid validates if the direction is valid
func (d Direction) IsValid() bool {
	return d == Asc || d == Desc
}

// Order sorts by one column
type Order struct {
	Column int       `json:"column"`
	Dir    Direction `json:"dir"`
}

// PagingFullNumbers shows first, previous, page numbers, next and last
const PagingFullNumbers = "full_numbers"

// Config is fixed at initialization
type Config struct {
	Order        []Order  `json:"order"`
	LengthMenu   []int    `json:"lengthMenu"`
	LengthLabels []string `json:"lengthLabels"`
	PageLength   int      `json:"pageLength"`
	PagingType   string   `json:"pagingType"`
	Responsive   bool     `json:"responsive"`
}

// LengthOption is one entry of the page-size menu
type LengthOption struct {
	Value int
	Label string
}

// DefaultConfig returns the participants listing configuration
func DefaultConfig() Config {
	return Config{
		Order:        []Order{{Column: 0, Dir: Asc}, {Column: 2, Dir: Asc}},
		LengthMenu:   []int{10, 20, 50, All},
		LengthLabels: []string{"10", "20", "50", "∞"},
		PageLength:   All,
		PagingType:   PagingFullNumbers,
		Responsive:   true,
	}
}

// LengthOptions pairs the menu values with their labels
func (c Config) LengthOptions() []LengthOption {
	opts := make([]LengthOption, len(c.LengthMenu))
	for i, v := range c.LengthMenu {
		label := ""
		if i < len(c.LengthLabels) {
			label = c.LengthLabels[i]
		}
		opts[i] = LengthOption{Value: v, Label: label}
	}
	return opts
}

// AllowsLength reports whether n is one of the menu values
func (c Config) AllowsLength(n int) bool {
	for _, v := range c.LengthMenu {
		if v == n {
			return true
		}
	}
	return false
}
