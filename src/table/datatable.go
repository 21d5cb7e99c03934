package table

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// PageButton is one control of the full_numbers pagination
type PageButton struct {
	Kind     string `json:"kind"` // first, previous, number, ellipsis, next, last
	Label    string `json:"label,omitempty"`
	Page     int    `json:"page"`
	Active   bool   `json:"active,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// View is the result of the last Draw
type View struct {
	Draw            int          `json:"draw"`
	Rows            [][]string   `json:"data"`
	RowIDs          []string     `json:"rowIds,omitempty"`
	RecordsTotal    int          `json:"recordsTotal"`
	RecordsFiltered int          `json:"recordsFiltered"`
	Page            int          `json:"page"`
	Pages           int          `json:"pages"`
	PageLength      int          `json:"pageLength"`
	Buttons         []PageButton `json:"buttons"`
}

// DataTable is an in-memory table with per-column search, ordering and
// pagination. Searches are case-insensitive; every whitespace separated term
// must occur in the cell.
type DataTable struct {
	cfg        Config
	columns    []string
	rows       [][]string
	ids        []string
	searches   map[int]string
	global     string
	order      []Order
	pageLength int
	page       int
	draws      int
	view       View
}

// New creates a table. Rows shorter than columns are padded.
func New(columns []string, rows [][]string, cfg Config) *DataTable {
	padded := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, len(columns))
		copy(row, r)
		padded[i] = row
	}
	// 列数が少ないテーブルでは範囲外の初期ソートを無視する
	order := make([]Order, 0, len(cfg.Order))
	for _, o := range cfg.Order {
		if o.Column >= 0 && o.Column < len(columns) {
			order = append(order, o)
		}
	}
	return &DataTable{
		cfg:        cfg,
		columns:    columns,
		rows:       padded,
		searches:   make(map[int]string),
		order:      order,
		pageLength: cfg.PageLength,
	}
}

type columnRef struct {
	t     *DataTable
	index int
}

// WithRowIDs attaches an identifier to every row. Identifiers are not
// searchable and are reported in View.RowIDs in row order.
func (t *DataTable) WithRowIDs(ids []string) *DataTable {
	t.ids = make([]string, len(t.rows))
	copy(t.ids, ids)
	return t
}

// Column returns a handle for column index
func (t *DataTable) Column(index int) Column {
	return &columnRef{t: t, index: index}
}

func (c *columnRef) Search(text string) Column {
	if c.index < 0 || c.index >= len(c.t.columns) {
		return c
	}
	if text == "" {
		delete(c.t.searches, c.index)
	} else {
		c.t.searches[c.index] = text
	}
	c.t.page = 0
	return c
}

func (c *columnRef) Draw() {
	c.t.Draw()
}

// Columns returns the column titles
func (t *DataTable) Columns() []string {
	return t.columns
}

// Config returns the table configuration
func (t *DataTable) Config() Config {
	return t.cfg
}

// ColumnSearch returns the active search of column index
func (t *DataTable) ColumnSearch(index int) string {
	return t.searches[index]
}

// Search sets the global search
func (t *DataTable) Search(text string) *DataTable {
	t.global = text
	t.page = 0
	return t
}

// OrderBy replaces the ordering. Out-of-range columns are rejected.
func (t *DataTable) OrderBy(orders ...Order) error {
	for _, o := range orders {
		if o.Column < 0 || o.Column >= len(t.columns) {
			return fmt.Errorf("order column %d out of range", o.Column)
		}
		if !o.Dir.IsValid() {
			return fmt.Errorf("invalid order direction: %s", o.Dir)
		}
	}
	t.order = slices.Clone(orders)
	return nil
}

// SetPageLength sets the page size; n must be in the length menu
func (t *DataTable) SetPageLength(n int) error {
	if !t.cfg.AllowsLength(n) {
		return fmt.Errorf("page length %d not in length menu", n)
	}
	t.pageLength = n
	t.page = 0
	return nil
}

// GoToPage selects a 0-based page; it is clamped on Draw
func (t *DataTable) GoToPage(page int) *DataTable {
	t.page = page
	return t
}

// Draw recomputes the view
func (t *DataTable) Draw() {
	t.draws++

	filtered := make([]int, 0, len(t.rows))
	for i, row := range t.rows {
		if t.matches(row) {
			filtered = append(filtered, i)
		}
	}

	slices.SortStableFunc(filtered, func(i, j int) int {
		a, b := t.rows[i], t.rows[j]
		for _, o := range t.order {
			c := compareCells(a[o.Column], b[o.Column])
			if o.Dir == Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	pages := 1
	selected := filtered
	if t.pageLength > 0 {
		pages = (len(filtered) + t.pageLength - 1) / t.pageLength
		if pages == 0 {
			pages = 1
		}
		if t.page >= pages {
			t.page = pages - 1
		}
		if t.page < 0 {
			t.page = 0
		}
		start := t.page * t.pageLength
		end := min(start+t.pageLength, len(filtered))
		selected = filtered[start:end]
	} else {
		t.page = 0
	}

	pageRows := make([][]string, len(selected))
	var rowIDs []string
	if t.ids != nil {
		rowIDs = make([]string, len(selected))
	}
	for n, i := range selected {
		pageRows[n] = t.rows[i]
		if rowIDs != nil {
			rowIDs[n] = t.ids[i]
		}
	}

	t.view = View{
		Draw:            t.draws,
		Rows:            pageRows,
		RowIDs:          rowIDs,
		RecordsTotal:    len(t.rows),
		RecordsFiltered: len(filtered),
		Page:            t.page,
		Pages:           pages,
		PageLength:      t.pageLength,
		Buttons:         fullNumbers(t.page, pages),
	}
}

// View returns the result of the last Draw
func (t *DataTable) View() View {
	return t.view
}

func (t *DataTable) matches(row []string) bool {
	for index, text := range t.searches {
		if !containsTerms(row[index], text) {
			return false
		}
	}
	if t.global == "" {
		return true
	}
	return containsTerms(strings.Join(row, " "), t.global)
}

func containsTerms(cell, search string) bool {
	haystack := strings.ToLower(cell)
	for _, term := range strings.Fields(strings.ToLower(search)) {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// compareCells compares numerically when both cells are numbers
func compareCells(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// fullNumbers builds the first/previous/1 … n/next/last controls.
// At most seven number or ellipsis buttons are shown.
func fullNumbers(page, pages int) []PageButton {
	const maxButtons = 7
	last := pages - 1

	buttons := []PageButton{
		{Kind: "first", Page: 0, Disabled: page == 0},
		{Kind: "previous", Page: max(page-1, 0), Disabled: page == 0},
	}

	number := func(p int) PageButton {
		return PageButton{Kind: "number", Label: strconv.Itoa(p + 1), Page: p, Active: p == page}
	}
	ellipsis := PageButton{Kind: "ellipsis", Label: "…", Page: -1, Disabled: true}

	half := maxButtons / 2
	switch {
	case pages <= maxButtons:
		for p := 0; p < pages; p++ {
			buttons = append(buttons, number(p))
		}
	case page <= half:
		for p := 0; p < maxButtons-2; p++ {
			buttons = append(buttons, number(p))
		}
		buttons = append(buttons, ellipsis, number(last))
	case page >= last-half:
		buttons = append(buttons, number(0), ellipsis)
		for p := pages - (maxButtons - 2); p < pages; p++ {
			buttons = append(buttons, number(p))
		}
	default:
		buttons = append(buttons, number(0), ellipsis)
		for p := page - 1; p <= page+1; p++ {
			buttons = append(buttons, number(p))
		}
		buttons = append(buttons, ellipsis, number(last))
	}

	buttons = append(buttons,
		PageButton{Kind: "next", Page: min(page+1, last), Disabled: page >= last},
		PageButton{Kind: "last", Page: last, Disabled: page >= last},
	)
	return buttons
}
