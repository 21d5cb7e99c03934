package table

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
)

var (
	columnSearchKey = regexp.MustCompile(`^columns\[(\d+)\]\[search\]\[value\]$`)
	orderColumnKey  = regexp.MustCompile(`^order\[(\d+)\]\[column\]$`)
)

// Query holds the parameters of a server-side processing request
type Query struct {
	Draw         int
	Start        int
	Length       int
	Search       string
	ColumnSearch map[int]string
	Order        []Order
}

// ParseQuery reads draw, start, length, search[value],
// columns[i][search][value], order[i][column] and order[i][dir].
// Missing numbers default to zero.
func ParseQuery(values url.Values) (Query, error) {
	q := Query{ColumnSearch: make(map[int]string)}

	var err error
	if q.Draw, err = intParam(values, "draw"); err != nil {
		return Query{}, err
	}
	if q.Start, err = intParam(values, "start"); err != nil {
		return Query{}, err
	}
	if q.Length, err = intParam(values, "length"); err != nil {
		return Query{}, err
	}
	if q.Start < 0 {
		return Query{}, fmt.Errorf("start must be non-negative")
	}
	q.Search = values.Get("search[value]")

	type indexedOrder struct {
		pos   int
		order Order
	}
	var orders []indexedOrder

	for key := range values {
		if m := columnSearchKey.FindStringSubmatch(key); m != nil {
			idx, _ := strconv.Atoi(m[1])
			if v := values.Get(key); v != "" {
				q.ColumnSearch[idx] = v
			}
			continue
		}
		if m := orderColumnKey.FindStringSubmatch(key); m != nil {
			pos, _ := strconv.Atoi(m[1])
			col, err := strconv.Atoi(values.Get(key))
			if err != nil {
				return Query{}, fmt.Errorf("invalid %s: %w", key, err)
			}
			dir := Direction(values.Get(fmt.Sprintf("order[%d][dir]", pos)))
			if dir == "" {
				dir = Asc
			}
			if !dir.IsValid() {
				return Query{}, fmt.Errorf("invalid order direction: %s", dir)
			}
			orders = append(orders, indexedOrder{pos: pos, order: Order{Column: col, Dir: dir}})
		}
	}

	slices.SortFunc(orders, func(a, b indexedOrder) int { return a.pos - b.pos })
	for _, o := range orders {
		q.Order = append(q.Order, o.order)
	}

	return q, nil
}

// Apply configures t with the query. A zero length keeps the configured
// page length; any other length must be in the length menu.
func (q Query) Apply(t *DataTable) error {
	for index, text := range q.ColumnSearch {
		if index < 0 || index >= len(t.Columns()) {
			return fmt.Errorf("search column %d out of range", index)
		}
		t.Column(index).Search(text)
	}
	t.Search(q.Search)

	if len(q.Order) > 0 {
		if err := t.OrderBy(q.Order...); err != nil {
			return err
		}
	}

	if q.Length != 0 {
		if err := t.SetPageLength(q.Length); err != nil {
			return err
		}
	}

	if t.pageLength > 0 {
		t.GoToPage(q.Start / t.pageLength)
	}
	return nil
}

func intParam(values url.Values, key string) (int, error) {
	v := values.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
