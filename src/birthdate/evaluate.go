// Package birthdate validates dd-mm-yyyy birth dates and renders the
// human-readable confirmation shown beneath the registration field.
package birthdate

import (
	"regexp"
	"strconv"
	"time"

	"ppn-portal/src/domain"
)

const (
	// MaskPattern 入力マスク（9 = 数字）
	MaskPattern = "99-99-9999"
	// Placeholder マスクが未入力の枠に表示する文字列
	Placeholder = "dd-mm-yyyy"
)

// DefaultMinDate is the earliest accepted birth date
var DefaultMinDate = domain.CalendarDate{Year: 1900, Month: time.January, Day: 1}

var datePattern = regexp.MustCompile(`^((0[1-9])|([12]\d)|(3[01]))-(0[1-9]|1[0-2])-(\d{4})$`)

// Kind 評価結果の種類
type Kind int

const (
	Empty Kind = iota
	Invalid
	TooEarly
	Valid
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Invalid:
		return "invalid"
	case TooEarly:
		return "too_early"
	case Valid:
		return "valid"
	default:
		return "unknown"
	}
}

// MonthNames holds localized month names, January first
type MonthNames [12]string

// Result is the outcome of evaluating the field value.
// Display is only set when Kind is Valid.
type Result struct {
	Kind    Kind
	Display string
	Date    domain.CalendarDate
}

// Evaluate validates raw against the dd-mm-yyyy pattern and minDate and
// formats valid dates as "<day> <month name> <year>".
func Evaluate(raw string, minDate domain.CalendarDate, placeholder string, months MonthNames) Result {
	if raw == "" || raw == placeholder {
		return Result{Kind: Empty}
	}

	m := datePattern.FindStringSubmatch(raw)
	if m == nil {
		return Result{Kind: Invalid}
	}

	// グループ: 1=日, 5=月, 6=年。パターンで桁数が保証されているためAtoiは失敗しない
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[5])
	year, _ := strconv.Atoi(m[6])

	date, ok := domain.NewCalendarDate(year, time.Month(month), day)
	if !ok {
		return Result{Kind: Invalid}
	}

	if date.Before(minDate) {
		return Result{Kind: TooEarly, Date: date}
	}

	return Result{
		Kind:    Valid,
		Display: strconv.Itoa(date.Day) + " " + months[date.Month-1] + " " + strconv.Itoa(date.Year),
		Date:    date,
	}
}

// Evaluator captures the fixed evaluation parameters so the same function
// value can be handed to mask completion and focus-loss callbacks.
type Evaluator struct {
	MinDate     domain.CalendarDate
	Placeholder string
	Months      MonthNames
}

// NewEvaluator creates an evaluator with the default minimum date and placeholder
func NewEvaluator(months MonthNames) Evaluator {
	return Evaluator{
		MinDate:     DefaultMinDate,
		Placeholder: Placeholder,
		Months:      months,
	}
}

// Evaluate runs Evaluate with the captured parameters
func (e Evaluator) Evaluate(raw string) Result {
	return Evaluate(raw, e.MinDate, e.Placeholder, e.Months)
}
