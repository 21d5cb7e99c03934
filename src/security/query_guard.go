package security

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"

	"ppn-portal/src/table"
)

const (
	MaxSearchLength = 200
	MaxPageLength   = 1000
	MaxStart        = 100000
)

// QueryGuard validates table queries before they reach the participant table
type QueryGuard struct {
	// 危険なパターン
	dangerousPatterns []*regexp.Regexp
}

// NewQueryGuard creates a new query guard
func NewQueryGuard() *QueryGuard {
	patterns := []*regexp.Regexp{
		// スクリプト注入
		regexp.MustCompile(`(?i)(<\s*/?\s*script|javascript:|vbscript:|on(load|error|focus|blur|mouseover)\s*=)`),
		// SQLインジェクション攻撃パターン
		regexp.MustCompile(`(?i)(\bunion\s+select\b|\bdrop\s+table\b|\bdelete\s+from\b|\binsert\s+into\b|/\*|\*/|;\s*--)`),
		regexp.MustCompile(`(?i)(\bxp_|\bsp_|information_schema|\bpg_catalog\b)`),
	}

	return &QueryGuard{
		dangerousPatterns: patterns,
	}
}

// ValidateSearch validates a global or column search term.
// Quotes and hyphens are legal since names and dates contain them.
func (g *QueryGuard) ValidateSearch(text string) error {
	if text == "" {
		return nil
	}

	// 長さチェック
	if utf8.RuneCountInString(text) > MaxSearchLength {
		return fmt.Errorf("search term too long (max: %d characters)", MaxSearchLength)
	}

	for _, r := range text {
		if unicode.IsControl(r) && r != '\t' {
			return fmt.Errorf("search term contains control characters")
		}
	}

	// 危険なパターンをチェック
	for _, pattern := range g.dangerousPatterns {
		if pattern.MatchString(text) {
			return fmt.Errorf("potentially dangerous pattern detected in search term")
		}
	}

	return nil
}

// ValidatePaging validates paging parameters to prevent resource exhaustion.
// A length of -1 shows all rows, zero keeps the configured length.
func (g *QueryGuard) ValidatePaging(start, length int) error {
	if length < table.All || length > MaxPageLength {
		return fmt.Errorf("length must be -1 or between 0 and %d", MaxPageLength)
	}
	if start < 0 {
		return fmt.Errorf("start must be non-negative")
	}
	if start > MaxStart {
		return fmt.Errorf("start too large (max: %d)", MaxStart)
	}
	return nil
}

// ValidateQuery checks every part of q against a table with the given column count
func (g *QueryGuard) ValidateQuery(q table.Query, columns int) error {
	if err := g.ValidatePaging(q.Start, q.Length); err != nil {
		return err
	}
	if err := g.ValidateSearch(q.Search); err != nil {
		return err
	}

	for index, text := range q.ColumnSearch {
		if index < 0 || index >= columns {
			return fmt.Errorf("invalid column for searching: %d", index)
		}
		if err := g.ValidateSearch(text); err != nil {
			return fmt.Errorf("column %d: %w", index, err)
		}
	}

	// ホワイトリスト方式: 存在する列のみ並べ替え可能
	for _, o := range q.Order {
		if o.Column < 0 || o.Column >= columns {
			return fmt.Errorf("invalid column for ordering: %d", o.Column)
		}
		if !o.Dir.IsValid() {
			return fmt.Errorf("invalid order direction: %s", o.Dir)
		}
	}

	return nil
}
