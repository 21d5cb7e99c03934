// Package i18n resolves message keys and month names for the supported
// languages.
package i18n

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"ppn-portal/src/birthdate"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/nl"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	nl_translations "github.com/go-playground/validator/v10/translations/nl"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var catalogFS embed.FS

// DefaultLanguage is used when nothing better matches
const DefaultLanguage = "nl"

var paramPattern = regexp.MustCompile(`\{(\d+)\}`)

// Catalog holds the translators of every supported language
type Catalog struct {
	uni       *ut.UniversalTranslator
	languages []string
	matcher   language.Matcher
	fallback  string
	// 言語ごとのキー → {n} パラメータ数
	params map[string]map[string]int
}

// Localizer resolves keys for one language
type Localizer struct {
	lang   string
	locale locales.Translator
	trans  ut.Translator
	params map[string]int
}

// NewCatalog loads the embedded message catalogs
func NewCatalog() (*Catalog, error) {
	supported := []locales.Translator{nl.New(), en.New()}

	uni := ut.New(supported[0], supported...)
	c := &Catalog{uni: uni, fallback: DefaultLanguage, params: make(map[string]map[string]int)}
	tags := make([]language.Tag, 0, len(supported))

	for _, loc := range supported {
		lang := loc.Locale()
		messages, err := loadMessages(lang)
		if err != nil {
			return nil, err
		}

		trans, _ := uni.GetTranslator(lang)
		keys := make([]string, 0, len(messages))
		for k := range messages {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		counts := make(map[string]int)
		for _, k := range keys {
			if n := paramCount(messages[k]); n > 0 {
				counts[k] = n
			}
			if err := trans.Add(k, messages[k], false); err != nil {
				return nil, fmt.Errorf("メッセージの登録に失敗 (%s, %s): %w", lang, k, err)
			}
		}

		c.params[lang] = counts
		c.languages = append(c.languages, lang)
		tags = append(tags, language.Make(lang))
	}

	c.matcher = language.NewMatcher(tags)
	return c, nil
}

func loadMessages(lang string) (map[string]string, error) {
	data, err := catalogFS.ReadFile("locales/" + lang + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("カタログの読み込みに失敗 (%s): %w", lang, err)
	}
	messages := make(map[string]string)
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("カタログの解析に失敗 (%s): %w", lang, err)
	}
	return messages, nil
}

// paramCount は {0}, {1}, ... のうち最大の番号 + 1 を返す
func paramCount(message string) int {
	n := 0
	for _, m := range paramPattern.FindAllStringSubmatch(message, -1) {
		i, err := strconv.Atoi(m[1])
		if err == nil && i+1 > n {
			n = i + 1
		}
	}
	return n
}

// SetDefault changes the language used for requests without a preference
func (c *Catalog) SetDefault(lang string) error {
	for _, l := range c.languages {
		if l == lang {
			c.fallback = lang
			return nil
		}
	}
	return fmt.Errorf("unsupported language: %s", lang)
}

// Default returns the language used for requests without a preference
func (c *Catalog) Default() string {
	return c.fallback
}

// Languages returns the supported language codes, default first
func (c *Catalog) Languages() []string {
	return c.languages
}

// Match picks the best supported language for an Accept-Language header
// or a plain language code. Without a confident match the default is used.
func (c *Catalog) Match(acceptLanguage string) string {
	if acceptLanguage == "" {
		return c.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return c.fallback
	}
	_, index, confidence := c.matcher.Match(tags...)
	if confidence == language.No {
		return c.fallback
	}
	return c.languages[index]
}

// Localizer returns the localizer for lang, falling back to the default
func (c *Catalog) Localizer(lang string) *Localizer {
	trans, found := c.uni.GetTranslator(lang)
	if !found {
		lang = c.fallback
		trans, _ = c.uni.GetTranslator(lang)
	}
	loc := nl.New()
	if lang == "en" {
		loc = en.New()
	}
	return &Localizer{lang: lang, locale: loc, trans: trans, params: c.params[lang]}
}

// RegisterValidatorTranslations registers the validator's built-in error
// messages for every supported language.
func (c *Catalog) RegisterValidatorTranslations(v *validator.Validate) error {
	for _, lang := range c.languages {
		trans, _ := c.uni.GetTranslator(lang)
		var err error
		switch lang {
		case "nl":
			err = nl_translations.RegisterDefaultTranslations(v, trans)
		case "en":
			err = en_translations.RegisterDefaultTranslations(v, trans)
		}
		if err != nil {
			return fmt.Errorf("バリデーション翻訳の登録に失敗 (%s): %w", lang, err)
		}
	}
	return nil
}

// Language returns the language code
func (l *Localizer) Language() string {
	return l.lang
}

// Translator exposes the underlying translator
func (l *Localizer) Translator() ut.Translator {
	return l.trans
}

// Lookup resolves key; unknown keys resolve to themselves. Parameters of
// the message are left as {0}, {1}, ...
func (l *Localizer) Lookup(key string) string {
	return l.Format(key)
}

// Format resolves key and fills {0}, {1}, ... with params. Missing params
// keep their placeholder.
func (l *Localizer) Format(key string, params ...string) string {
	if n := l.params[key]; len(params) < n {
		padded := make([]string, n)
		copy(padded, params)
		for i := len(params); i < n; i++ {
			padded[i] = "{" + strconv.Itoa(i) + "}"
		}
		params = padded
	}
	s, err := l.trans.T(key, params...)
	if err != nil || s == "" {
		return key
	}
	return s
}

// MonthNames returns the wide month names of the language
func (l *Localizer) MonthNames() birthdate.MonthNames {
	var months birthdate.MonthNames
	for m := time.January; m <= time.December; m++ {
		months[m-1] = l.locale.MonthWide(m)
	}
	return months
}

// Evaluator returns a birth-date evaluator using this language's month names
func (l *Localizer) Evaluator() birthdate.Evaluator {
	return birthdate.NewEvaluator(l.MonthNames())
}
