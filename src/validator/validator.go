package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"ppn-portal/src/birthdate"
	"ppn-portal/src/domain"
	"ppn-portal/src/i18n"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// CustomValidator は拡張バリデーション機能を提供
type CustomValidator struct {
	validator           *validator.Validate
	catalog             *i18n.Catalog
	minBirthDate        domain.CalendarDate
	phonePattern        *regexp.Regexp
	sqlInjectionPattern *regexp.Regexp
}

// ValidationError はバリデーションエラーの詳細情報
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationErrors は複数のバリデーションエラー
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d errors", len(ve.Errors))
}

// NewCustomValidator creates a new custom validator instance
func NewCustomValidator(catalog *i18n.Catalog, minBirthDate domain.CalendarDate) (*CustomValidator, error) {
	if minBirthDate.IsZero() {
		minBirthDate = birthdate.DefaultMinDate
	}

	v := validator.New()
	cv := &CustomValidator{
		validator:           v,
		catalog:             catalog,
		minBirthDate:        minBirthDate,
		phonePattern:        regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{5,19}$`),
		sqlInjectionPattern: regexp.MustCompile(`(?i)(\bunion\s+select\b|\bselect\s+.*\bfrom\b|\binsert\s+into\b|\bupdate\s+.*\bset\b|\bdelete\s+from\b|\bdrop\s+table\b|\bexec\s*\(|<script|</script>|onload\s*=|onerror\s*=|--|/\*|\*/|(\bor\b|\band\b)\s*(1\s*=\s*1|true|\d+\s*=\s*\d+))`),
	}

	// JSONのフィールド名でエラーを報告する
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	// カスタムバリデーションルールを登録
	rules := map[string]validator.Func{
		"birthdate":        cv.validateBirthDate,
		"safe_text":        cv.validateSafeText,
		"no_sql_injection": cv.validateNoSQLInjection,
		"phone":            cv.validatePhone,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("バリデーションルールの登録に失敗 (%s): %w", tag, err)
		}
	}

	if err := catalog.RegisterValidatorTranslations(v); err != nil {
		return nil, err
	}
	if err := cv.registerTranslations(); err != nil {
		return nil, err
	}

	return cv, nil
}

// Validate validates a struct and returns messages in lang
func (cv *CustomValidator) Validate(s interface{}, lang string) error {
	err := cv.validator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	trans := cv.catalog.Localizer(lang).Translator()
	result := ValidationErrors{Errors: make([]ValidationError, 0, len(fieldErrors))}
	for _, fe := range fieldErrors {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fe.Translate(trans),
		})
	}
	return result
}

// Engine exposes the underlying validator, e.g. for gin's binding
func (cv *CustomValidator) Engine() *validator.Validate {
	return cv.validator
}

func (cv *CustomValidator) registerTranslations() error {
	for _, lang := range cv.catalog.Languages() {
		loc := cv.catalog.Localizer(lang)
		trans := loc.Translator()

		// 生年月日は種類ごとに既存のメッセージを使う
		err := cv.validator.RegisterTranslation("birthdate", trans, noopRegister, func(_ ut.Translator, fe validator.FieldError) string {
			if cv.evaluateBirthDate(fmt.Sprint(fe.Value())).Kind == birthdate.TooEarly {
				return loc.Lookup(birthdate.KeyTooEarly)
			}
			return loc.Lookup(birthdate.KeyInvalid)
		})
		if err != nil {
			return fmt.Errorf("バリデーション翻訳の登録に失敗 (%s): %w", lang, err)
		}

		for _, tag := range []string{"safe_text", "no_sql_injection", "phone"} {
			key := "validation:" + tag
			err := cv.validator.RegisterTranslation(tag, trans, noopRegister, func(_ ut.Translator, fe validator.FieldError) string {
				return loc.Format(key, fe.Field())
			})
			if err != nil {
				return fmt.Errorf("バリデーション翻訳の登録に失敗 (%s, %s): %w", lang, tag, err)
			}
		}
	}
	return nil
}

func noopRegister(ut.Translator) error { return nil }

// カスタムバリデーション関数

func (cv *CustomValidator) evaluateBirthDate(raw string) birthdate.Result {
	e := birthdate.NewEvaluator(birthdate.MonthNames{})
	e.MinDate = cv.minBirthDate
	return e.Evaluate(raw)
}

func (cv *CustomValidator) validateBirthDate(fl validator.FieldLevel) bool {
	return cv.evaluateBirthDate(fl.Field().String()).Kind == birthdate.Valid
}

func (cv *CustomValidator) validateSafeText(fl validator.FieldLevel) bool {
	value := fl.Field().String()

	if cv.sqlInjectionPattern.MatchString(value) {
		return false
	}

	// タブ、改行、復帰以外の制御文字を拒否
	for _, r := range value {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return false
		}
	}
	return true
}

func (cv *CustomValidator) validateNoSQLInjection(fl validator.FieldLevel) bool {
	return !cv.sqlInjectionPattern.MatchString(fl.Field().String())
}

func (cv *CustomValidator) validatePhone(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return cv.phonePattern.MatchString(value)
}
