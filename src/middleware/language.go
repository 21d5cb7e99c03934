package middleware

import (
	"ppn-portal/src/i18n"

	"github.com/gin-gonic/gin"
)

const ContextLanguage = "lang"

// LanguageMiddleware 表示言語を決定する。?lang= が Accept-Language より優先。
func LanguageMiddleware(catalog *i18n.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		requested := c.Query("lang")
		if requested == "" {
			requested = c.GetHeader("Accept-Language")
		}
		c.Set(ContextLanguage, catalog.Match(requested))
		c.Next()
	}
}

// Language returns the language chosen by LanguageMiddleware
func Language(c *gin.Context) string {
	if lang := c.GetString(ContextLanguage); lang != "" {
		return lang
	}
	return i18n.DefaultLanguage
}
