package handler

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// StaticFS serves the scripts the pages load from /static
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// renderHTML はテンプレートをバッファに描画してから送信する
func renderHTML(c *gin.Context, logger *logrus.Logger, status int, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.WithError(err).WithField("template", name).Error("テンプレートの描画に失敗")
		c.JSON(http.StatusInternalServerError, ErrorResponseDTO{Error: "Failed to render page"})
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
