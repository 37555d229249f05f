package web

import (
	"embed"
	"io/fs"
	"net/http"

	"careview/internal/resolver"

	"github.com/gofiber/template/html/v2"
)

//go:embed views
var viewsFS embed.FS

// NewEngine builds the view engine over the embedded templates.
func NewEngine() *html.Engine {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}

	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("displayName", resolver.DisplayName)
	return engine
}
