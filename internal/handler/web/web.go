package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed static
var assets embed.FS

// RegisterRoutes serves the single-page chat UI at / and its assets under /static/.
func RegisterRoutes(r chi.Router) {
	static, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	files := http.FileServer(http.FS(static))

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFileFS(w, req, static, "index.html")
	})
	r.Handle("/static/*", http.StripPrefix("/static/", files))
}
