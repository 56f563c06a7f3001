// Package docs serves the OpenAPI description of the console API with a
// Swagger UI page.
package docs

import (
	"embed"
	"net/http"
)

//go:embed index.html openapi.yaml
var assets embed.FS

func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		http.ServeFileFS(w, r, assets, "openapi.yaml")
	})
	mux.Handle("/", http.FileServerFS(assets))
	return mux
}
