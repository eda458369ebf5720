package web

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
)

//go:embed display.html
var displayHTML string

var displayTemplate = template.Must(template.New("display").Parse(displayHTML))

// DisplayHandler serves the read-only display page. The page opens a
// WebSocket on wsPath and renders masked results as they arrive; it never
// sees original values.
func DisplayHandler(wsPath string) http.HandlerFunc {
	var buf bytes.Buffer
	if err := displayTemplate.Execute(&buf, struct{ WSPath string }{wsPath}); err != nil {
		panic(err)
	}
	page := buf.Bytes()

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		w.Write(page)
	}
}
