// Package web holds the embedded admin templates and static assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed static
var staticFiles embed.FS

//go:embed templates
var templateFiles embed.FS

// StaticFS serves the contents of static/ at the root.
var StaticFS = mustSub(staticFiles, "static")

// Templates holds every page and partial.
var Templates = template.Must(template.New("").Funcs(template.FuncMap{
	"datetime": formatDateTime,
	"ago":      humanize.Time,
}).ParseFS(templateFiles, "templates/*.html", "templates/partials/*.html"))

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04 MST")
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
