package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

//go:embed static/*
var embeddedStatic embed.FS

const ScriptName = "select_or_create.js"

// StaticFS exposes the browser assets for mounting under /static.
func StaticFS() fs.FS {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		return embeddedStatic
	}
	return sub
}

func parseTemplates() (*template.Template, error) {
	return template.ParseFS(embeddedTemplates, "templates/*.tmpl")
}
