// Package web provides embedded dashboard frontend
package web

import "embed"

// FS holds pages, scripts and styles of the dashboard
//
//go:embed *.html *.js *.css
var FS embed.FS
