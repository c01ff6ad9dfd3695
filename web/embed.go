// Package web holds the dashboard templates and static assets.
package web

import "embed"

// TemplatesFS embeds the dashboard page and its htmx partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the stylesheet and notification script.
//
//go:embed static/*
var StaticFS embed.FS
