// Package http provides HTTP server and handler implementations.
//
// This file turns query strings into report parameters and back, so every
// partial, chart and export link carries the same filter.

package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"asistencia/internal/report"
)

const (
	paramTop      = "n"
	paramZero     = "zero"
	paramLocation = "location"
)

// ParseFilter reads the repeated dimension parameters. Blank values are
// ignored; unknown parameters are left for the caller.
func ParseFilter(q url.Values) report.Filter {
	f := report.NewFilter()
	for _, d := range report.Dimensions {
		for _, v := range q[d.Param()] {
			f.Select(d, sanitizeInput(v))
		}
	}
	return f
}

// FilterQuery encodes f back into a query string. Dimensions keep sidebar
// order, values are sorted, so equal filters give equal URLs.
func FilterQuery(f report.Filter) url.Values {
	q := url.Values{}
	for _, d := range report.Dimensions {
		for _, v := range f.Selected(d) {
			q.Add(d.Param(), v)
		}
	}
	return q
}

// withQuery appends the filter and extra parameters to path.
func withQuery(path string, f report.Filter, extra ...string) string {
	q := FilterQuery(f)
	for i := 0; i+1 < len(extra); i += 2 {
		if extra[i+1] != "" {
			q.Set(extra[i], extra[i+1])
		}
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// ParseTopN reads n and clamps it to the ranking bounds.
func ParseTopN(q url.Values) int {
	n, err := strconv.Atoi(strings.TrimSpace(q.Get(paramTop)))
	if err != nil {
		return report.DefaultTopN
	}
	return report.ClampTopN(n)
}

// ParseBool accepts 1/true/on/yes/sí as true.
func ParseBool(q url.Values, key string) bool {
	switch strings.ToLower(strings.TrimSpace(q.Get(key))) {
	case "1", "true", "on", "yes", "si", "sí":
		return true
	}
	return false
}

// ParseLocation reads the location selector value. It is not trimmed:
// labels of locations with a blank code or name start or end with a space.
func ParseLocation(q url.Values) string {
	return stripControl(q.Get(paramLocation))
}

// isHTMX reports whether the request came from htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return stripControl(strings.TrimSpace(s))
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 {
			return -1
		}
		return r
	}, s)
}
