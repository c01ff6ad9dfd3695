package core

import "strings"

const idSeparator = '-'

// NormalizeID turns a free-text national ID into its cluster key: every
// non-digit rune becomes a dash, dash runs collapse into one and outer
// dashes are stripped. ok is false when no digit survives.
func NormalizeID(raw string) (key string, ok bool) {
	var b strings.Builder
	b.Grow(len(raw))
	pending := false
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			if pending && b.Len() > 0 {
				b.WriteRune(idSeparator)
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	key = b.String()
	return key, key != ""
}

// ResolveNames assigns Key and CanonicalName in place. Records must be in
// source order: the first record producing a key fixes its name.
// It returns the key → name map.
func ResolveNames(records []Record) map[string]string {
	names := make(map[string]string)
	for i := range records {
		key, ok := NormalizeID(records[i].RawID)
		if !ok {
			records[i].Key = ""
			records[i].CanonicalName = ""
			continue
		}
		records[i].Key = key
		if _, seen := names[key]; !seen {
			names[key] = records[i].Name
		}
	}
	for i := range records {
		if records[i].Key != "" {
			records[i].CanonicalName = names[records[i].Key]
		}
	}
	return names
}
