package utils

import (
	"strings"
	"unicode"
)

const maxFileComponentLength = 100

// SafeFileComponent turns an arbitrary key (target name, host) into a string
// usable as a single path element on common filesystems.
func SafeFileComponent(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		if unicode.IsControl(r) || strings.ContainsRune(`<>:"/\|?*`, r) {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), "_ ")
	if len(out) > maxFileComponentLength {
		out = strings.Trim(out[:maxFileComponentLength], "_ ")
	}
	if out == "" {
		return "untitled"
	}
	return out
}
