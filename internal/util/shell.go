// Package util holds small string helpers shared across ce packages.
package util

import "strings"

// ShellQuote wraps s in single quotes so a POSIX shell treats it literally.
func ShellQuote(s string) string {
	// ' becomes '\'' (close, escaped quote, reopen)
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// SplitList splits a comma and/or whitespace delimited list, dropping
// empty items. "a.py, b.py c.py" yields three items.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
