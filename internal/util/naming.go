package util

import (
	"regexp"
	"strings"

	"github.com/serenize/snaker"
)

var nonWord = regexp.MustCompile(`\W`)

// TableName converts a declared CamelCase table name to its database form.
//
//	Something      -> something
//	SomethingElse  -> something_else
//	HTTPLog        -> http_log
func TableName(declared string) string {
	if declared == "" {
		return ""
	}
	return snaker.CamelToSnake(declared)
}

// IndexName generates a deterministic index name for backends that require one:
// "<table>_<col1>_<col2>_idx", with every non-word character removed.
func IndexName(table string, columns []string, unique bool) string {
	parts := make([]string, 0, len(columns)+2)
	parts = append(parts, SanitizeIdentifier(table))
	for _, c := range columns {
		parts = append(parts, SanitizeIdentifier(c))
	}
	if unique {
		parts = append(parts, "key")
	} else {
		parts = append(parts, "idx")
	}
	return strings.Join(parts, "_")
}

// SanitizeIdentifier removes every character that is not a letter, digit or underscore.
func SanitizeIdentifier(ident string) string {
	return nonWord.ReplaceAllString(ident, "")
}
