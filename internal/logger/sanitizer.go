package logger

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	placeholderRe   = regexp.MustCompile(`\?|\$\d+|%s`)
	comparisonRe    = regexp.MustCompile(`(?i)([\w."` + "`" + `]+)\s*(=|<>|!=|<=|>=|<|>|\blike)\s*$`)
	insertColumnsRe = regexp.MustCompile(`(?is)^\s*insert\s+into\s+\S+\s*\(([^)]*)\)\s*values\b`)
)

// Sanitizer masks bound parameters of sensitive columns before statements are logged.
// A parameter is attributed to a column when it is compared to it ("password=?") or sits
// at that column's position in an INSERT value list. Parameters that cannot be
// attributed are masked whenever the statement mentions a sensitive column.
type Sanitizer struct {
	sensitiveFields []string
	maskValue       string
	patterns        []*regexp.Regexp
}

// NewSanitizer creates a new sanitizer with the specified sensitive field names.
// If no fields are provided, a default set of common sensitive field names is used.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = []string{
			"password", "passwd", "pwd",
			"token", "api_key", "apikey", "api_token",
			"secret", "auth", "authorization",
			"credit_card", "card_number", "cvv", "cvc",
			"ssn", "social_security",
			"private_key", "priv_key",
		}
	}

	patterns := make([]*regexp.Regexp, 0, len(sensitiveFields))
	for _, field := range sensitiveFields {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(field)+`\b`))
	}

	return &Sanitizer{
		sensitiveFields: sensitiveFields,
		maskValue:       "***REDACTED***",
		patterns:        patterns,
	}
}

// MaskParams returns params with sensitive values replaced by the mask value.
// The original slice is not modified.
func (s *Sanitizer) MaskParams(sql string, params []interface{}) []interface{} {
	if len(params) == 0 || !s.containsSensitivePattern(sql) {
		return params
	}

	columns := paramColumns(sql, len(params))
	masked := make([]interface{}, len(params))
	for i, param := range params {
		col := columns[i]
		if col == "" || s.isSensitiveColumn(col) {
			masked[i] = s.maskValue
		} else {
			masked[i] = param
		}
	}
	return masked
}

func (s *Sanitizer) isSensitiveColumn(col string) bool {
	for _, f := range s.sensitiveFields {
		if strings.EqualFold(col, f) {
			return true
		}
	}
	return false
}

func (s *Sanitizer) containsSensitivePattern(sql string) bool {
	for _, pattern := range s.patterns {
		if pattern.MatchString(sql) {
			return true
		}
	}
	return false
}

// paramColumns attributes each of the first n placeholders to a column name, "" when unknown.
func paramColumns(sql string, n int) []string {
	cols := make([]string, n)
	locs := placeholderRe.FindAllStringIndex(sql, -1)

	var insertCols []string
	valuesAt := -1
	if m := insertColumnsRe.FindStringSubmatchIndex(sql); m != nil {
		for _, c := range strings.Split(sql[m[2]:m[3]], ",") {
			insertCols = append(insertCols, cleanIdent(c))
		}
		valuesAt = m[1]
	}

	k := 0
	for i, loc := range locs {
		if i >= n {
			break
		}
		if valuesAt >= 0 && loc[0] > valuesAt && len(insertCols) > 0 {
			cols[i] = insertCols[k%len(insertCols)]
			k++
			continue
		}
		if m := comparisonRe.FindStringSubmatch(sql[:loc[0]]); m != nil {
			cols[i] = cleanIdent(m[1])
		}
	}
	return cols
}

func cleanIdent(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	return strings.Trim(s, "\"`")
}

// FormatParams converts parameters to a safe string representation for logging.
// Sensitive values should be masked using MaskParams before calling this.
func (s *Sanitizer) FormatParams(params []interface{}) string {
	if len(params) == 0 {
		return "[]"
	}

	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = s.formatValue(p)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

// formatValue formats a single parameter value, truncating long values.
func (s *Sanitizer) formatValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}

	str := fmt.Sprintf("%v", v)

	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}

	return str
}
