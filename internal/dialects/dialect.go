// Package dialects provides the backend identities (keyword sets, identifier quoting,
// placeholder styles) for the generic, PostgreSQL, SQLite and MySQL dialects, plus the
// per-query Dialect state that allocates placeholders and table aliases while rendering.
package dialects

import (
	"fmt"
	"strings"
	"sync"
)

// ParamStyle selects how positional placeholders are written.
type ParamStyle int

const (
	// Question renders every placeholder as "?".
	Question ParamStyle = iota
	// Dollar renders numbered placeholders: $1, $2, ...
	Dollar
	// Format renders every placeholder as "%s".
	Format
)

// String returns the style name.
func (s ParamStyle) String() string {
	switch s {
	case Dollar:
		return "dollar"
	case Format:
		return "format"
	default:
		return "question"
	}
}

// ParseParamStyle parses a style name as produced by ParamStyle.String.
func ParseParamStyle(s string) (ParamStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "question", "qmark", "?":
		return Question, nil
	case "dollar", "numeric", "$":
		return Dollar, nil
	case "format", "%s":
		return Format, nil
	}
	return Question, fmt.Errorf("dialects: unknown param style %q", s)
}

// Backend is the immutable identity of a database dialect.
type Backend struct {
	name      string
	keywords  map[string]struct{}
	quote     byte
	style     ParamStyle
	returning bool
	version   string
}

func newBackend(name string, keywords map[string]struct{}, quote byte, style ParamStyle, returning bool) *Backend {
	return &Backend{
		name:      name,
		keywords:  keywords,
		quote:     quote,
		style:     style,
		returning: returning,
	}
}

// Name returns the dialect family name ("generic", "postgres", "sqlite", "mysql").
func (b *Backend) Name() string { return b.name }

// ParamStyle returns the placeholder style.
func (b *Backend) ParamStyle() ParamStyle { return b.style }

// Version returns the server version the backend was configured with, if any.
func (b *Backend) Version() string { return b.version }

// SupportsReturning reports whether INSERT ... RETURNING is available.
func (b *Backend) SupportsReturning() bool { return b.returning }

// IsKeyword reports whether the lowercased name is reserved for this backend.
func (b *Backend) IsKeyword(name string) bool {
	_, ok := b.keywords[strings.ToLower(name)]
	return ok
}

// QuoteIdentifier unconditionally quotes an identifier, doubling embedded quote characters.
func (b *Backend) QuoteIdentifier(s string) string {
	q := string(b.quote)
	return q + strings.ReplaceAll(s, q, q+q) + q
}

// Placeholder returns the n-th (1-based) placeholder for this backend.
func (b *Backend) Placeholder(n int) string {
	switch b.style {
	case Dollar:
		return fmt.Sprintf("$%d", n)
	case Format:
		return "%s"
	default:
		return "?"
	}
}

// WithParamStyle returns a copy of the backend using a different placeholder style,
// e.g. a Postgres backend for a driver that interpolates "%s" client-side.
func (b *Backend) WithParamStyle(style ParamStyle) *Backend {
	c := *b
	c.style = style
	return &c
}

// WithVersion returns a copy of the backend tagged with a server version.
func (b *Backend) WithVersion(version string) *Backend {
	c := *b
	c.version = version
	return &c
}

// Is reports whether both backends belong to the same dialect family.
func (b *Backend) Is(other *Backend) bool {
	return b != nil && other != nil && b.name == other.name
}

// Term lowercases a name, strips existing quoting and quotes it only if it is a keyword.
func (b *Backend) Term(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, `"`, "")
	if b.quote != '"' {
		s = strings.ReplaceAll(s, string(b.quote), "")
	}
	if _, ok := b.keywords[s]; !ok {
		return s
	}
	return string(b.quote) + s + string(b.quote)
}

// String implements fmt.Stringer.
func (b *Backend) String() string {
	if b.version != "" {
		return b.name + "(" + b.version + ")"
	}
	return b.name
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Backend)
)

// Register registers a backend under a name (typically a database/sql driver name).
func Register(name string, b *Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = b
}

// Lookup returns the backend registered under name.
func Lookup(name string) (*Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[strings.ToLower(name)]
	return b, ok
}

// MustLookup is like Lookup but panics when the name is unknown.
func MustLookup(name string) *Backend {
	b, ok := Lookup(name)
	if !ok {
		panic("unsupported dialect: " + name)
	}
	return b
}
