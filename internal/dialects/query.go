package dialects

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Registration and reference errors.
var (
	// ErrAlreadyRegistered is returned when a table is registered twice in one query scope.
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrAmbiguousTable is returned when a column's table was joined more than once.
	ErrAmbiguousTable = errors.New("table is joined more than once, the column reference is ambiguous")
	// ErrTableNotInQuery is returned when a column's table is absent from a query that aliases its tables.
	ErrTableNotInQuery = errors.New("table is not part of the query")
)

// Aliased is anything that can be given a per-query alias, usually a table.
type Aliased interface {
	DBName() string
}

// Dialect is the render-time state of one query: the placeholder counter and the
// table alias registrations. It is created by Backend.ForQuery and is not safe for
// concurrent use.
type Dialect struct {
	*Backend
	parent     *Dialect
	counter    *int
	seen       map[string]struct{}
	registered map[Aliased]string
	via        map[Aliased][]string
}

// ForQuery returns a fresh Dialect with the counter at zero and no aliases.
func (b *Backend) ForQuery() *Dialect {
	return &Dialect{
		Backend:    b,
		counter:    new(int),
		seen:       make(map[string]struct{}),
		registered: make(map[Aliased]string),
		via:        make(map[Aliased][]string),
	}
}

// ForQuery resets the per-query state while keeping the backend identity.
func (d *Dialect) ForQuery() *Dialect {
	return d.Backend.ForQuery()
}

// ForInnerQuery derives the Dialect for a sub-query. Placeholders keep counting on the
// parent's counter and aliases registered by enclosing queries remain visible to
// Reference, while tables registered inside the sub-query get their own aliases.
func (d *Dialect) ForInnerQuery() *Dialect {
	return &Dialect{
		Backend:    d.Backend,
		parent:     d,
		counter:    d.counter,
		seen:       make(map[string]struct{}),
		registered: make(map[Aliased]string),
		via:        make(map[Aliased][]string),
	}
}

// Arg returns the next placeholder and advances the counter.
func (d *Dialect) Arg() string {
	*d.counter++
	return d.Placeholder(*d.counter)
}

// ArgCount returns the number of placeholders emitted so far.
func (d *Dialect) ArgCount() int { return *d.counter }

// Register assigns an alias to a table for the rest of this query.
func (d *Dialect) Register(tbl Aliased) (string, error) {
	if _, ok := d.registered[tbl]; ok {
		return "", ErrAlreadyRegistered
	}
	alias := d.genName(tbl.DBName())
	d.registered[tbl] = alias
	return alias, nil
}

// RegisterAs registers tbl under an explicit alias, e.g. an aliased sub-query.
func (d *Dialect) RegisterAs(tbl Aliased, alias string) error {
	if _, ok := d.registered[tbl]; ok {
		return ErrAlreadyRegistered
	}
	if d.taken(alias) {
		return fmt.Errorf("%w: alias %s", ErrAlreadyRegistered, alias)
	}
	d.seen[alias] = struct{}{}
	d.registered[tbl] = alias
	return nil
}

// RegisterVia registers key, a stand-in such as one node of a join tree, and makes its
// alias reachable from tbl as long as tbl has no other registration in the scope.
func (d *Dialect) RegisterVia(key, tbl Aliased) (string, error) {
	alias, err := d.Register(key)
	if err != nil {
		return "", err
	}
	d.via[tbl] = append(d.via[tbl], alias)
	return alias, nil
}

// Alias returns the alias of tbl in this scope or any enclosing scope.
func (d *Dialect) Alias(tbl Aliased) (string, bool) {
	alias, ok, err := d.lookup(tbl)
	return alias, ok && err == nil
}

// lookup searches the scopes from the innermost out. A direct registration wins over
// aliases reached through RegisterVia; more than one of those is ambiguous.
func (d *Dialect) lookup(tbl Aliased) (string, bool, error) {
	for s := d; s != nil; s = s.parent {
		if alias, ok := s.registered[tbl]; ok {
			return alias, true, nil
		}
		switch aliases := s.via[tbl]; len(aliases) {
		case 0:
		case 1:
			return aliases[0], true, nil
		default:
			return "", false, fmt.Errorf("%w: %s", ErrAmbiguousTable, tbl.DBName())
		}
	}
	return "", false, nil
}

// HasRegistrations reports whether any table has been aliased in this or an enclosing scope.
func (d *Dialect) HasRegistrations() bool {
	for s := d; s != nil; s = s.parent {
		if len(s.registered) > 0 {
			return true
		}
	}
	return false
}

// Reference renders a column reference. Once any table is registered every reference
// goes through its table's alias, and a table without one is an error.
func (d *Dialect) Reference(tbl Aliased, column string) (string, error) {
	if tbl == nil {
		return d.Term(column), nil
	}
	alias, ok, err := d.lookup(tbl)
	if err != nil {
		return "", err
	}
	if ok {
		return d.Term(alias) + "." + d.Term(column), nil
	}
	if d.HasRegistrations() {
		return "", fmt.Errorf("%w: %s", ErrTableNotInQuery, tbl.DBName())
	}
	return d.Term(column), nil
}

// genName builds "<first letters of each _-separated word><n>", skipping aliases already
// taken here or by an enclosing scope.
func (d *Dialect) genName(name string) string {
	var base strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part != "" {
			base.WriteByte(part[0])
		}
	}
	for i := 1; ; i++ {
		proposal := base.String() + strconv.Itoa(i)
		if d.taken(proposal) {
			continue
		}
		d.seen[proposal] = struct{}{}
		return proposal
	}
}

func (d *Dialect) taken(alias string) bool {
	for s := d; s != nil; s = s.parent {
		if _, ok := s.seen[alias]; ok {
			return true
		}
	}
	return false
}
