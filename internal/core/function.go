package core

import (
	"fmt"

	"github.com/coregx/dqo/internal/dialects"
)

// Function is a SQL function reference, optionally called with arguments.
// Functions are immutable, Call returns a new value.
//
// Example:
//
//	dqo.Fn("lower").Call(Users.C("email"))   // lower(email)
//	dqo.Now                                   // NOW()
type Function struct {
	operand

	name   string
	args   []interface{}
	called bool
}

// Fn returns an uncalled function reference. It renders as the bare name until Call is used.
func Fn(name string) *Function {
	f := &Function{name: name}
	f.self = f
	return f
}

// Call returns the function applied to args. Expression arguments render inline,
// everything else is bound.
func (f *Function) Call(args ...interface{}) *Function {
	c := &Function{name: f.name, args: args, called: true}
	c.self = c
	return c
}

// Name returns the function name.
func (f *Function) Name() string { return f.name }

// Build renders "name" or "name(arg,...)".
func (f *Function) Build(d *dialects.Dialect, st *Statement) {
	st.Write(f.name)
	if !f.called {
		return
	}
	st.Write("(")
	for i, arg := range f.args {
		if i > 0 {
			st.Write(",")
		}
		buildValue(d, st, arg)
	}
	st.Write(")")
}

// As aliases the function in a select list.
func (f *Function) As(alias string) *Aliasing {
	return &Aliasing{expr: f, alias: alias}
}

// Count builds count(...). A bare 1 or "*" is written literally instead of being bound.
func Count(args ...interface{}) *Function {
	wrapped := make([]interface{}, len(args))
	for i, a := range args {
		switch a {
		case 1, "*":
			wrapped[i] = Raw(fmt.Sprint(a))
		default:
			wrapped[i] = a
		}
	}
	return Fn("count").Call(wrapped...)
}

// CountAll is count(1).
var CountAll = Count(1)

// Now is the server clock, NOW().
var Now = Fn("NOW").Call()
