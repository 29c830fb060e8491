package core

import (
	"github.com/google/uuid"
	"gopkg.in/guregu/null.v4"
)

// scanTarget returns a nullable destination for one selected expression.
func scanTarget(e Expression) interface{} {
	switch x := e.(type) {
	case *Column:
		return targetFor(x.kind)
	case *Aliasing:
		return scanTarget(x.expr)
	case *Function:
		if x.name == "count" {
			return new(null.Int)
		}
	}
	return new(interface{})
}

func targetFor(k Kind) interface{} {
	if k.IsArray() {
		return new(interface{})
	}
	switch k {
	case String:
		return new(null.String)
	case Int:
		return new(null.Int)
	case Float:
		return new(null.Float)
	case Bool:
		return new(null.Bool)
	case Date, DateTime:
		return new(null.Time)
	case UUID:
		return new(uuid.NullUUID)
	default:
		return new(interface{})
	}
}

// scannedValue unwraps a destination filled by Scan. SQL NULL becomes nil.
func scannedValue(v interface{}) interface{} {
	switch x := v.(type) {
	case *null.String:
		if x.Valid {
			return x.String
		}
	case *null.Int:
		if x.Valid {
			return x.Int64
		}
	case *null.Float:
		if x.Valid {
			return x.Float64
		}
	case *null.Bool:
		if x.Valid {
			return x.Bool
		}
	case *null.Time:
		if x.Valid {
			return x.Time
		}
	case *uuid.NullUUID:
		if x.Valid {
			return x.UUID
		}
	case *interface{}:
		if b, ok := (*x).([]byte); ok {
			return string(b)
		}
		return *x
	}
	return nil
}
