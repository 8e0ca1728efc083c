// Package params resolves benchmark parameters from a flat key/value
// configuration into a typed, immutable parameter set. Resolution never
// fails: unset or malformed values fall back to the documented default.
package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Kind is the declared type of a parameter.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindChoice
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindChoice:
		return "choice"
	default:
		return "unknown"
	}
}

// Value is a resolved, typed parameter value. Only the field matching Kind
// is meaningful.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
}

// Any returns the value as the Go type matching its kind.
func (v Value) Any() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	default:
		return v.Str
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return v.Str
	}
}

// Param declares one recognized parameter.
type Param struct {
	// Name is the key used when the parameter is echoed into a report.
	Name string
	// Key is the configuration key looked up in a Source.
	Key  string
	Kind Kind
	Doc  string

	Default Value
	// DefaultFrom names an earlier parameter whose resolved value is used
	// as this parameter's default.
	DefaultFrom string

	// Choices is the legal set for KindChoice, in canonical spelling.
	Choices []string
	// Min is the inclusive lower bound for KindInt when HasMin is set.
	Min    int64
	HasMin bool
	// Max is the inclusive upper bound for KindInt when HasMax is set.
	Max    int64
	HasMax bool
}

// String declares a free-form string parameter.
func String(name, key, def, doc string) Param {
	return Param{
		Name:    name,
		Key:     key,
		Kind:    KindString,
		Doc:     doc,
		Default: Value{Kind: KindString, Str: def},
	}
}

// Int declares an unrestricted integer parameter.
func Int(name, key string, def int64, doc string) Param {
	return Param{
		Name:    name,
		Key:     key,
		Kind:    KindInt,
		Doc:     doc,
		Default: Value{Kind: KindInt, Int: def},
	}
}

// PositiveInt declares an integer parameter that must be >= 1.
func PositiveInt(name, key string, def int64, doc string) Param {
	p := Int(name, key, def, doc)
	p.Min, p.HasMin = 1, true

	return p
}

// NonNegativeInt declares an integer parameter that must be >= 0.
func NonNegativeInt(name, key string, def int64, doc string) Param {
	p := Int(name, key, def, doc)
	p.Min, p.HasMin = 0, true

	return p
}

// Float declares a floating point parameter.
func Float(name, key string, def float64, doc string) Param {
	return Param{
		Name:    name,
		Key:     key,
		Kind:    KindFloat,
		Doc:     doc,
		Default: Value{Kind: KindFloat, Float: def},
	}
}

// Choice declares an enumerated parameter. def must be one of choices.
func Choice(name, key, def, doc string, choices ...string) Param {
	return Param{
		Name:    name,
		Key:     key,
		Kind:    KindChoice,
		Doc:     doc,
		Default: Value{Kind: KindChoice, Str: def},
		Choices: choices,
	}
}

// WithDefaultFrom makes p default to the resolved value of another
// parameter instead of its own static default.
func (p Param) WithDefaultFrom(name string) Param {
	p.DefaultFrom = name

	return p
}

// WithMax bounds an integer parameter from above.
func (p Param) WithMax(limit int64) Param {
	p.Max, p.HasMax = limit, true

	return p
}

// parse converts raw into a typed value, enforcing the declared kind,
// bounds and legal set.
func (p Param) parse(raw string) (Value, error) {
	raw = strings.TrimSpace(raw)

	switch p.Kind {
	case KindString:
		return Value{Kind: KindString, Str: raw}, nil

	case KindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("not an integer: %q", raw)
		}

		if p.HasMin && n < p.Min {
			return Value{}, fmt.Errorf("%d is below minimum %d", n, p.Min)
		}

		if p.HasMax && n > p.Max {
			return Value{}, fmt.Errorf("%d is above maximum %d", n, p.Max)
		}

		return Value{Kind: KindInt, Int: n}, nil

	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("not a number: %q", raw)
		}

		// Reports are JSON, which has no encoding for these.
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, fmt.Errorf("not a finite number: %q", raw)
		}

		return Value{Kind: KindFloat, Float: f}, nil

	case KindChoice:
		choice, ok := lo.Find(p.Choices, func(c string) bool {
			return strings.EqualFold(c, raw)
		})
		if !ok {
			return Value{}, fmt.Errorf(
				"%q is not one of %s", raw, strings.Join(p.Choices, ", "),
			)
		}

		return Value{Kind: KindChoice, Str: choice}, nil

	default:
		return Value{}, fmt.Errorf("unknown kind %d", p.Kind)
	}
}
