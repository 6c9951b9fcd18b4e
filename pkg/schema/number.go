package schema

import "math"

// Strings used to carry non-finite numbers through JSON.
const (
	nanString    = "NaN"
	posInfString = "Infinity"
	negInfString = "-Infinity"
)

// NumberSchema validates numbers. All numeric kinds normalize to float64.
type NumberSchema struct {
	base
	integer        bool
	allowNonFinite bool
	min, max       *float64
}

// Number returns a schema for finite numbers.
func Number() NumberSchema { return NumberSchema{} }

// Int requires the number to be integral.
func (n NumberSchema) Int() NumberSchema { n.integer = true; return n }

// Min sets an inclusive lower bound.
func (n NumberSchema) Min(min float64) NumberSchema { n.min = &min; return n }

// Max sets an inclusive upper bound.
func (n NumberSchema) Max(max float64) NumberSchema { n.max = &max; return n }

// AllowNonFinite accepts NaN and ±Inf, both as float64 values and as the
// strings "NaN", "Infinity" and "-Infinity" produced by Encode.
func (n NumberSchema) AllowNonFinite() NumberSchema { n.allowNonFinite = true; return n }

// Optional allows the number to be absent.
func (n NumberSchema) Optional() NumberSchema { n.optional = true; return n }

// Default substitutes def when the number is absent.
func (n NumberSchema) Default(def float64) NumberSchema {
	n.hasDefault, n.def = true, def
	return n
}

func (n NumberSchema) Validate(v any) (any, error) { return validate(n, v) }

func (n NumberSchema) check(v any, path []string) (any, error) {
	var f float64
	switch v := v.(type) {
	case float64:
		f = v
	case string:
		if !n.allowNonFinite {
			return nil, violation(path, "expected number, got string")
		}
		switch v {
		case nanString:
			f = math.NaN()
		case posInfString:
			f = math.Inf(1)
		case negInfString:
			f = math.Inf(-1)
		default:
			return nil, violation(path, "expected number, got string")
		}
	default:
		return nil, violation(path, "expected number, got %s", typeName(v))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		if !n.allowNonFinite {
			return nil, violation(path, "non-finite number %v not allowed", f)
		}
		return f, nil
	}
	if n.integer && f != math.Trunc(f) {
		return nil, violation(path, "expected integer, got %v", f)
	}
	if n.min != nil && f < *n.min {
		return nil, violation(path, "must be >= %v, got %v", *n.min, f)
	}
	if n.max != nil && f > *n.max {
		return nil, violation(path, "must be <= %v, got %v", *n.max, f)
	}
	return f, nil
}
