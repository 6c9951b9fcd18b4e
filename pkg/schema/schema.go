// Package schema validates and (de)serializes component state.
//
// State is modelled as generic JSON-like data: map[string]any for objects,
// []any for arrays, float64 for numbers, string and bool. Validate accepts
// typed Go values too (structs, typed maps and slices, any numeric kind) and
// normalizes them into that form before checking them, so a validated value
// never aliases its input.
package schema

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Schema describes the shape of a value.
type Schema interface {
	// Validate checks v against the schema and returns the normalized value,
	// or a *Violation.
	Validate(v any) (any, error)

	check(v any, path []string) (any, error)
	missing(path []string) (any, error)
}

// Violation is returned when a value does not conform to a schema.
type Violation struct {
	// Path is the sequence of object keys and array indices leading to the
	// offending value. It is empty when the value itself is wrong.
	Path []string
	Msg  string
}

func (v *Violation) Error() string {
	if len(v.Path) == 0 {
		return v.Msg
	}
	return strings.Join(v.Path, ".") + ": " + v.Msg
}

func violation(path []string, format string, args ...any) *Violation {
	return &Violation{Path: append([]string(nil), path...), Msg: fmt.Sprintf(format, args...)}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Embedded by every schema to implement Optional and Default.
type base struct {
	optional   bool
	hasDefault bool
	def        any
}

func (b base) missing(path []string) (any, error) {
	if b.hasDefault {
		return normalize(b.def)
	}
	if b.optional {
		return nil, nil
	}
	return nil, violation(path, "required")
}

func validate(s Schema, v any) (any, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return s.missing(nil)
	}
	return s.check(n, nil)
}

// Field is a named member of an Object schema.
type Field struct {
	Name   string
	Schema Schema
}

// F is shorthand for constructing a Field.
func F(name string, s Schema) Field { return Field{name, s} }

// ObjectSchema validates string-keyed objects.
type ObjectSchema struct {
	base
	fields []Field
	strict bool
}

// Object returns a schema for an object with the given fields. Unknown keys
// are dropped unless Strict is called.
func Object(fields ...Field) ObjectSchema { return ObjectSchema{fields: fields} }

// Strict makes unknown keys a violation.
func (o ObjectSchema) Strict() ObjectSchema { o.strict = true; return o }

// Optional allows the object to be absent.
func (o ObjectSchema) Optional() ObjectSchema { o.optional = true; return o }

// Default substitutes def when the object is absent.
func (o ObjectSchema) Default(def any) ObjectSchema {
	o.hasDefault, o.def = true, def
	return o
}

// Extend returns a copy of the schema with additional fields; fields with an
// existing name replace the old definition.
func (o ObjectSchema) Extend(fields ...Field) ObjectSchema {
	merged := append([]Field(nil), o.fields...)
outer:
	for _, f := range fields {
		for i := range merged {
			if merged[i].Name == f.Name {
				merged[i] = f
				continue outer
			}
		}
		merged = append(merged, f)
	}
	o.fields = merged
	return o
}

// Fields returns the declared fields in declaration order.
func (o ObjectSchema) Fields() []Field { return append([]Field(nil), o.fields...) }

func (o ObjectSchema) Validate(v any) (any, error) { return validate(o, v) }

func (o ObjectSchema) check(v any, path []string) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, violation(path, "expected object, got %s", typeName(v))
	}
	out := make(map[string]any, len(o.fields))
	known := make(map[string]struct{}, len(o.fields))
	for _, f := range o.fields {
		known[f.Name] = struct{}{}
		fpath := append(path, f.Name)
		fv, present := m[f.Name]
		var (
			res any
			err error
		)
		if !present || fv == nil {
			res, err = f.Schema.missing(fpath)
		} else {
			res, err = f.Schema.check(fv, fpath)
		}
		if err != nil {
			return nil, err
		}
		if res != nil {
			out[f.Name] = res
		}
	}
	if o.strict {
		var unknown []string
		for k := range m {
			if _, ok := known[k]; !ok {
				unknown = append(unknown, k)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return nil, violation(append(path, unknown[0]), "unknown field")
		}
	}
	return out, nil
}

// StringSchema validates strings.
type StringSchema struct {
	base
	enum []string
	min  int
}

// String returns a schema for strings.
func String() StringSchema { return StringSchema{} }

// Enum returns a schema for strings restricted to the given values.
func Enum(values ...string) StringSchema { return StringSchema{enum: values} }

// Optional allows the string to be absent.
func (s StringSchema) Optional() StringSchema { s.optional = true; return s }

// Default substitutes def when the string is absent.
func (s StringSchema) Default(def string) StringSchema {
	s.hasDefault, s.def = true, def
	return s
}

// NonEmpty rejects the empty string.
func (s StringSchema) NonEmpty() StringSchema { s.min = 1; return s }

func (s StringSchema) Validate(v any) (any, error) { return validate(s, v) }

func (s StringSchema) check(v any, path []string) (any, error) {
	str, ok := v.(string)
	if !ok {
		return nil, violation(path, "expected string, got %s", typeName(v))
	}
	if len(str) < s.min {
		return nil, violation(path, "must not be empty")
	}
	if len(s.enum) > 0 {
		for _, e := range s.enum {
			if e == str {
				return str, nil
			}
		}
		return nil, violation(path, "expected one of %s, got %q", strings.Join(s.enum, "|"), str)
	}
	return str, nil
}

// BoolSchema validates booleans.
type BoolSchema struct{ base }

// Bool returns a schema for booleans.
func Bool() BoolSchema { return BoolSchema{} }

// Optional allows the boolean to be absent.
func (b BoolSchema) Optional() BoolSchema { b.optional = true; return b }

// Default substitutes def when the boolean is absent.
func (b BoolSchema) Default(def bool) BoolSchema {
	b.hasDefault, b.def = true, def
	return b
}

func (b BoolSchema) Validate(v any) (any, error) { return validate(b, v) }

func (b BoolSchema) check(v any, path []string) (any, error) {
	if _, ok := v.(bool); !ok {
		return nil, violation(path, "expected boolean, got %s", typeName(v))
	}
	return v, nil
}

// ArraySchema validates arrays whose elements share one schema.
type ArraySchema struct {
	base
	item Schema
}

// Array returns a schema for arrays of item.
func Array(item Schema) ArraySchema { return ArraySchema{item: item} }

// Optional allows the array to be absent.
func (a ArraySchema) Optional() ArraySchema { a.optional = true; return a }

// Default substitutes def when the array is absent.
func (a ArraySchema) Default(def any) ArraySchema {
	a.hasDefault, a.def = true, def
	return a
}

func (a ArraySchema) Validate(v any) (any, error) { return validate(a, v) }

func (a ArraySchema) check(v any, path []string) (any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, violation(path, "expected array, got %s", typeName(v))
	}
	out := make([]any, len(arr))
	for i, e := range arr {
		epath := append(path, fmt.Sprint(i))
		var err error
		if e == nil {
			out[i], err = a.item.missing(epath)
		} else {
			out[i], err = a.item.check(e, epath)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RecordSchema validates objects with arbitrary keys and uniform values.
type RecordSchema struct {
	base
	value Schema
}

// Record returns a schema for string-keyed maps whose values match value.
func Record(value Schema) RecordSchema { return RecordSchema{value: value} }

// Optional allows the record to be absent.
func (r RecordSchema) Optional() RecordSchema { r.optional = true; return r }

func (r RecordSchema) Validate(v any) (any, error) { return validate(r, v) }

func (r RecordSchema) check(v any, path []string) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, violation(path, "expected object, got %s", typeName(v))
	}
	out := make(map[string]any, len(m))
	for k, e := range m {
		if e == nil {
			continue
		}
		res, err := r.value.check(e, append(path, k))
		if err != nil {
			return nil, err
		}
		out[k] = res
	}
	return out, nil
}

// AnySchema accepts every value, normalized, except non-finite numbers.
type AnySchema struct{ base }

// Any returns a schema that accepts every value without NaN or ±Inf in it.
// Absent values are allowed.
func Any() AnySchema { return AnySchema{base{optional: true}} }

func (a AnySchema) Validate(v any) (any, error) { return validate(a, v) }

func (a AnySchema) check(v any, path []string) (any, error) {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			res, err := a.check(e, append(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = res
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			res, err := a.check(e, append(path, fmt.Sprint(i)))
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		return out, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, violation(path, "non-finite number %v not allowed", v)
		}
	}
	return v, nil
}
