package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Converts v into the generic data model, deep-copying it. Values that have
// no JSON-like representation are reported as a *Violation.
func normalize(v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string, bool, float64:
		return v, nil
	case json.RawMessage:
		return Decode(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			ne, err := normalize(e)
			if err != nil {
				return nil, prefix(err, k)
			}
			out[k] = ne
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			ne, err := normalize(e)
			if err != nil {
				return nil, prefix(err, fmt.Sprint(i))
			}
			out[i] = ne
		}
		return out, nil
	}
	return normalizeReflect(reflect.ValueOf(v))
}

func normalizeReflect(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeReflect(rv.Elem())
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			e, err := normalizeReflect(rv.Index(i))
			if err != nil {
				return nil, prefix(err, fmt.Sprint(i))
			}
			out[i] = e
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, violation(nil, "unsupported map key type %s", rv.Type().Key())
		}
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			e, err := normalizeReflect(iter.Value())
			if err != nil {
				return nil, prefix(err, k)
			}
			out[k] = e
		}
		return out, nil
	case reflect.Struct:
		return normalizeStruct(rv)
	}
	return nil, violation(nil, "unsupported value of type %s", rv.Type())
}

// Struct fields are keyed by their json tag name, falling back to the Go
// field name. Fields tagged "-" and unexported fields are skipped, as are
// empty fields tagged omitempty.
func normalizeStruct(rv reflect.Value) (any, error) {
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		fv := rv.Field(i)
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}
		e, err := normalizeReflect(fv)
		if err != nil {
			return nil, prefix(err, name)
		}
		if e != nil {
			out[name] = e
		}
	}
	return out, nil
}

func prefix(err error, seg string) error {
	if v, ok := err.(*Violation); ok {
		return &Violation{Path: append([]string{seg}, v.Path...), Msg: v.Msg}
	}
	return err
}

func copyValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = copyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
