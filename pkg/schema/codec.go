package schema

import (
	"bytes"
	"encoding/json"
	"math"
)

// Encode serializes a value of the generic data model. Non-finite numbers are
// written as the strings "NaN", "Infinity" and "-Infinity"; a Number schema
// with AllowNonFinite turns them back into numbers.
func Encode(v any) ([]byte, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(encodeNonFinite(n))
}

// Decode deserializes bytes produced by Encode into the generic data model.
// An empty input decodes to nil.
func Decode(b []byte) (any, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, &Violation{Msg: "malformed payload: " + err.Error()}
	}
	return v, nil
}

func encodeNonFinite(v any) any {
	switch v := v.(type) {
	case float64:
		switch {
		case math.IsNaN(v):
			return nanString
		case math.IsInf(v, 1):
			return posInfString
		case math.IsInf(v, -1):
			return negInfString
		}
		return v
	case map[string]any:
		for k, e := range v {
			v[k] = encodeNonFinite(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = encodeNonFinite(e)
		}
		return v
	}
	return v
}

// Codec binds Encode and Decode to a schema, so that nothing that fails
// validation is ever written or read.
type Codec struct {
	Schema Schema
}

// Encode validates v and serializes the normalized result.
func (c Codec) Encode(v any) ([]byte, error) {
	valid, err := c.Schema.Validate(v)
	if err != nil {
		return nil, err
	}
	return Encode(valid)
}

// Decode deserializes b and validates the result.
func (c Codec) Decode(b []byte) (any, error) {
	v, err := Decode(b)
	if err != nil {
		return nil, err
	}
	return c.Schema.Validate(v)
}
