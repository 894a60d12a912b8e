package config

import (
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// ValueFromJSON decodes a JSON document into a cty.Value, inferring its type.
func ValueFromJSON(data []byte) (cty.Value, error) {
	ty, err := ctyjson.ImpliedType(data)
	if err != nil {
		return cty.NilVal, fmt.Errorf("inferring type of JSON value: %w", err)
	}
	val, err := ctyjson.Unmarshal(data, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("decoding JSON value: %w", err)
	}
	return val, nil
}

// ValueFromGo converts a plain Go value (as produced by encoding/json or
// yaml.v3 decoding into any) into a cty.Value.
func ValueFromGo(v any) (cty.Value, error) {
	data, err := json.Marshal(normalizeKeys(v))
	if err != nil {
		return cty.NilVal, fmt.Errorf("encoding value: %w", err)
	}
	return ValueFromJSON(data)
}

// normalizeKeys rewrites map[any]any (which encoding/json rejects) into
// map[string]any, recursively.
func normalizeKeys(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeKeys(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeKeys(val)
		}
		return out
	default:
		return v
	}
}

// ValueToGo converts a cty.Value to a plain Go value: string, float64, bool,
// map[string]any or []any. Unknown and null values become nil.
func ValueToGo(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if ty.IsPrimitiveType() {
		switch ty {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			f, _ := val.AsBigFloat().Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", ty.FriendlyName())
		}
	}
	if ty.IsObjectType() || ty.IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			goVal, err := ValueToGo(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = goVal
		}
		return out, nil
	}
	if ty.IsTupleType() || ty.IsListType() || ty.IsSetType() {
		out := []any{}
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			goVal, err := ValueToGo(v)
			if err != nil {
				return nil, err
			}
			out = append(out, goVal)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", ty.FriendlyName())
}

// ValueToJSON renders a cty.Value as compact JSON using its own type.
func ValueToJSON(val cty.Value) ([]byte, error) {
	return ctyjson.Marshal(val, val.Type())
}
