package params

import (
	"fmt"
	"strings"

	"github.com/vk/pipegrid/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// ParseAssignments turns "name=value" pairs into run values. A value bound to
// a parameter declared as string is taken verbatim; otherwise it is decoded
// as JSON, falling back to a plain string when it is not valid JSON.
func ParseAssignments(def *config.Definition, pairs []string) (Values, error) {
	out := make(Values, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: parameter assignment %q must have the form name=value", config.ErrConfiguration, pair)
		}
		if p, declared := def.Param(name); declared && p.Type == config.ParamString {
			out[name] = cty.StringVal(raw)
			continue
		}
		if v, err := config.ValueFromJSON([]byte(raw)); err == nil {
			out[name] = v
		} else {
			out[name] = cty.StringVal(raw)
		}
	}
	return out, nil
}

// FromGo converts decoded JSON or YAML (a params file) into run values.
func FromGo(m map[string]any) (Values, error) {
	out := make(Values, len(m))
	for _, name := range sortedKeys(m) {
		v, err := config.ValueFromGo(m[name])
		if err != nil {
			return nil, fmt.Errorf("%w: parameter '%s': %v", config.ErrConfiguration, name, err)
		}
		out[name] = v
	}
	return out, nil
}

// Merge returns a new value set with later sets overriding earlier ones.
func Merge(sets ...Values) Values {
	out := Values{}
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}
