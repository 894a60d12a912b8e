package params

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/vk/pipegrid/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// tokenPattern matches one back-reference token, capturing its dotted path.
var tokenPattern = regexp.MustCompile(`\$\(([A-Za-z_][A-Za-z0-9_\-]*(?:\.[A-Za-z0-9_\-]+)*)\)`)

// Values holds the parameter values supplied for a run, by pipeline parameter name.
type Values map[string]cty.Value

// Context holds values addressable outside the params namespace, keyed by the
// full dotted path, e.g. "context.run.id" or "tasks.status".
type Context map[string]cty.Value

// Resolved is the parameter set handed to a task implementation, keyed by the
// task-local parameter name.
type Resolved map[string]cty.Value

// String returns a string parameter.
func (r Resolved) String(name string) (string, bool) {
	v, ok := r[name]
	if !ok || v.IsNull() || v.Type() != cty.String {
		return "", false
	}
	return v.AsString(), true
}

// Go returns a parameter converted to a plain Go value.
func (r Resolved) Go(name string) (any, bool, error) {
	v, ok := r[name]
	if !ok {
		return nil, false, nil
	}
	out, err := config.ValueToGo(v)
	return out, true, err
}

// Names returns the parameter names in sorted order.
func (r Resolved) Names() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Resolver binds a definition's declared parameters to one run's values.
type Resolver struct {
	def    *config.Definition
	values Values
	ctx    Context
}

// NewResolver validates values against the definition's declarations and
// returns a resolver for them. Every supplied value must name a declared
// parameter and match its declared type.
func NewResolver(def *config.Definition, values Values) (*Resolver, error) {
	if err := Validate(def, values); err != nil {
		return nil, err
	}
	return &Resolver{def: def, values: values, ctx: Context{}}, nil
}

// Validate checks supplied values and declared defaults against declared types.
func Validate(def *config.Definition, values Values) error {
	for _, name := range sortedKeys(values) {
		p, ok := def.Param(name)
		if !ok {
			return &ParamError{Kind: ErrUndeclaredParameter, Ref: name}
		}
		if !p.Type.Accepts(values[name]) {
			return mismatch(p, values[name], "")
		}
	}
	for _, p := range def.Params {
		if p.Default != nil && !p.Type.Accepts(*p.Default) {
			return &ParamError{Kind: ErrTypeMismatch, Ref: p.Name,
				Detail: fmt.Sprintf("default is %s, declared %s", p.Default.Type().FriendlyName(), p.Type)}
		}
	}
	return nil
}

// WithContext returns a copy of the resolver that additionally resolves the
// given context paths.
func (r *Resolver) WithContext(c Context) *Resolver {
	merged := make(Context, len(r.ctx)+len(c))
	for k, v := range r.ctx {
		merged[k] = v
	}
	for k, v := range c {
		merged[k] = v
	}
	return &Resolver{def: r.def, values: r.values, ctx: merged}
}

// Param returns the bound value of a pipeline parameter, falling back to its
// declared default.
func (r *Resolver) Param(name string) (cty.Value, error) {
	p, declared := r.def.Param(name)
	if v, ok := r.values[name]; ok {
		if declared && !p.Type.Accepts(v) {
			return cty.NilVal, mismatch(p, v, "")
		}
		return v, nil
	}
	if declared && p.Default != nil {
		return *p.Default, nil
	}
	return cty.NilVal, &ParamError{Kind: ErrMissingParameter, Ref: name}
}

// Resolve substitutes every parameter expression of spec. Parameters are
// visited in sorted order so the first error reported is deterministic.
func (r *Resolver) Resolve(spec *config.TaskNodeSpec) (Resolved, error) {
	out := make(Resolved, len(spec.Params))
	for _, name := range sortedKeys(spec.Params) {
		v, err := r.resolveValue(spec.Params[name])
		if err != nil {
			if perr, ok := err.(*ParamError); ok {
				perr.Node = spec.Name
				perr.Param = name
			}
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func (r *Resolver) resolveValue(expr cty.Value) (cty.Value, error) {
	if expr.IsNull() || !expr.IsKnown() || expr.Type() != cty.String {
		return expr, nil
	}
	s := expr.AsString()
	matches := tokenPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return expr, nil
	}

	// A lone token keeps the referenced value's type.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		return r.lookup(s[matches[0][2]:matches[0][3]])
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		path := s[m[2]:m[3]]
		v, err := r.lookup(path)
		if err != nil {
			return cty.NilVal, err
		}
		if v.IsNull() || v.Type() != cty.String {
			return cty.NilVal, &ParamError{Kind: ErrTypeMismatch, Ref: path,
				Detail: fmt.Sprintf("%s value cannot be embedded in a string", v.Type().FriendlyName())}
		}
		b.WriteString(v.AsString())
		last = m[1]
	}
	b.WriteString(s[last:])
	return cty.StringVal(b.String()), nil
}

func (r *Resolver) lookup(path string) (cty.Value, error) {
	parts := strings.Split(path, ".")
	if parts[0] != "params" {
		if v, ok := r.ctx[path]; ok {
			return v, nil
		}
		return cty.NilVal, &ParamError{Kind: ErrUnknownReference, Ref: path}
	}
	if len(parts) < 2 {
		return cty.NilVal, &ParamError{Kind: ErrUnknownReference, Ref: path}
	}

	v, err := r.Param(parts[1])
	if err != nil {
		return cty.NilVal, err
	}
	for _, key := range parts[2:] {
		ty := v.Type()
		switch {
		case ty.IsObjectType():
			if !ty.HasAttribute(key) {
				return cty.NilVal, &ParamError{Kind: ErrUnknownReference, Ref: path}
			}
			v = v.GetAttr(key)
		case ty.IsMapType():
			k := cty.StringVal(key)
			if !v.HasIndex(k).True() {
				return cty.NilVal, &ParamError{Kind: ErrUnknownReference, Ref: path}
			}
			v = v.Index(k)
		default:
			return cty.NilVal, &ParamError{Kind: ErrTypeMismatch, Ref: path,
				Detail: fmt.Sprintf("cannot select key %q from %s", key, ty.FriendlyName())}
		}
	}
	return v, nil
}

func mismatch(p *config.ParamSpec, v cty.Value, detail string) error {
	if detail == "" {
		got := "null"
		if !v.IsNull() {
			got = v.Type().FriendlyName()
		}
		detail = fmt.Sprintf("declared %s, got %s", p.Type, got)
	}
	return &ParamError{Kind: ErrTypeMismatch, Ref: p.Name, Detail: detail}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
