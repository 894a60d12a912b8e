package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/zclconf/go-cty/cty"
)

// Definition is an immutable pipeline definition: declared parameters,
// workspace slots, the ordered task nodes and an optional finalizer.
type Definition struct {
	Name       string
	Params     []*ParamSpec
	Workspaces []*WorkspaceSpec
	Tasks      []*TaskNodeSpec
	Finally    *TaskNodeSpec

	// Source is the file the definition was loaded from, if any.
	Source string
}

// Param looks up a declared parameter by name.
func (d *Definition) Param(name string) (*ParamSpec, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// HasWorkspace reports whether the pipeline declares the named workspace slot.
func (d *Definition) HasWorkspace(name string) bool {
	for _, w := range d.Workspaces {
		if w.Name == name {
			return true
		}
	}
	return false
}

// ParamType is the declared type of a pipeline parameter.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamArray  ParamType = "array"
	ParamObject ParamType = "object"
)

// ParseParamType validates a type keyword. An empty keyword means string.
func ParseParamType(s string) (ParamType, error) {
	switch ParamType(strings.ToLower(strings.TrimSpace(s))) {
	case "", ParamString:
		return ParamString, nil
	case ParamArray:
		return ParamArray, nil
	case ParamObject:
		return ParamObject, nil
	default:
		return "", fmt.Errorf("%w: unknown parameter type %q (want string, array or object)", ErrConfiguration, s)
	}
}

// Accepts reports whether v is a value of this declared type.
func (t ParamType) Accepts(v cty.Value) bool {
	if v.IsNull() || !v.IsKnown() {
		return false
	}
	ty := v.Type()
	switch t {
	case ParamString:
		return ty == cty.String
	case ParamArray:
		return ty.IsListType() || ty.IsTupleType() || ty.IsSetType()
	case ParamObject:
		return ty.IsObjectType() || ty.IsMapType()
	}
	return false
}

// ParamSpec declares one pipeline parameter.
type ParamSpec struct {
	Name        string
	Type        ParamType
	Description string
	// Default is used when a run does not supply the parameter. Nil means required.
	Default *cty.Value
}

// WorkspaceSpec declares a named workspace slot. It carries no storage detail;
// concrete locations are supplied per run.
type WorkspaceSpec struct {
	Name        string
	Description string
}

// TaskRef identifies an external task implementation by name and version
// constraint.
type TaskRef struct {
	Name    string
	Version string
}

// String renders the reference as "name@version", or just the name when no
// version was given.
func (r TaskRef) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + "@" + r.Version
}

// ParseTaskRef parses "name" or "name@version".
func ParseTaskRef(s string) (TaskRef, error) {
	name, version, _ := strings.Cut(strings.TrimSpace(s), "@")
	if name == "" {
		return TaskRef{}, fmt.Errorf("%w: empty task reference %q", ErrConfiguration, s)
	}
	return TaskRef{Name: name, Version: version}, nil
}

// TaskNodeSpec is the declaration of one schedulable node.
type TaskNodeSpec struct {
	Name     string
	Ref      TaskRef
	RunAfter []string
	// Workspaces maps the task's local slot name to a pipeline workspace name.
	Workspaces map[string]string
	// Params maps the task's local parameter name to a value expression:
	// a literal, or a string containing $(...) back-references.
	Params map[string]cty.Value
	// Timeout bounds a single execution of the node. Zero means unbounded.
	Timeout time.Duration
	// Optional nodes do not fail the pipeline when they fail or are skipped.
	Optional bool
}
