package params

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/pipegrid/internal/config"
)

var (
	ErrMissingParameter    = errors.New("missing parameter")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrUnknownReference    = errors.New("unknown reference")
	ErrUndeclaredParameter = errors.New("undeclared parameter")
)

// ParamError reports a failure to resolve or validate a parameter. It matches
// both Kind and config.ErrConfiguration with errors.Is.
type ParamError struct {
	Kind error
	// Node is the task whose parameters were being resolved, if any.
	Node string
	// Param is the task-local parameter name, if any.
	Param string
	// Ref is the pipeline parameter or reference path involved.
	Ref    string
	Detail string
}

func (e *ParamError) Error() string {
	var b strings.Builder
	if e.Node != "" {
		fmt.Fprintf(&b, "node '%s': ", e.Node)
	}
	if e.Param != "" {
		fmt.Fprintf(&b, "param '%s': ", e.Param)
	}
	b.WriteString(e.Kind.Error())
	if e.Ref != "" {
		fmt.Fprintf(&b, " '%s'", e.Ref)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ParamError) Unwrap() []error {
	return []error{e.Kind, config.ErrConfiguration}
}
