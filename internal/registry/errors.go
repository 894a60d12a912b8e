package registry

import (
	"errors"
	"fmt"

	"github.com/vk/pipegrid/internal/config"
)

var (
	ErrUnknownTask       = errors.New("unknown task")
	ErrNoMatchingVersion = errors.New("no registered version satisfies constraint")
	ErrInvalidConstraint = errors.New("invalid version constraint")
)

// RefError reports a task reference that cannot be resolved. It matches both
// Kind and config.ErrConfiguration with errors.Is.
type RefError struct {
	Kind error
	Node string
	Ref  config.TaskRef
	Err  error
}

func (e *RefError) Error() string {
	msg := fmt.Sprintf("%v '%s'", e.Kind, e.Ref)
	if e.Node != "" {
		msg = fmt.Sprintf("node '%s': %s", e.Node, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RefError) Unwrap() []error {
	return []error{e.Kind, config.ErrConfiguration}
}
