package workspace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/pipegrid/internal/config"
)

var (
	ErrUnboundWorkspace     = errors.New("unbound workspace")
	ErrInvalidLocation      = errors.New("invalid workspace location")
	ErrUnavailableWorkspace = errors.New("workspace unavailable")
)

// WorkspaceError reports a failure to bind one slot. It matches both Kind and
// config.ErrConfiguration with errors.Is.
type WorkspaceError struct {
	Kind      error
	Node      string
	Slot      string
	Workspace string
	Location  string
	Err       error
}

func (e *WorkspaceError) Error() string {
	var b strings.Builder
	if e.Node != "" {
		fmt.Fprintf(&b, "node '%s': ", e.Node)
	}
	if e.Slot != "" {
		fmt.Fprintf(&b, "slot '%s': ", e.Slot)
	}
	fmt.Fprintf(&b, "%v '%s'", e.Kind, e.Workspace)
	if e.Location != "" {
		fmt.Fprintf(&b, " at %s", e.Location)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *WorkspaceError) Unwrap() []error {
	errs := []error{e.Kind, config.ErrConfiguration}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
