// This file translates decoded HCL blocks into the format-agnostic
// configuration model.

package hcl_adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

func (l *Loader) translate(ctx context.Context, root *fileRoot, fallbackName string) (*config.Definition, error) {
	def := &config.Definition{Name: fallbackName}

	switch len(root.Pipelines) {
	case 0:
	case 1:
		def.Name = root.Pipelines[0].Name
	default:
		return nil, fmt.Errorf("found %d pipeline blocks, at most one is allowed", len(root.Pipelines))
	}

	seen := make(map[string]bool)
	for _, p := range root.Params {
		if seen[p.Name] {
			return nil, fmt.Errorf("parameter '%s' is declared more than once", p.Name)
		}
		seen[p.Name] = true
		spec, err := translateParam(ctx, p)
		if err != nil {
			return nil, err
		}
		def.Params = append(def.Params, spec)
	}

	seen = make(map[string]bool)
	for _, w := range root.Workspaces {
		if seen[w.Name] {
			return nil, fmt.Errorf("workspace '%s' is declared more than once", w.Name)
		}
		seen[w.Name] = true
		def.Workspaces = append(def.Workspaces, &config.WorkspaceSpec{Name: w.Name, Description: w.Description})
	}

	for _, t := range root.Tasks {
		spec, err := translateTask(ctx, t)
		if err != nil {
			return nil, err
		}
		def.Tasks = append(def.Tasks, spec)
	}

	switch len(root.Finally) {
	case 0:
	case 1:
		spec, err := translateTask(ctx, root.Finally[0])
		if err != nil {
			return nil, err
		}
		if len(spec.RunAfter) > 0 {
			return nil, fmt.Errorf("finally '%s' cannot declare run_after, it always runs last", spec.Name)
		}
		def.Finally = spec
	default:
		return nil, fmt.Errorf("found %d finally blocks, at most one is allowed", len(root.Finally))
	}
	return def, nil
}

func translateParam(ctx context.Context, p *paramBlock) (*config.ParamSpec, error) {
	typ, err := paramTypeFromExpr(ctx, p.Type)
	if err != nil {
		return nil, fmt.Errorf("parameter '%s': %w", p.Name, err)
	}
	spec := &config.ParamSpec{Name: p.Name, Type: typ, Description: p.Description}

	if isExprDefined(ctx, p.Default, "default") {
		val, diags := p.Default.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid default value for parameter '%s': %w", p.Name, diags)
		}
		if !val.IsNull() {
			spec.Default = &val
		}
	}
	return spec, nil
}

func translateTask(ctx context.Context, t *taskBlock) (*config.TaskNodeSpec, error) {
	logger := ctxlog.FromContext(ctx).With("task", t.Name)
	logger.Debug("Translating HCL task to internal config model.")

	ref, err := config.ParseTaskRef(t.Ref)
	if err != nil {
		return nil, fmt.Errorf("task '%s': %w", t.Name, err)
	}
	spec := &config.TaskNodeSpec{
		Name:       t.Name,
		Ref:        ref,
		RunAfter:   t.RunAfter,
		Workspaces: t.Workspaces,
		Optional:   t.Optional,
	}

	if t.Timeout != "" {
		d, err := time.ParseDuration(t.Timeout)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("task '%s': invalid timeout %q", t.Name, t.Timeout)
		}
		spec.Timeout = d
	}

	if isExprDefined(ctx, t.Params, "params") {
		val, diags := t.Params.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("task '%s': invalid params: %w", t.Name, diags)
		}
		params, err := attributes(val)
		if err != nil {
			return nil, fmt.Errorf("task '%s': params %w", t.Name, err)
		}
		spec.Params = params
	}
	return spec, nil
}

// attributes splits an object or map literal into its attribute values.
func attributes(val cty.Value) (map[string]cty.Value, error) {
	if val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("must be an object, got %s", ty.FriendlyName())
	}
	out := make(map[string]cty.Value)
	for k, v := range val.AsValueMap() {
		out[k] = v
	}
	return out, nil
}
