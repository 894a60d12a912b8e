package yaml_adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// Extensions lists the file extensions this loader reads.
var Extensions = []string{".yaml", ".yml"}

// Loader is the YAML implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new YAML pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads one YAML pipeline document. Unknown keys are rejected.
func (l *Loader) Load(ctx context.Context, path string) (*config.Definition, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: failed to decode YAML file %s: %w", config.ErrConfiguration, path, err)
	}

	def, err := translate(&doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", config.ErrConfiguration, path, err)
	}
	if def.Name == "" {
		base := filepath.Base(path)
		def.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	def.Source = path

	logger.Debug("YAML loading complete.", "pipeline", def.Name, "params", len(def.Params), "tasks", len(def.Tasks), "finally", def.Finally != nil)
	return def, nil
}

func translate(doc *document) (*config.Definition, error) {
	def := &config.Definition{Name: doc.Name}

	seen := make(map[string]bool)
	for _, p := range doc.Params {
		if p.Name == "" {
			return nil, errors.New("parameter without a name")
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("parameter '%s' is declared more than once", p.Name)
		}
		seen[p.Name] = true

		typ, err := config.ParseParamType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter '%s': %w", p.Name, err)
		}
		spec := &config.ParamSpec{Name: p.Name, Type: typ, Description: p.Description}
		if p.Default != nil {
			val, err := config.ValueFromGo(p.Default)
			if err != nil {
				return nil, fmt.Errorf("invalid default value for parameter '%s': %w", p.Name, err)
			}
			spec.Default = &val
		}
		def.Params = append(def.Params, spec)
	}

	seen = make(map[string]bool)
	for _, w := range doc.Workspaces {
		if seen[w.Name] {
			return nil, fmt.Errorf("workspace '%s' is declared more than once", w.Name)
		}
		seen[w.Name] = true
		def.Workspaces = append(def.Workspaces, &config.WorkspaceSpec{Name: w.Name, Description: w.Description})
	}

	for i := range doc.Tasks {
		spec, err := translateTask(&doc.Tasks[i])
		if err != nil {
			return nil, err
		}
		def.Tasks = append(def.Tasks, spec)
	}

	if doc.Finally != nil {
		spec, err := translateTask(doc.Finally)
		if err != nil {
			return nil, err
		}
		if len(spec.RunAfter) > 0 {
			return nil, fmt.Errorf("finally '%s' cannot declare runAfter, it always runs last", spec.Name)
		}
		def.Finally = spec
	}
	return def, nil
}

func translateTask(t *taskDoc) (*config.TaskNodeSpec, error) {
	if t.Ref.Name == "" {
		return nil, fmt.Errorf("task '%s': missing ref", t.Name)
	}
	spec := &config.TaskNodeSpec{
		Name:     t.Name,
		Ref:      config.TaskRef(t.Ref),
		RunAfter: t.RunAfter,
		Optional: t.Optional,
	}

	if len(t.Workspaces) > 0 {
		spec.Workspaces = make(map[string]string, len(t.Workspaces))
		for _, b := range t.Workspaces {
			if _, dup := spec.Workspaces[b.Name]; dup {
				return nil, fmt.Errorf("task '%s': workspace slot '%s' is bound more than once", t.Name, b.Name)
			}
			spec.Workspaces[b.Name] = b.Workspace
		}
	}

	if t.Timeout != "" {
		d, err := time.ParseDuration(t.Timeout)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("task '%s': invalid timeout %q", t.Name, t.Timeout)
		}
		spec.Timeout = d
	}

	if len(t.Params) > 0 {
		names := make([]string, 0, len(t.Params))
		for k := range t.Params {
			names = append(names, k)
		}
		sort.Strings(names)

		spec.Params = make(map[string]cty.Value, len(t.Params))
		for _, k := range names {
			val, err := config.ValueFromGo(t.Params[k])
			if err != nil {
				return nil, fmt.Errorf("task '%s': param '%s': %w", t.Name, k, err)
			}
			spec.Params[k] = val
		}
	}
	return spec, nil
}
