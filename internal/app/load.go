package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/fsutil"
	"github.com/vk/pipegrid/internal/hcl_adapter"
	"github.com/vk/pipegrid/internal/params"
	"github.com/vk/pipegrid/internal/workspace"
	"github.com/vk/pipegrid/internal/yaml_adapter"
)

// LoaderFor picks a pipeline loader by file extension. Directories are read
// as a set of .hcl files.
func LoaderFor(path string) (config.Loader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	switch {
	case info.IsDir(), fsutil.HasExtension(path, hcl_adapter.Extensions...):
		return hcl_adapter.NewLoader(), nil
	case fsutil.HasExtension(path, yaml_adapter.Extensions...):
		return yaml_adapter.NewLoader(), nil
	default:
		return nil, fmt.Errorf("%w: %s: unsupported pipeline file type (want .hcl, .yaml or .yml)", config.ErrConfiguration, path)
	}
}

func (a *App) loadDefinition(ctx context.Context) (*config.Definition, error) {
	loader, err := LoaderFor(a.config.PipelinePath)
	if err != nil {
		return nil, err
	}
	def, err := loader.Load(ctx, a.config.PipelinePath)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Pipeline loaded.", "pipeline", def.Name, "source", def.Source)
	return def, nil
}

// runInputs parses the run's parameter values and workspace bindings.
// Values from --param override those from the params file.
func (a *App) runInputs(def *config.Definition) (params.Values, workspace.Bindings, error) {
	var fromFile params.Values
	if a.config.ParamsFile != "" {
		data, err := os.ReadFile(a.config.ParamsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reading params file: %w", config.ErrConfiguration, err)
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, nil, fmt.Errorf("%w: params file %s must be a JSON object: %w", config.ErrConfiguration, a.config.ParamsFile, err)
		}
		if fromFile, err = params.FromGo(raw); err != nil {
			return nil, nil, err
		}
	}

	fromFlags, err := params.ParseAssignments(def, a.config.Params)
	if err != nil {
		return nil, nil, err
	}

	ws, err := workspace.ParseBindings(a.config.Workspaces)
	if err != nil {
		return nil, nil, err
	}
	return params.Merge(fromFile, fromFlags), ws, nil
}

// probers returns the location checks for the configured storage backends.
func (a *App) probers() (map[string]workspace.Prober, error) {
	probers := map[string]workspace.Prober{
		workspace.SchemeFile: workspace.LocalProber{Create: a.config.CreateWorkspaces},
	}
	if a.config.S3.Endpoint != "" {
		s3, err := workspace.NewS3Prober(a.config.S3)
		if err != nil {
			return nil, err
		}
		probers[workspace.SchemeS3] = s3
	}
	return probers, nil
}
