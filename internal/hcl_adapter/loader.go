package hcl_adapter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/fsutil"
)

// Extensions lists the file extensions this loader reads.
var Extensions = []string{".hcl"}

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads a pipeline from an .hcl file, or from every .hcl file under a
// directory, and translates it into the format-agnostic model. Blocks from
// several files are merged in path order.
func (l *Loader) Load(ctx context.Context, path string) (*config.Definition, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	files, err := fsutil.FindFiles(path, Extensions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .hcl files found at %s", config.ErrConfiguration, path)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	var merged fileRoot
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w: failed to parse HCL file %s: %w", config.ErrConfiguration, file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("%w: failed to decode HCL file %s: %w", config.ErrConfiguration, file, diags)
		}
		merged.Pipelines = append(merged.Pipelines, root.Pipelines...)
		merged.Params = append(merged.Params, root.Params...)
		merged.Workspaces = append(merged.Workspaces, root.Workspaces...)
		merged.Tasks = append(merged.Tasks, root.Tasks...)
		merged.Finally = append(merged.Finally, root.Finally...)
	}

	def, err := l.translate(ctx, &merged, defaultName(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", config.ErrConfiguration, path, err)
	}
	def.Source = path

	logger.Debug("HCL loading complete.", "pipeline", def.Name, "params", len(def.Params), "workspaces", len(def.Workspaces), "tasks", len(def.Tasks), "finally", def.Finally != nil)
	return def, nil
}

// defaultName names a pipeline that has no pipeline block after its file or
// directory.
func defaultName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
