package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a pipeline file may contain.
// Definitions may be split across several files in one directory.
type fileRoot struct {
	Pipelines  []*pipelineBlock  `hcl:"pipeline,block"`
	Params     []*paramBlock     `hcl:"param,block"`
	Workspaces []*workspaceBlock `hcl:"workspace,block"`
	Tasks      []*taskBlock      `hcl:"task,block"`
	Finally    []*taskBlock      `hcl:"finally,block"`
}

type pipelineBlock struct {
	Name        string `hcl:"name,label"`
	Description string `hcl:"description,optional"`
}

type paramBlock struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type,optional"`
	Default     hcl.Expression `hcl:"default,optional"`
	Description string         `hcl:"description,optional"`
}

type workspaceBlock struct {
	Name        string `hcl:"name,label"`
	Description string `hcl:"description,optional"`
}

type taskBlock struct {
	Name       string            `hcl:"name,label"`
	Ref        string            `hcl:"ref"`
	RunAfter   []string          `hcl:"run_after,optional"`
	Workspaces map[string]string `hcl:"workspaces,optional"`
	Params     hcl.Expression    `hcl:"params,optional"`
	Timeout    string            `hcl:"timeout,optional"`
	Optional   bool              `hcl:"optional,optional"`
}
