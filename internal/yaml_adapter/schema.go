package yaml_adapter

import (
	"fmt"

	"github.com/vk/pipegrid/internal/config"
	"gopkg.in/yaml.v3"
)

type document struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Params      []paramDoc     `yaml:"params"`
	Workspaces  []workspaceDoc `yaml:"workspaces"`
	Tasks       []taskDoc      `yaml:"tasks"`
	Finally     *taskDoc       `yaml:"finally"`
}

type paramDoc struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Default     any    `yaml:"default"`
}

type workspaceDoc struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type taskDoc struct {
	Name       string             `yaml:"name"`
	Ref        refDoc             `yaml:"ref"`
	RunAfter   []string           `yaml:"runAfter"`
	Workspaces []workspaceBinding `yaml:"workspaces"`
	Params     map[string]any     `yaml:"params"`
	Timeout    string             `yaml:"timeout"`
	Optional   bool               `yaml:"optional"`
}

type workspaceBinding struct {
	Name      string `yaml:"name"`
	Workspace string `yaml:"workspace"`
}

// refDoc accepts either "name@version" or a {name, version} mapping.
type refDoc config.TaskRef

func (r *refDoc) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		ref, err := config.ParseTaskRef(node.Value)
		if err != nil {
			return err
		}
		*r = refDoc(ref)
		return nil
	case yaml.MappingNode:
		var m struct {
			Name    string `yaml:"name"`
			Version string `yaml:"version"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		*r = refDoc{Name: m.Name, Version: m.Version}
		return nil
	default:
		return fmt.Errorf("line %d: ref must be a string or a mapping", node.Line)
	}
}
