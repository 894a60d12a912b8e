package app

import (
	"github.com/vk/pipegrid/internal/registry"
	"github.com/vk/pipegrid/modules/exec"
	"github.com/vk/pipegrid/modules/gitclone"
	"github.com/vk/pipegrid/modules/httpcall"
	"github.com/vk/pipegrid/modules/print"
	"github.com/vk/pipegrid/modules/s3sync"
)

// coreModules is the definitive list of all task modules that are compiled
// into the pipegrid binary.
func coreModules(cfg *Config) []registry.Module {
	return []registry.Module{
		&print.Module{},
		&exec.Module{},
		&gitclone.Module{},
		&httpcall.Module{},
		&s3sync.Module{Config: cfg.S3},
	}
}
