package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/vk/pipegrid/internal/workspace"
)

// Commands understood by App.
const (
	CommandRun      = "run"
	CommandValidate = "validate"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command      string
	PipelinePath string // .hcl, .yaml or .yml file, or a directory of .hcl files

	Params           []string // name=value
	ParamsFile       string   // JSON object of parameter values
	Workspaces       []string // name=location
	CreateWorkspaces bool
	Timeout          time.Duration

	ArchivePath     string
	NotifyURL       string
	HealthcheckPort int
	S3              workspace.S3Config

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	switch cfg.Command {
	case "":
		cfg.Command = CommandRun
	case CommandRun, CommandValidate:
	default:
		return nil, fmt.Errorf("unknown command %q", cfg.Command)
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("timeout cannot be negative")
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	return &cfg, nil
}

// LoadEnvFile reads PIPEGRID_* defaults from a .env file into the process
// environment. Variables that are already set win, and a missing file is
// not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
