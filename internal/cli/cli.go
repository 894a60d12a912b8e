package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alecthomas/kong"
	"github.com/vk/pipegrid/internal/app"
	"github.com/vk/pipegrid/internal/workspace"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitUsage  = 2
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

type runCmd struct {
	Pipeline string `arg:"" help:"Pipeline file (.hcl, .yaml, .yml) or a directory of .hcl files."`

	Param            []string      `short:"p" help:"Parameter value as NAME=VALUE. Non-string values are parsed as JSON." placeholder:"NAME=VALUE"`
	ParamsFile       string        `help:"JSON object of parameter values. --param wins." placeholder:"FILE"`
	Workspace        []string      `short:"w" help:"Workspace binding as NAME=LOCATION (a path, file:// or s3://bucket/prefix)." placeholder:"NAME=LOCATION"`
	CreateWorkspaces bool          `help:"Create missing local workspace directories."`
	Timeout          time.Duration `help:"Cancel the run after this long. 0 disables." default:"0s" env:"PIPEGRID_TIMEOUT"`

	Archive         string `help:"SQLite database that archives finished runs. Empty disables." env:"PIPEGRID_ARCHIVE"`
	NotifyURL       string `name:"notify-url" help:"socket.io endpoint that receives run events. Empty disables." env:"PIPEGRID_NOTIFY_URL"`
	HealthcheckPort int    `help:"Port for the /health and /metrics server. 0 disables." default:"0" env:"PIPEGRID_HEALTHCHECK_PORT"`

	S3Endpoint  string `name:"s3-endpoint" help:"Object store endpoint for s3:// workspaces." env:"PIPEGRID_S3_ENDPOINT"`
	S3Region    string `name:"s3-region" help:"Object store region." env:"PIPEGRID_S3_REGION"`
	S3AccessKey string `name:"s3-access-key" help:"Object store access key." env:"PIPEGRID_S3_ACCESS_KEY"`
	S3SecretKey string `name:"s3-secret-key" help:"Object store secret key." env:"PIPEGRID_S3_SECRET_KEY"`
	S3Insecure  bool   `name:"s3-insecure" help:"Connect to the object store without TLS." env:"PIPEGRID_S3_INSECURE"`
}

type validateCmd struct {
	Pipeline string `arg:"" help:"Pipeline file (.hcl, .yaml, .yml) or a directory of .hcl files."`
}

type cliSpec struct {
	LogLevel  string `help:"Logging level." enum:"debug,info,warn,error" default:"info" env:"PIPEGRID_LOG_LEVEL"`
	LogFormat string `help:"Log output format." enum:"text,json" default:"text" env:"PIPEGRID_LOG_FORMAT"`

	Run      runCmd      `cmd:"" help:"Execute a pipeline once."`
	Validate validateCmd `cmd:"" help:"Check a pipeline definition without running it."`
}

// exitRequest is raised by kong's exit hook so that --help returns from
// Parse instead of terminating the process.
type exitRequest struct{ code int }

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (cfg *app.Config, shouldExit bool, err error) {
	slog.Debug("CLI parser started.")
	var spec cliSpec
	parser, err := kong.New(&spec,
		kong.Name("pipegrid"),
		kong.Description("pipegrid runs DAG pipelines of versioned tasks with a guaranteed finalizer."),
		kong.Writers(output, output),
		kong.Exit(func(code int) { panic(exitRequest{code}) }),
	)
	if err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	defer func() {
		if r := recover(); r != nil {
			req, ok := r.(exitRequest)
			if !ok {
				panic(r)
			}
			cfg, shouldExit, err = nil, true, nil
			if req.code != 0 {
				err = &ExitError{Code: ExitUsage, Message: "invalid arguments"}
			}
		}
	}()

	kctx, err := parser.Parse(args)
	if err != nil {
		var perr *kong.ParseError
		if errors.As(err, &perr) && perr.Context != nil && len(args) == 0 {
			_ = perr.Context.PrintUsage(false)
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.", "command", kctx.Command())

	c := app.Config{LogLevel: spec.LogLevel, LogFormat: spec.LogFormat}
	switch kctx.Command() {
	case "run <pipeline>":
		r := spec.Run
		c.Command = app.CommandRun
		c.PipelinePath = r.Pipeline
		c.Params = r.Param
		c.ParamsFile = r.ParamsFile
		c.Workspaces = r.Workspace
		c.CreateWorkspaces = r.CreateWorkspaces
		c.Timeout = r.Timeout
		c.ArchivePath = r.Archive
		c.NotifyURL = r.NotifyURL
		c.HealthcheckPort = r.HealthcheckPort
		c.S3 = workspace.S3Config{
			Endpoint:  r.S3Endpoint,
			Region:    r.S3Region,
			AccessKey: r.S3AccessKey,
			SecretKey: r.S3SecretKey,
			UseSSL:    !r.S3Insecure,
		}
	case "validate <pipeline>":
		c.Command = app.CommandValidate
		c.PipelinePath = spec.Validate.Pipeline
	default:
		return nil, false, &ExitError{Code: ExitUsage, Message: fmt.Sprintf("unknown command %q", kctx.Command())}
	}

	config, err := app.NewConfig(c)
	if err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	slog.Debug("CLI parser finished successfully.", "command", config.Command, "pipeline", config.PipelinePath)
	return config, false, nil
}
