package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/pipegrid/internal/archive"
	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/engine"
	"github.com/vk/pipegrid/internal/hcl_adapter"
	"github.com/vk/pipegrid/internal/node"
	"github.com/vk/pipegrid/internal/params"
	"github.com/vk/pipegrid/internal/testutil"
	"github.com/vk/pipegrid/internal/yaml_adapter"
)

const pipelineHCL = `
pipeline "container-build" {}

param "git_url" { type = string }
param "platforms" {
  type    = array
  default = ["x86_64"]
}

workspace "ws-container" {}

task "clone" {
  ref        = "record@1"
  workspaces = { source = "ws-container" }
  params     = { url = "$(params.git_url)" }
}

task "build" {
  ref       = "record@1"
  run_after = ["clone"]
  params    = { platforms = "$(params.platforms)" }
}

finally "exit" {
  ref    = "record@1"
  params = { status = "$(tasks.status)" }
}
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Config{PipelinePath: "p.hcl"})
	require.NoError(t, err)
	assert.Equal(t, CommandRun, cfg.Command)

	_, err = NewConfig(Config{})
	assert.Error(t, err)
	_, err = NewConfig(Config{PipelinePath: "p.hcl", Command: "deploy"})
	assert.Error(t, err)
	_, err = NewConfig(Config{PipelinePath: "p.hcl", HealthcheckPort: 70000})
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".env", "PIPEGRID_TEST_ENV_VALUE=from-file\n")
	t.Setenv("PIPEGRID_TEST_ENV_VALUE", "")
	os.Unsetenv("PIPEGRID_TEST_ENV_VALUE")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("PIPEGRID_TEST_ENV_VALUE"))

	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoaderFor(t *testing.T) {
	dir := t.TempDir()
	hclPath := writeFile(t, dir, "p.hcl", "")
	yamlPath := writeFile(t, dir, "p.yml", "")
	txtPath := writeFile(t, dir, "p.txt", "")

	l, err := LoaderFor(hclPath)
	require.NoError(t, err)
	assert.IsType(t, (*hcl_adapter.Loader)(nil), l)

	l, err = LoaderFor(dir)
	require.NoError(t, err)
	assert.IsType(t, (*hcl_adapter.Loader)(nil), l)

	l, err = LoaderFor(yamlPath)
	require.NoError(t, err)
	assert.IsType(t, (*yaml_adapter.Loader)(nil), l)

	_, err = LoaderFor(txtPath)
	assert.ErrorIs(t, err, config.ErrConfiguration)
	_, err = LoaderFor(filepath.Join(dir, "missing.hcl"))
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	mod := testutil.NewRecorderModule()
	cfg := &Config{
		PipelinePath:     writeFile(t, dir, "pipeline.hcl", pipelineHCL),
		Params:           []string{"git_url=https://example.com/app.git"},
		ParamsFile:       writeFile(t, dir, "params.json", `{"git_url": "ignored", "platforms": ["x86_64", "s390x"]}`),
		Workspaces:       []string{"ws-container=" + filepath.Join(dir, "ws")},
		CreateWorkspaces: true,
		ArchivePath:      filepath.Join(dir, "runs.db"),
	}
	a, out := SetupAppTest(t, cfg, mod)

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.StatusSucceeded, res.Status)
	assert.Equal(t, node.Succeeded, res.Nodes["build"].State)

	clone, ok := mod.Record("clone")
	require.True(t, ok)
	url, _ := clone.Invocation.Params.String("url")
	assert.Equal(t, "https://example.com/app.git", url, "flags override the params file")
	assert.DirExists(t, filepath.Join(dir, "ws"))

	build, _ := mod.Record("build")
	platforms, ok, err := build.Invocation.Params.Go("platforms")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{"x86_64", "s390x"}, platforms)

	assert.Contains(t, out.String(), "Status: Succeeded")

	store, err := archive.NewSQLiteStore(cfg.ArchivePath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.List(context.Background(), "container-build")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
}

func TestRun_RepeatedOnOneApp(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		PipelinePath:     writeFile(t, dir, "pipeline.hcl", pipelineHCL),
		Params:           []string{"git_url=https://example.com/app.git"},
		Workspaces:       []string{"ws-container=" + filepath.Join(dir, "ws")},
		CreateWorkspaces: true,
	}
	a, _ := SetupAppTest(t, cfg, testutil.NewRecorderModule())

	for i := 0; i < 2; i++ {
		res, err := a.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, engine.StatusSucceeded, res.Status)
	}

	families, err := a.metrics.Gather()
	require.NoError(t, err)
	var succeeded float64
	for _, mf := range families {
		if mf.GetName() != "pipegrid_run_outcomes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			succeeded += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, succeeded, "both runs report to the same recorder")
}

func TestRun_InvalidInputs(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pipeline.hcl", pipelineHCL)

	cases := map[string]*Config{
		"missing parameter": {PipelinePath: path},
		"bad params file":   {PipelinePath: path, ParamsFile: writeFile(t, dir, "bad.json", "[1]")},
		"bad assignment":    {PipelinePath: path, Params: []string{"novalue"}},
		"bad workspace":     {PipelinePath: path, Params: []string{"git_url=x"}, Workspaces: []string{"ws-container=ftp://host/x"}},
		"bad file":          {PipelinePath: writeFile(t, dir, "broken.hcl", `task "x" {`)},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			a, _ := SetupAppTest(t, cfg, testutil.NewRecorderModule())
			_, err := a.Run(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrConfiguration)
		})
	}
}

func TestRun_MissingParameterIsReportedInvalid(t *testing.T) {
	cfg := &Config{PipelinePath: writeFile(t, t.TempDir(), "pipeline.hcl", pipelineHCL)}
	a, _ := SetupAppTest(t, cfg, testutil.NewRecorderModule())

	res, err := a.Run(context.Background())
	assert.ErrorIs(t, err, params.ErrMissingParameter)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.ExitCode())
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{PipelinePath: writeFile(t, dir, "pipeline.hcl", pipelineHCL)}
	a, out := SetupAppTest(t, cfg, testutil.NewRecorderModule())
	require.NoError(t, a.Validate(context.Background()))
	assert.Contains(t, out.String(), "Pipeline container-build is valid: 2 nodes")

	cyclic := writeFile(t, dir, "cycle.yaml", `
tasks:
  - {name: a, ref: record, runAfter: [b]}
  - {name: b, ref: record, runAfter: [a]}
`)
	a, _ = SetupAppTest(t, &Config{PipelinePath: cyclic}, testutil.NewRecorderModule())
	assert.ErrorIs(t, a.Validate(context.Background()), config.ErrConfiguration)
}

func TestHealthMux(t *testing.T) {
	a, _ := SetupAppTest(t, &Config{PipelinePath: "p.hcl"}, testutil.NewRecorderModule())
	srv := httptest.NewServer(a.healthMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK\n", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCoreModulesRegister(t *testing.T) {
	a := NewApp(io.Discard, &Config{PipelinePath: "p.hcl"})
	assert.Equal(t, []string{
		"exec@1.0.0", "exec@1.1.0", "git-clone@1.0.0", "http@1.0.0", "print@1.0.0", "s3-sync@1.0.0",
	}, a.Registry().Catalog())
}
