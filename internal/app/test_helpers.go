package app

import (
	"os"
	"testing"

	"github.com/vk/pipegrid/internal/registry"
	"github.com/vk/pipegrid/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. Logs are
// captured and printed only when PIPEGRID_TEST_LOGS=true.
func SetupAppTest(t *testing.T, cfg *Config, modules ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	out := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp := NewApp(out, cfg, modules...)

	t.Cleanup(func() {
		_ = testApp.Close()
		if os.Getenv("PIPEGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), out.String())
		}
	})
	return testApp, out
}
