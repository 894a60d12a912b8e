// Package httpcall provides the "http" task, which issues a single HTTP
// request and fails the node on an unexpected status.
package httpcall

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/registry"
	"github.com/vk/pipegrid/internal/task"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client overrides the shared HTTP client.
	Client *http.Client
}

// maxBodyPreview bounds how much of the response is reported as progress.
const maxBodyPreview = 512

var defaultClient = &http.Client{Timeout: 30 * time.Second}

// Input defines the parameters of the http task.
type Input struct {
	URL     string            `cty:"url"`
	Method  string            `cty:"method"`
	Headers map[string]string `cty:"headers"`
	Body    string            `cty:"body"`
	// Expect lists the accepted status codes. Empty accepts any 2xx.
	Expect []int `cty:"expect"`
}

func (m *Module) run(ctx context.Context, inv *task.Invocation) error {
	logger := ctxlog.FromContext(ctx)

	in := Input{Method: http.MethodGet}
	if err := inv.Decode(&in); err != nil {
		return err
	}
	if in.URL == "" {
		return fmt.Errorf("task %s: missing url", inv.Ref)
	}

	var body io.Reader
	if in.Body != "" {
		body = strings.NewReader(in.Body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(in.Method), in.URL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Pipegrid-Run", inv.RunID)

	client := m.Client
	if client == nil {
		client = defaultClient
	}
	logger.Info("Making HTTP request", "method", req.Method, "url", in.URL)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	preview, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyPreview))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	logger.Info("Received HTTP response", "status", resp.Status)
	inv.Progressf("%s %s -> %d", req.Method, in.URL, resp.StatusCode)

	if !accepted(resp.StatusCode, in.Expect) {
		return fmt.Errorf("%s %s returned %s: %s", req.Method, in.URL, resp.Status, strings.TrimSpace(string(preview)))
	}
	return nil
}

func accepted(code int, expect []int) bool {
	if len(expect) == 0 {
		return code >= 200 && code < 300
	}
	return slices.Contains(expect, code)
}

// Register registers the task with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFunc("http", "1.0.0", m.run)
}
