package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	t.Run("returns embedded logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		ctx := WithLogger(context.Background(), logger)

		FromContext(ctx).Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("falls back to default logger", func(t *testing.T) {
		assert.Equal(t, slog.Default(), FromContext(context.Background()))
	})

	t.Run("with adds attributes", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))
		ctx = With(ctx, "run_id", "r-1")

		FromContext(ctx).Info("node started")
		assert.Contains(t, buf.String(), "run_id=r-1")
	})
}
