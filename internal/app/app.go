package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/metrics"
	"github.com/vk/pipegrid/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *registry.Registry
	metrics    *prom.Registry
	recorder   *metrics.PrometheusRecorder
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns an App
// with its own isolated logger, task registry and metrics registry. When no
// modules are given the built-in task modules are registered.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules(cfg)
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("Task modules registered.", "count", len(modules), "tasks", reg.Catalog())

	promReg := prom.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())

	return &App{
		ctx:      ctxlog.WithLogger(context.Background(), logger),
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		metrics:  promReg,
		recorder: metrics.NewPrometheusRecorder(promReg),
	}
}

// Registry returns the application's task registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Close releases resources held by the app.
func (a *App) Close() error {
	return a.closeHealthCheckServer()
}
