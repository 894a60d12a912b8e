package app

import (
	"context"
	"fmt"

	"github.com/vk/pipegrid/internal/archive"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/engine"
	"github.com/vk/pipegrid/internal/notify"
)

// Run loads the configured pipeline and executes it once, writing a report
// to the app's output. The error is non-nil when the run could not start or
// was rejected as invalid; node failures are reported in the result.
func (a *App) Run(ctx context.Context) (*engine.RunResult, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger
	logger.Debug("App.Run method started.")

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	def, err := a.loadDefinition(ctx)
	if err != nil {
		return nil, err
	}
	values, bindings, err := a.runInputs(def)
	if err != nil {
		return nil, err
	}
	probers, err := a.probers()
	if err != nil {
		return nil, err
	}

	if err := a.startHealthCheckServer(); err != nil {
		return nil, err
	}
	defer a.closeHealthCheckServer()

	opts := []engine.Option{
		engine.WithRecorder(a.recorder),
		engine.WithProbers(probers),
	}

	observers := notify.Multi{notify.LogObserver{}}
	if a.config.NotifyURL != "" {
		sio, err := notify.DialSocketIO(ctx, notify.SocketIOConfig{URL: a.config.NotifyURL})
		if err != nil {
			// Progress streaming is best effort; the run proceeds without it.
			logger.Warn("Event streaming disabled.", "url", a.config.NotifyURL, "error", err)
		} else {
			defer sio.Close()
			observers = append(observers, sio)
		}
	}
	opts = append(opts, engine.WithObserver(observers))

	if a.config.ArchivePath != "" {
		store, err := archive.NewSQLiteStore(a.config.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("opening run archive: %w", err)
		}
		defer store.Close()
		opts = append(opts, engine.WithArchive(store))
	}

	logger.Info("🚀 Starting pipeline run...", "pipeline", def.Name)
	res, err := engine.New(a.registry, opts...).Execute(ctx, def, values, bindings)
	if res != nil {
		if werr := res.WriteReport(a.outW); werr != nil {
			logger.Error("Failed to write run report.", "error", werr)
		}
	}
	if err != nil {
		return res, err
	}
	logger.Info("🏁 Pipeline run finished.", "status", res.Status.String())
	return res, nil
}

// Validate loads the configured pipeline and checks it without running
// anything: graph shape, task references and declared parameter defaults.
func (a *App) Validate(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	def, err := a.loadDefinition(ctx)
	if err != nil {
		return err
	}
	g, err := engine.New(a.registry).Validate(def)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "Pipeline %s is valid: %d nodes, order %v\n", def.Name, g.Len(), g.TopologicalOrder())
	return nil
}
