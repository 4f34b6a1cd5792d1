package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wolfeidau/keystone/internal/logger"
	"github.com/wolfeidau/keystone/internal/telemetry"
	"github.com/wolfeidau/keystone/internal/watcher"
)

type WatchCmd struct {
	ProjectFlags `embed:""`

	Targets  []string      `help:"Build targets" default:"server,client" enum:"server,client,node,web"`
	Env      string        `help:"Build environment (development, production)" default:"development" enum:"development,production,dev,prod" env:"NODE_ENV"`
	Debounce time.Duration `help:"Quiet period before a rebuild starts" default:"300ms"`
	Tracing  bool          `help:"Export traces and metrics over OTLP" env:"KEYSTONE_TRACING"`
}

func (w *WatchCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	flush := setupTelemetry(ctx, w.Tracing || telemetry.Enabled(os.LookupEnv), globals.Version)
	defer flush()

	bld, err := newBuilder(&w.ProjectFlags, w.Targets, w.Env)
	if err != nil {
		return err
	}

	configs, err := bld.build(ctx)
	if err != nil {
		return err
	}

	// every target shares the same watch plugins
	var files []string
	if rel, err := filepath.Rel(w.App, w.SettingsPath()); err == nil {
		files = append(files, rel)
	}

	fw, err := watcher.FromConfig(w.App, configs[0], files...)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	fw.SetDebounce(w.Debounce)

	return fw.Run(ctx, func(ctx context.Context) error {
		bld.metrics.RebuildsTotal.Add(ctx, 1)
		_, err := bld.build(ctx)
		return err
	})
}
