package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/keystone/internal/buildconfig"
	"github.com/wolfeidau/keystone/internal/chunks"
	"github.com/wolfeidau/keystone/internal/compose"
	"github.com/wolfeidau/keystone/internal/entries"
	"github.com/wolfeidau/keystone/internal/environment"
	"github.com/wolfeidau/keystone/internal/settings"
	"github.com/wolfeidau/keystone/internal/target"
	"github.com/wolfeidau/keystone/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Version string
}

// ProjectFlags locate a storefront project and tune composition. They are
// shared by every command.
type ProjectFlags struct {
	App               string `help:"Storefront app directory" default:"." type:"path" env:"KEYSTONE_APP"`
	EntryDir          string `help:"Directory holding the entry shims, defaults to entry in the app directory" type:"path" env:"KEYSTONE_ENTRY_DIR"`
	Settings          string `help:"Platform settings file (JSON or YAML), defaults to platform.settings.json in the app directory" type:"path"`
	Base              string `help:"Base bundler config file (JSON or YAML)" type:"path"`
	ModuleEntryPoints bool   `help:"Emit one entry point per module package" env:"MSDyn365_MODULE_ENTRYPOINTS"`
	DevPort           int    `help:"Dev transport port" default:"3001" env:"DEV_PORT"`
	UseTslint         bool   `help:"Lint with tslint instead of eslint"`
	DisableLinter     bool   `help:"Skip linting during type checking"`
	AnalyzeBundle     bool   `help:"Write a bundle analysis report" env:"ANALYZE_BUNDLE"`
	UseSubmissionV2   bool   `name:"use-submission-v2" help:"Omit the submission id constant"`
	EntryPointCap     int    `help:"Request limit for both async and initial chunks with module entry points" default:"20"`
	AsyncBase         int    `help:"Async request limit before per-package groups are added" default:"5"`
	InitialBase       int    `help:"Initial request limit before per-package groups are added" default:"3"`
}

func (p *ProjectFlags) Layout() entries.Layout {
	entryDir := p.EntryDir
	if entryDir == "" {
		entryDir = filepath.Join(p.App, "entry")
	}
	return entries.Layout{AppPath: p.App, EntryDir: entryDir}
}

func (p *ProjectFlags) SettingsPath() string {
	if p.Settings != "" {
		return p.Settings
	}
	return filepath.Join(p.App, settings.DefaultFileName)
}

// Composer captures the environment once and returns a composer shared by
// every target of the invocation.
func (p *ProjectFlags) Composer() *compose.Composer {
	return compose.New(compose.Options{
		Layout:            p.Layout(),
		SettingsPath:      p.SettingsPath(),
		ModuleEntryPoints: p.ModuleEntryPoints,
		DevPort:           p.DevPort,
		UseTSLint:         p.UseTslint,
		DisableLinter:     p.DisableLinter,
		AnalyzeBundle:     p.AnalyzeBundle,
		Limits: chunks.RequestLimits{
			EntryPointCap: p.EntryPointCap,
			AsyncBase:     p.AsyncBase,
			InitialBase:   p.InitialBase,
		},
		Env: environment.Capture(os.LookupEnv, p.UseSubmissionV2),
	})
}

// BaseConfig returns the base configuration of a target, loaded from the base
// file when one is given.
func (p *ProjectFlags) BaseConfig(t target.Target) (buildconfig.Config, error) {
	defaults := buildconfig.Default(t, p.Layout())
	if p.Base == "" {
		return defaults, nil
	}

	cfg, err := buildconfig.Load(p.Base, defaults)
	if err != nil {
		return buildconfig.Config{}, fmt.Errorf("failed to load base config: %w", err)
	}
	return cfg, nil
}

func parseTarget(name, env string) (target.Target, error) {
	n, err := target.ParseName(name)
	if err != nil {
		return target.Target{}, err
	}
	e, err := target.ParseEnv(env)
	if err != nil {
		return target.Target{}, err
	}
	return target.New(n, e), nil
}

// setupTelemetry starts OTLP export when tracing is requested and returns the
// func flushing it.
func setupTelemetry(ctx context.Context, enabled bool, version string) func() {
	log := zerolog.Ctx(ctx)
	if !enabled {
		return func() {}
	}

	log.Info().Msg("Tracing is enabled")
	shutdown, err := telemetry.InitTelemetry(ctx, "keystone", version)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}
