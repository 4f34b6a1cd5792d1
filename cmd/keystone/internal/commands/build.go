package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/wolfeidau/keystone/internal/buildconfig"
	"github.com/wolfeidau/keystone/internal/bundler"
	"github.com/wolfeidau/keystone/internal/compose"
	"github.com/wolfeidau/keystone/internal/entries"
	"github.com/wolfeidau/keystone/internal/logger"
	"github.com/wolfeidau/keystone/internal/target"
	"github.com/wolfeidau/keystone/internal/telemetry"
)

const tracerName = "github.com/wolfeidau/keystone"

type BuildCmd struct {
	ProjectFlags `embed:""`

	Targets []string `help:"Build targets" default:"server,client" enum:"server,client,node,web"`
	Env     string   `help:"Build environment (development, production)" default:"production" enum:"development,production,dev,prod" env:"NODE_ENV"`
	Tracing bool     `help:"Export traces and metrics over OTLP" env:"KEYSTONE_TRACING"`
}

func (b *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	log.Info().Str("version", globals.Version).Strs("targets", b.Targets).Msg("Starting build")

	flush := setupTelemetry(ctx, b.Tracing || telemetry.Enabled(os.LookupEnv), globals.Version)
	defer flush()

	bld, err := newBuilder(&b.ProjectFlags, b.Targets, b.Env)
	if err != nil {
		return err
	}

	_, err = bld.build(ctx)
	return err
}

// builder composes and bundles a set of targets. Targets are independent and
// run concurrently, each on its own copy of its base configuration.
type builder struct {
	flags    *ProjectFlags
	targets  []target.Target
	composer *compose.Composer
	engine   *bundler.Engine
	metrics  *telemetry.Metrics
}

func newBuilder(flags *ProjectFlags, names []string, env string) (*builder, error) {
	b := &builder{
		flags:    flags,
		composer: flags.Composer(),
		engine:   bundler.New(),
		metrics:  telemetry.GetMetrics(),
	}
	for _, name := range names {
		t, err := parseTarget(name, env)
		if err != nil {
			return nil, err
		}
		b.targets = append(b.targets, t)
	}
	return b, nil
}

// build returns the composed configurations in target order.
func (b *builder) build(ctx context.Context) ([]buildconfig.Config, error) {
	configs := make([]buildconfig.Config, len(b.targets))

	g, ctx := errgroup.WithContext(ctx)
	for i, t := range b.targets {
		g.Go(func() error {
			cfg, err := b.buildTarget(ctx, t)
			if err != nil {
				return fmt.Errorf("%s: %w", t, err)
			}
			configs[i] = cfg
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return configs, nil
}

func (b *builder) buildTarget(ctx context.Context, t target.Target) (cfg buildconfig.Config, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "build "+t.String())
	span.SetAttributes(attribute.String("target", string(t.Name)), attribute.String("env", string(t.Env)))
	defer span.End()

	attrs := telemetry.Target(string(t.Name), string(t.Env))
	b.metrics.BuildsTotal.Add(ctx, 1, attrs)
	defer func() {
		if err != nil {
			b.metrics.BuildErrors.Add(ctx, 1, attrs)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	started := time.Now()
	done := logger.Step(ctx, "compose")
	base, err := b.flags.BaseConfig(t)
	if err == nil {
		cfg, err = b.composer.Compose(ctx, t, base)
	}
	done(err)
	if err != nil {
		return buildconfig.Config{}, err
	}
	telemetry.Since(ctx, b.metrics.ComposeDuration, started, attrs)

	started = time.Now()
	done = logger.Step(ctx, "bundle")
	stats, err := b.engine.Build(ctx, cfg)
	done(err)
	if err != nil {
		return buildconfig.Config{}, err
	}
	telemetry.Since(ctx, b.metrics.BuildDuration, started, attrs)

	var written int64
	for _, out := range stats.Outputs {
		written += int64(out.Bytes)
	}
	b.metrics.OutputBytes.Add(ctx, written, attrs)

	zerolog.Ctx(ctx).Info().
		Str("target", t.String()).
		Int("outputs", len(stats.Outputs)).
		Int("warnings", len(stats.Warnings)).
		Int64("bytes", written).
		Str("fingerprint", stats.Fingerprint).
		Msg("Bundle written")

	if scripts, ok := stats.Scripts[entries.ClientEntry]; ok {
		zerolog.Ctx(ctx).Info().Strs("scripts", scripts).Msg("Client entry scripts")
	}

	return cfg, nil
}
