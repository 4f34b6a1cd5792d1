package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wolfeidau/keystone/internal/logger"
)

type ComposeCmd struct {
	ProjectFlags `embed:""`

	Target string    `help:"Build target (server, client)" default:"client" enum:"server,client,node,web"`
	Env    string    `help:"Build environment (development, production)" default:"production" enum:"development,production,dev,prod" env:"NODE_ENV"`
	Output string    `short:"o" help:"Write the config to a file instead of stdout" type:"path"`
	Out    io.Writer `kong:"-"`
}

func (c *ComposeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	t, err := parseTarget(c.Target, c.Env)
	if err != nil {
		return err
	}

	base, err := c.BaseConfig(t)
	if err != nil {
		return err
	}

	cfg, err := c.Composer().Compose(ctx, t, base)
	if err != nil {
		return fmt.Errorf("failed to compose %s: %w", t, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	data = append(data, '\n')

	if c.Output != "" {
		log.Info().Str("file", c.Output).Msg("Writing config")
		return os.WriteFile(c.Output, data, 0600)
	}

	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	_, err = out.Write(data)
	return err
}
