package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/wolfeidau/keystone/cmd/keystone/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Compose commands.ComposeCmd `cmd:"" help:"Compose the bundler config of a target"`
		Build   commands.BuildCmd   `cmd:"" help:"Compose and bundle targets"`
		Watch   commands.WatchCmd   `cmd:"" help:"Rebuild targets when project files change"`
		Modules commands.ModulesCmd `cmd:"" help:"List discovered module packages"`
		Debug   bool                `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("keystone"),
		kong.Description("Build config composer for storefront apps."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
