package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wolfeidau/keystone/internal/discovery"
	"github.com/wolfeidau/keystone/internal/logger"
)

type ModulesCmd struct {
	ProjectFlags `embed:""`

	JSON bool      `help:"Print the module packages as a JSON array"`
	Out  io.Writer `kong:"-"`
}

func (m *ModulesCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	composer := m.Composer()

	s, err := composer.Settings()
	if err != nil {
		return err
	}

	set, err := composer.Discover(ctx, s)
	if err != nil {
		return fmt.Errorf("failed to discover module packages: %w", err)
	}

	out := m.Out
	if out == nil {
		out = os.Stdout
	}

	ids := set.Sorted()
	if m.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ids)
	}

	for _, id := range ids {
		fmt.Fprintf(out, "%s\t%s\n", id, discovery.RegistrationPath(id))
	}
	return nil
}
