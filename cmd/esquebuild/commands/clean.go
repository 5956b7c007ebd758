package commands

import (
	"github.com/esque-os/esquebuild/internal/executor"
	"github.com/esque-os/esquebuild/internal/staging"
)

// CleanCmd implements the 'clean' command. Removal errors are absorbed:
// cleaning an already clean tree succeeds.
type CleanCmd struct{}

func (c *CleanCmd) Run(_ *Global, _ *CLI) error {
	staging.New(".", executor.New()).Clean()
	return nil
}

// SetupCmd implements the 'setup' command.
type SetupCmd struct{}

func (s *SetupCmd) Run(_ *Global, _ *CLI) error {
	staging.New(".", executor.New()).Setup()
	return nil
}
