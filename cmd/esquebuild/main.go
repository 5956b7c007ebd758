package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/esque-os/esquebuild/cmd/esquebuild/commands"
	"github.com/esque-os/esquebuild/internal/buildinfo"
	"github.com/esque-os/esquebuild/internal/logfields"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("esquebuild"),
		kong.Description("Build pipeline for the esque operating system image."),
		kong.UsageOnError(),
		kong.Vars{"version": buildinfo.Version},
	)

	if err := ctx.Run(&commands.Global{Logger: slog.Default()}, &cli); err != nil {
		slog.Error("command failed", logfields.Error(err))
		os.Exit(1)
	}
}
