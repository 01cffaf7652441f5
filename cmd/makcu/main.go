package main

import (
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"

	"github.com/makcu/makcu-go/internal/log"
)

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("makcu"),
		kong.Description("Control a MAKCU USB mouse controller over its serial link."),
		kong.UsageOnError(),
		// Flags and env vars override config file values.
		kong.Configuration(kongyaml.Loader, configCandidatePaths()...),
	)

	logger, closer, err := log.Setup(cli.Log.Level, cli.Log.File)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	ctx.FatalIfErrorf(ctx.Run(&cli.Globals, logger))
}

func configCandidatePaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "makcu", "config.yaml"))
	}
	return append(paths, ".makcu.yaml")
}
