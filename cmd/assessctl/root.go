package main

import (
	"log/slog"

	"github.com/hugh/go-assess/pkg/config"
	"github.com/hugh/go-assess/pkg/util"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// newRootCmd builds a fresh command tree so tests never share flag state.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "assessctl",
		Short:         "Compile documents and run security assessments outside the API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newCompileCmd(),
		newGenerateCmd(),
		newMigrateCmd(),
		newKeygenCmd(),
	)
	return root
}

// loadConfig reads the same environment the server and worker use.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := util.NewLogger(cfg.Server.Env, &cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
