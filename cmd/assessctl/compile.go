package main

import (
	"fmt"
	"log/slog"

	"github.com/hugh/go-assess/internal/compiler"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newCompileCmd() *cobra.Command {
	var (
		format      string
		placeholder bool
	)

	cmd := &cobra.Command{
		Use:   "compile [files...]",
		Short: "Print the generation context compiled from local JSON documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := compiler.ParseFormat(format)
			if err != nil {
				return err
			}

			policy := compiler.Omit
			if placeholder {
				policy = compiler.Placeholder
			}

			// Skipped documents are reported on stderr so stdout stays usable.
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

			c := compiler.New(compiler.FSLoader{Fs: afero.NewOsFs()},
				compiler.WithFormat(f),
				compiler.WithErrorPolicy(policy),
				compiler.WithLogger(logger),
			)
			_, err = fmt.Fprint(cmd.OutOrStdout(), c.Compile(cmd.Context(), args))
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "flat", "context format: flat or pretty")
	cmd.Flags().BoolVar(&placeholder, "placeholder", false, "emit a placeholder block for unreadable documents instead of omitting them")
	return cmd
}
