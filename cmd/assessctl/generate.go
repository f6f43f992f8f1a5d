package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-assess/internal/compiler"
	"github.com/hugh/go-assess/internal/database"
	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/generation"
	"github.com/hugh/go-assess/internal/metrics"
	"github.com/hugh/go-assess/internal/pipeline"
	"github.com/hugh/go-assess/internal/prompts"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	orgID   string
	userID  string
	format  string
	persona string
}

func (o generateOptions) request(files []string) (pipeline.Request, error) {
	orgID, err := uuid.Parse(o.orgID)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("invalid --org: %w", err)
	}
	userID, err := uuid.Parse(o.userID)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("invalid --user: %w", err)
	}

	format := models.ReportFormat(o.format)
	if o.format != "" && !format.Valid() {
		return pipeline.Request{}, fmt.Errorf("invalid --format %q: must be json or latex", o.format)
	}

	return pipeline.Request{
		OrganizationID: orgID,
		UserID:         userID,
		Locations:      files,
		Persona:        o.persona,
		Format:         format,
	}, nil
}

func newGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate [files...]",
		Short: "Run one assessment for an organization from local JSON documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(args)
			if err != nil {
				return err
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.GenAI.Validate(); err != nil {
				return err
			}
			metrics.Init()

			db, err := database.Connect(&cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer database.Close(db)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Pipeline.JobTimeout())
			defer cancel()

			gen, err := generation.NewGeminiGenerator(ctx, cfg.GenAI)
			if err != nil {
				return err
			}

			registry, err := prompts.Default()
			if cfg.Pipeline.PromptsDir != "" {
				registry, err = prompts.Open(cfg.Pipeline.PromptsDir)
			}
			if err != nil {
				return fmt.Errorf("loading prompts: %w", err)
			}

			contextFormat, err := compiler.ParseFormat(cfg.Pipeline.ContextFormat)
			if err != nil {
				return err
			}

			// Share the worker lock when Redis is reachable so a manual run
			// never overlaps a queued one for the same organization.
			var locker pipeline.Locker
			rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password})
			defer rdb.Close()
			pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				logger.Warn("redis unavailable, locking in-process only", "error", err)
			} else {
				locker = pipeline.NewRedisLocker(rdb, cfg.Pipeline.LockTTL())
			}
			pingCancel()

			p := pipeline.New(db, compiler.FSLoader{Fs: afero.NewOsFs()}, gen, registry, locker, logger,
				pipeline.Options{
					Format:  models.ReportFormat(cfg.Pipeline.ReportFormat),
					Persona: cfg.Pipeline.Persona,
					Generation: generation.Config{
						MaxRetries: cfg.Pipeline.MaxRetries,
						Delay:      cfg.Pipeline.RetryDelay(),
					},
					ContextFormat: contextFormat,
					ErrorPolicy:   compiler.Omit,
				},
			)

			res := p.Run(ctx, req)
			if err := printResult(cmd, res); err != nil {
				return err
			}
			if !res.OK {
				return errors.New(res.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.orgID, "org", "", "organization ID (required)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "requesting user ID (required)")
	cmd.Flags().StringVar(&opts.format, "format", "", "report format: json or latex (default from PIPELINE_REPORT_FORMAT)")
	cmd.Flags().StringVar(&opts.persona, "persona", "", "override the organization's stored persona")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printResult(cmd *cobra.Command, res pipeline.Result) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
