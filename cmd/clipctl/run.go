package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hszk-dev/clipstream/internal/app"
	"github.com/hszk-dev/clipstream/internal/config"
	"github.com/hszk-dev/clipstream/internal/usecase"
)

var errRunFailed = errors.New("pipeline run failed")

func newRunCmd() *cobra.Command {
	var (
		length int
		tier   string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "run <reference>",
		Short: "Run the full pipeline and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.Cache.Backend = app.BackendMemory

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sessions, closer, err := app.NewSessionCache(ctx, cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			pipeline, err := app.NewPipeline(cfg, sessions)
			if err != nil {
				return err
			}

			result := pipeline.RunPipeline(ctx, usecase.PipelineRequest{
				Reference:  args[0],
				ClipLength: length,
				Tier:       tier,
				OutputDir:  out,
			})
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Succeeded() {
				return fmt.Errorf("%w: %s", errRunFailed, result.Reason)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&length, "length", 30, "clip length in seconds")
	cmd.Flags().StringVar(&tier, "tier", "standard", "service tier (standard, premium)")
	cmd.Flags().StringVar(&out, "out", "clips", "directory receiving the finished clips")
	return cmd
}
