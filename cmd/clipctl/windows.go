package main

import (
	"github.com/spf13/cobra"

	"github.com/hszk-dev/clipstream/internal/domain/model"
	"github.com/hszk-dev/clipstream/internal/hotspot"
)

func newWindowsCmd() *cobra.Command {
	var (
		duration float64
		length   float64
		count    int
		minGap   float64
	)

	cmd := &cobra.Command{
		Use:   "windows <reference>",
		Short: "Print the highlight windows generated for a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseReference(args[0])
			if err != nil {
				return err
			}

			cfg := hotspot.DefaultConfig()
			cfg.MinGap = minGap
			windows, err := hotspot.NewGenerator(cfg).Generate(id, length, duration, count)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), windows)
		},
	}

	cmd.Flags().Float64Var(&duration, "duration", 600, "media duration in seconds")
	cmd.Flags().Float64Var(&length, "length", 30, "window length in seconds")
	cmd.Flags().IntVar(&count, "count", 3, "number of windows")
	cmd.Flags().Float64Var(&minGap, "min-gap", hotspot.DefaultConfig().MinGap, "minimum seconds between window starts")
	return cmd
}
