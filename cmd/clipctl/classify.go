package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/hszk-dev/clipstream/internal/acquisition"
)

type classifyOutput struct {
	Reason   string `json:"reason"`
	Terminal bool   `json:"terminal"`
	Rule     string `json:"rule,omitempty"`
}

func newClassifyCmd() *cobra.Command {
	var rules []string

	cmd := &cobra.Command{
		Use:   "classify <tool output>",
		Short: "Classify acquisition tool output into a failure reason",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extra, err := acquisition.ParseRules(rules)
			if err != nil {
				return err
			}

			c := acquisition.NewClassifier(extra...).ClassifyText(strings.Join(args, " "))
			return printJSON(cmd.OutOrStdout(), classifyOutput{
				Reason:   c.Reason.String(),
				Terminal: c.Terminal,
				Rule:     c.Rule,
			})
		},
	}

	cmd.Flags().StringSliceVar(&rules, "rule", nil, "extra reason=pattern rule, consulted before the defaults")
	return cmd
}
