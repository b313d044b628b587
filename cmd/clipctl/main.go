// Command clipctl runs the clip pipeline in-process and exposes its
// building blocks for debugging.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		verbose bool
		envFile string
	)

	root := &cobra.Command{
		Use:           "clipctl",
		Short:         "Produce short vertical clips from a video reference",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return loadEnv(envFile)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress to stderr")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "load settings from this file instead of ./.env")

	root.AddCommand(newRunCmd(), newWindowsCmd(), newClassifyCmd())
	return root
}

// loadEnv fills unset environment variables from a dotenv file.
// A missing ./.env is not an error; a missing explicit file is.
func loadEnv(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file loaded", slog.String("error", err.Error()))
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
