package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/config"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/models"
)

func main() {
	if err := newCommand(defaultDir(nil)).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "download_model: %v\n", err)
		os.Exit(1)
	}
}

// defaultDir is the directory the worker reads models from, so a prefetched
// file is found without another download. environ nil means the process environment.
func defaultDir(environ map[string]string) string {
	cfg, err := config.Loader{Environ: environ}.Load()
	if err != nil {
		return config.DefaultModelDirectory()
	}
	return cfg.ModelDir
}

func newCommand(dir string) *cobra.Command {
	var (
		variant     string
		computeType string
		output      string
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:           "download_model",
		Short:         "Prefetch a whisper model file into the model cache",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(output) == "" {
				return fmt.Errorf("--dir must not be empty")
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}))

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			manager, err := models.NewManager(filepath.Clean(output), logger)
			if err != nil {
				return fmt.Errorf("init manager: %w", err)
			}
			manifest, err := models.DefaultManifest()
			if err != nil {
				return fmt.Errorf("load manifest: %w", err)
			}

			path, err := manager.EnsureVariant(ctx, variant, models.EnsureOptions{
				Manifest:      manifest,
				ComputeType:   computeType,
				AllowDownload: true,
			})
			if err != nil {
				return fmt.Errorf("ensure variant %q: %w", variant, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Model %q (%s) ready at %s\n", variant, computeType, path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&variant, "variant", config.DefaultModel, "model variant defined in internal/models/manifest.yaml")
	flags.StringVar(&computeType, "compute-type", config.DefaultComputeType, "compute type used to pick the file precision")
	flags.StringVar(&output, "dir", dir, "directory where model files are stored")
	flags.DurationVar(&timeout, "timeout", 15*time.Minute, "download deadline")
	return cmd
}
