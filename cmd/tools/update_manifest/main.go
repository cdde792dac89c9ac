package main

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/models"
)

func main() {
	var manifestPath string

	cmd := &cobra.Command{
		Use:           "update_manifest",
		Short:         "Recompute SHA-256 and size for every model file in the manifest",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(manifestPath)
			if err != nil {
				return fmt.Errorf("open manifest: %w", err)
			}
			manifest, err := models.LoadManifest(bytes.NewReader(raw))
			if err != nil {
				return fmt.Errorf("parse manifest: %w", err)
			}

			out := cmd.OutOrStdout()
			client := &http.Client{Timeout: 30 * time.Minute}
			manifest = manifest.Refresh(cmd.Context(), client, func(variant, precision string, err error) {
				fmt.Fprintf(os.Stderr, "%s/%s: %v\n", variant, precision, err)
			})
			for _, name := range manifest.VariantNames() {
				for precision, file := range manifest.Variants[name].Files {
					fmt.Fprintf(out, "%s/%s: size=%d sha256=%s\n", name, precision, file.SizeBytes, file.SHA256)
				}
			}

			var buf bytes.Buffer
			if err := manifest.Encode(&buf); err != nil {
				return err
			}
			if err := os.WriteFile(manifestPath, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write manifest: %w", err)
			}
			fmt.Fprintf(out, "Updated manifest written to %s\n", manifestPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "internal/models/manifest.yaml", "path to the manifest YAML to update")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "update_manifest: %v\n", err)
		os.Exit(1)
	}
}
