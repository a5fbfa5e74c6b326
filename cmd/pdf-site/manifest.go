package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexjbarnes/pdf-site/internal/config"
	"github.com/alexjbarnes/pdf-site/internal/manifest"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Print the manifest, one key per line",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		store, err := manifest.Open(cfg.ManifestPath)
		if err != nil {
			return err
		}

		m, err := store.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, e := range m.Entries() {
			fmt.Fprintf(out, "%s\t%s\n", e.Key, e.LastModified.Format(time.RFC3339))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(manifestCmd)
}
