package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download new and updated PDFs into the mirror",
	Long: `Sync lists the bucket, compares it against the manifest and downloads
objects that are new or have a newer modification time. Objects that fail
to download are retried on the next run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.finish()

		res, err := a.sync(cmd.Context(), dryRun)
		if err != nil {
			return err
		}

		if dryRun {
			out := cmd.OutOrStdout()
			for _, obj := range res.Delta {
				fmt.Fprintf(out, "%s\t%s\t%d\n", obj.Key, obj.LastModified.Format(time.RFC3339), obj.Size)
			}
		}

		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("dry-run", false, "list what would be downloaded without fetching")

	rootCmd.AddCommand(syncCmd)
}
