package main

import (
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the index page from the local mirror",
	Long: `Render scans the mirror directory, picks the newest MAX_PDFS documents
and writes the index page. It never contacts the bucket.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.finish()

		return a.render()
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
}
