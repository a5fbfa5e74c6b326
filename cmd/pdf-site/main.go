package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pdf-site",
	Short: "Mirror a bucket of dated PDFs and publish an index page",
	Long: `pdf-site downloads new and updated PDFs from an object storage bucket
into a local mirror directory, then renders an HTML index listing the most
recent editions, newest first.

Run without a subcommand it does a full pass: sync, then render.
Configuration comes from the environment (or a .env file).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.finish()

		if _, err := a.sync(cmd.Context(), false); err != nil {
			return err
		}

		return a.render()
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
