package cmd

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciling daemon.",
	Long: `Runs until interrupted: reconciles alarms against host triggers at startup
and on an interval, reloads configuration when the file changes, and hosts the
in-process scheduler when the configured backend is 'inprocess'.`,
	RunE: func(*cobra.Command, []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()
		return a.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
