package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Heal drift between alarm records and host triggers.",
	Long: `Removes owned triggers whose alarm was deleted or disabled and reinstalls
triggers for enabled alarms that lost theirs. Safe to run at any time; serve
runs the same pass periodically.`,
	RunE: func(*cobra.Command, []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx, stop := signalContext()
		defer stop()

		if err := a.Registry.Reconcile(ctx); err != nil {
			return err
		}
		fmt.Println("reconciled")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
