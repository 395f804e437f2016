package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chime/internal/alarm"
)

var (
	alarmLabel string
	alarmDays  string

	alarmCmd = &cobra.Command{
		Use:   "alarm",
		Short: "Manage alarms.",
	}

	alarmAddCmd = &cobra.Command{
		Use:   "add <HH:MM> <sequence>",
		Short: "Create an alarm and install its trigger.",
		Long: `Creates an enabled alarm firing at the given time and installs the host
trigger immediately. --days selects recurrence: "once" (default) fires at the
next occurrence and deletes itself, "daily", or a comma list like "mon,wed,fri".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := alarm.ParseClock(args[0])
			if err != nil {
				return err
			}
			days, err := alarm.ParseDays(alarmDays)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, stop := signalContext()
			defer stop()

			rec := alarm.New(alarmLabel, at, days, args[1])
			if err := a.Registry.Save(ctx, rec); err != nil {
				return err
			}

			caps := a.Adapter.Caps()
			fmt.Printf("alarm %s installed: %s %s -> %s\n", rec.ID, rec.At, rec.DaysString(), rec.Sequence)
			if caps.RequiresForegroundProcess {
				fmt.Println("note: this scheduler only fires while chime (or your session) is running")
			}
			if caps.NeedsPriorAuthorization {
				fmt.Println("note: the host scheduler may need prior authorization (e.g. cron.allow)")
			}
			return nil
		},
	}

	alarmListCmd = &cobra.Command{
		Use:   "list",
		Short: "List alarms.",
		RunE: func(*cobra.Command, []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, stop := signalContext()
			defer stop()

			alarms, err := a.Registry.List(ctx)
			if err != nil {
				return err
			}
			if len(alarms) == 0 {
				fmt.Println("no alarms")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tDAYS\tSEQUENCE\tENABLED\tLABEL")
			for _, rec := range alarms {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
					rec.ID, rec.At, rec.DaysString(), rec.Sequence, rec.Enabled, rec.Label)
			}
			return w.Flush()
		},
	}

	alarmRemoveCmd = &cobra.Command{
		Use:   "remove <alarm-id>",
		Short: "Delete an alarm and its trigger.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, stop := signalContext()
			defer stop()
			return a.Registry.Delete(ctx, args[0])
		},
	}

	alarmEnableCmd = &cobra.Command{
		Use:   "enable <alarm-id>",
		Short: "Enable an alarm (installs its trigger).",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(args[0], true) },
	}

	alarmDisableCmd = &cobra.Command{
		Use:   "disable <alarm-id>",
		Short: "Disable an alarm (removes its trigger, keeps the record).",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(args[0], false) },
	}
)

func setEnabled(alarmID string, enabled bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx, stop := signalContext()
	defer stop()
	return a.Registry.SetEnabled(ctx, alarmID, enabled)
}

func init() {
	alarmAddCmd.Flags().StringVar(&alarmLabel, "label", "", "human-readable label")
	alarmAddCmd.Flags().StringVar(&alarmDays, "days", "once",
		`recurrence: "once", "daily" or e.g. "mon,wed,fri"`)

	alarmCmd.AddCommand(alarmAddCmd, alarmListCmd, alarmRemoveCmd, alarmEnableCmd, alarmDisableCmd)
	rootCmd.AddCommand(alarmCmd)
}
