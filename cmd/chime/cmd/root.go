package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"chime/internal/app"
)

var (
	// configPath stores the path to the configuration file.
	configPath string
	// executeSequence is the alarm ID (or sequence name) to fire headlessly.
	executeSequence string
	// checkOnly validates config and scheduler availability, then exits.
	checkOnly bool

	rootCmd = &cobra.Command{
		Use:   "chime",
		Short: "Schedule alarms as native OS triggers and fire media sequences.",
		Long: `chime turns alarm records into host-native scheduled triggers (crontab,
launchd or Windows Task Scheduler) that call back into this binary to run an
action sequence: play media, raise brightness and volume, keep the machine
awake.

Triggers survive reboots and do not need a running daemon on platforms with a
native facility; 'chime serve' adds periodic reconciliation and an in-process
fallback scheduler.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if executeSequence != "" {
				os.Exit(runFire(executeSequence))
			}
			if checkOnly {
				return runCheck()
			}
			return cmd.Help()
		},
	}
)

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(),
		"path to configuration file")
	rootCmd.Flags().StringVar(&executeSequence, "execute-sequence", "",
		"fire the sequence for the given alarm ID (used by installed triggers)")
	rootCmd.Flags().BoolVar(&checkOnly, "check", false,
		"validate configuration and scheduler availability, then exit")
}

func defaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "chime.yaml"
	}
	return filepath.Join(base, "chime", "chime.yaml")
}

// newApp builds the application or fails the command.
func newApp() (*app.App, error) {
	a, err := app.New(configPath)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return a, nil
}

// signalContext is canceled on SIGTERM/SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

func runFire(ref string) int {
	a, err := app.New(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chime: %v\n", err)
		return app.ExitInit
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()
	return a.Fire(ctx, ref)
}

func runCheck() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	if _, err := a.Adapter.List(ctx); err != nil {
		return fmt.Errorf("scheduler %s: %w", a.Adapter.Platform(), err)
	}

	caps := a.Adapter.Caps()
	fmt.Printf("config:    %s\n", a.Config.Path())
	fmt.Printf("scheduler: %s (wake-from-sleep=%t, needs-foreground=%t, prior-auth=%t)\n",
		a.Adapter.Platform(),
		caps.SupportsWakeFromSleep,
		caps.RequiresForegroundProcess,
		caps.NeedsPriorAuthorization)
	fmt.Printf("sequences: %s\n", a.Sequences.Dir())
	return nil
}
