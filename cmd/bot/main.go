package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"reviewbot/internal/app"
	"reviewbot/internal/apperr"
	"reviewbot/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if isConfigError(err) {
			fmt.Fprintln(os.Stderr, "configuration error:", err)
		} else {
			fmt.Fprintln(os.Stderr, "fatal:", err)
		}
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "reviewbot",
		Short: "Poll homework review status and report changes to Telegram",
		Long: `reviewbot polls the Practicum homework status API on a fixed interval and
sends a Telegram message whenever the review status of the latest submission
changes.

Required environment: API_TOKEN, BOT_TOKEN, CHAT_ID.
Optional environment: LOG_LEVEL, POLL_INTERVAL, POLL_SCHEDULE, API_ENDPOINT.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(app.Options{ConfigPath: cfgPath, Fs: afero.NewOsFs()})
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "optional YAML or JSON file with non-secret settings")

	root.AddCommand(newCheckCommand(&cfgPath))
	return root
}

// newCheckCommand validates configuration and prints the effective
// settings without starting the poller.
func newCheckCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and print effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := config.NewManager(afero.NewOsFs(), *cfgPath, os.LookupEnv)
			_, st, err := m.Load()
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func printSettings(w io.Writer, st config.Settings) {
	fmt.Fprintf(w, "endpoint:        %s\n", st.Endpoint)
	fmt.Fprintf(w, "chat_id:         %d\n", st.ChatID)
	fmt.Fprintf(w, "interval:        %s\n", st.Interval)
	if st.ScheduleSpec != "" {
		fmt.Fprintf(w, "schedule:        %s\n", st.ScheduleSpec)
	}
	fmt.Fprintf(w, "request_timeout: %s\n", st.RequestTimeout)
	fmt.Fprintf(w, "send_timeout:    %s\n", st.SendTimeout)
	fmt.Fprintf(w, "rate_per_sec:    %d\n", st.RatePerSec)
	fmt.Fprintf(w, "log_level:       %s\n", orDefault(st.Log.Level, "info"))
	fmt.Fprintf(w, "log_file:        %t\n", st.Log.File.Enabled)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func isConfigError(err error) bool {
	return errors.Is(err, apperr.ErrConfiguration)
}
