package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"persona-handler/conf"
	"persona-handler/logging"
)

// Flags override environment
type flags struct {
	profile  string
	history  string
	opsAddr  string
	logLevel string
}

func main() {
	conf.LoadDotEnv()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:          "persona-handler",
		Short:        "Telegram persona bot answering with LLM pipeline",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&f.profile, "profile", "", "profile path (PROFILE_PATH)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level (LOG_LEVEL)")

	run := &cobra.Command{
		Use:   "run",
		Short: "Start bot, history saver and ops server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := f.env()
			if err != nil {
				return err
			}

			// Terminate on termination signal gracefully
			ctx, cancel := signal.NotifyContext(
				cmd.Context(), os.Interrupt, syscall.SIGTERM,
			)
			defer cancel()

			return run(ctx, env, newLogger(env))
		},
	}
	run.Flags().StringVar(&f.history, "history", "", "history file (HISTORY_PATH)")
	run.Flags().StringVar(&f.opsAddr, "ops-addr", "", "ops server address (OPS_ADDR)")

	profile := &cobra.Command{
		Use:   "profile",
		Short: "Inspect profile",
	}
	check := &cobra.Command{
		Use:   "check [path]",
		Short: "Load and validate profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := f.env()
			if err != nil {
				return err
			}
			path := env.ProfilePath
			if len(args) == 1 {
				path = args[0]
			}

			p, err := conf.Load(path, os.LookupEnv)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"profile %s ok: bot %q, steps %v, %d candidate model(s)\n",
				path, p.Options.BotName, p.EnabledSteps(), len(p.Candidates()),
			)
			return nil
		},
	}
	profile.AddCommand(check)
	root.AddCommand(run, profile)
	return root
}

// Reads environment then applies set flags
func (f *flags) env() (conf.Env, error) {
	env, err := conf.ReadEnv(os.LookupEnv)
	if err != nil {
		return conf.Env{}, err
	}
	if f.profile != "" {
		env.ProfilePath = f.profile
	}
	if f.history != "" {
		env.HistoryPath = f.history
	}
	if f.opsAddr != "" {
		env.OpsAddr = f.opsAddr
	}
	if f.logLevel != "" {
		env.LogLevel = f.logLevel
	}
	return env, nil
}

func newLogger(env conf.Env) *logging.Logger {
	return logging.NewWithOptions(logging.Options{
		Level: logging.ParseLevel(env.LogLevel),
		JSON:  env.LogFormat == "json",
	})
}
