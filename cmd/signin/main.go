// Command signin signs in from a terminal with the desktop Google flow or a Supabase
// project, and keeps the resulting credentials in a local or shared store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	a := &app{cfg: cfg, out: os.Stdout}
	err = newRootCmd(a).ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil {
		fmt.Fprintln(os.Stderr, cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "signin",
		Short:        "Sign in with Google or Supabase from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: debug|info|warn|error (env SIGNIN_LOG_LEVEL)")
	f.StringVar(&a.cfg.LogFormat, "log-format", a.cfg.LogFormat, "log format: text|json (env SIGNIN_LOG_FORMAT)")
	f.StringVar(&a.cfg.ProvidersFile, "providers", a.cfg.ProvidersFile, "YAML file with provider configs (env SIGNIN_PROVIDERS_FILE)")
	f.StringVar(&a.cfg.Store, "store", a.cfg.Store, "credential store: file|redis|memory (env SIGNIN_STORE)")
	f.StringVar(&a.cfg.TokenDir, "token-dir", a.cfg.TokenDir, "directory of the file store (env SIGNIN_TOKEN_DIR)")
	f.StringVar(&a.cfg.Redis.ConnectionURL, "redis-url", a.cfg.Redis.ConnectionURL, "redis url of the redis store (env SIGNIN_REDIS_URL)")
	f.StringVar(&a.cfg.MetricsFile, "metrics-file", a.cfg.MetricsFile, "write prometheus metrics to this file on exit (env SIGNIN_METRICS_FILE)")

	root.AddCommand(newGoogleCmd(a), newSupabaseCmd(a))
	return root
}
