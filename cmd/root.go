package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dedpaste/dedpaste/internal/appconfig"
	"github.com/dedpaste/dedpaste/internal/keyfetch"
	"github.com/dedpaste/dedpaste/internal/logging"
	"github.com/dedpaste/dedpaste/internal/paste"
	"github.com/dedpaste/dedpaste/internal/resolver"
	"github.com/dedpaste/dedpaste/internal/store"
	"github.com/spf13/cobra"
)

var (
	Version   = "development"
	BuildTime = "unknown"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "dedpaste",
	Short: "Encrypted paste sharing from the command line",
	Long: `dedpaste encrypts plaintext into a self-describing envelope before
handing it to a paste service, and reverses the operation on retrieval.

Recipients are resolved across a local key store, imported OpenPGP
keys, Keybase, GitHub, and a host OpenPGP agent.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
}

// initLogging points the process-wide logger at ~/.dedpaste/logs/dedpaste.log,
// falling back to stderr if the home directory can't be created.
func initLogging() error {
	ctx, err := appconfig.Default()
	if err != nil {
		logging.Init(logLevel, os.Stderr)
		return nil
	}
	logPath := ctx.LogsPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		logging.Init(logLevel, os.Stderr)
		return nil
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		logging.Init(logLevel, os.Stderr)
		return nil
	}
	logging.Init(logLevel, f)
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dedpaste version %s (built %s)\n", Version, BuildTime)
	},
}

// buildContext loads the appconfig.Context every subcommand shares,
// layering the optional keyservers.ini override over the documented
// defaults.
func buildContext() (*appconfig.Context, error) {
	ctx, err := appconfig.Default()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	if err := ctx.LoadFile(); err != nil {
		return nil, fmt.Errorf("loading config.yaml: %w", err)
	}
	if err := ctx.LoadKeyserverOverride(); err != nil {
		return nil, fmt.Errorf("loading keyservers.ini: %w", err)
	}
	return ctx, nil
}

// buildOrchestrator wires C1-C3 and C6 together the way every
// subcommand needs them: a key store, a fetch client, a resolver, and
// the top-level orchestrator.
func buildOrchestrator() (*paste.Orchestrator, *appconfig.Context, *store.Store, error) {
	ctx, err := buildContext()
	if err != nil {
		return nil, nil, nil, err
	}
	st, err := store.New(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	fetch, err := keyfetch.New(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	res := resolver.New(ctx, st, fetch)
	orch := paste.New(ctx, st, res)
	return orch, ctx, st, nil
}
