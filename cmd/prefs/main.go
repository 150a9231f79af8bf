package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/prefs/internal/backend"
	"github.com/kalambet/prefs/internal/config"
	"github.com/kalambet/prefs/internal/preferences"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "prefs",
	Short:         "Read and write namespaced preferences in the platform store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("NO_COLOR") != "" {
			noColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("store", "", "store to use: named:<name>, legacy or group:<id> (default from store.default)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(getCmd, setCmd, removeCmd, clearCmd, keysCmd)
	rootCmd.AddCommand(configCmd, serveCmd, statusCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, "%v", err)
		// A shared group that cannot be opened is a setup problem, not a
		// runtime failure; give it its own exit status.
		if errors.Is(err, preferences.ErrGroupUnavailable) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// openBackend loads configuration and opens the backing store it selects.
// Tests replace it with an in-memory resolver.
var openBackend = func() (config.Config, backend.Resolver, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	r, closeFn, err := backend.Open(cfg.BackendOptions())
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("opening backend: %w", err)
	}
	return cfg, r, closeFn, nil
}

// storeConfiguration returns the --store flag, falling back to store.default.
func storeConfiguration(cmd *cobra.Command, cfg config.Config) (preferences.Configuration, error) {
	name, _ := cmd.Flags().GetString("store")
	if name == "" {
		return cfg.DefaultStore()
	}
	return preferences.ParseConfiguration(name)
}

// withStore opens the selected store, runs fn and closes the backend.
func withStore(cmd *cobra.Command, fn func(*preferences.Store) error) error {
	cfg, r, closeFn, err := openBackend()
	if err != nil {
		return err
	}
	defer closeFn()

	setupLogging(cfg.Log.Level)

	storeCfg, err := storeConfiguration(cmd, cfg)
	if err != nil {
		return err
	}
	store, err := preferences.New(storeCfg, r)
	if err != nil {
		return err
	}
	return fn(store)
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
