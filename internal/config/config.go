package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kalambet/prefs/internal/backend"
	"github.com/kalambet/prefs/internal/preferences"
)

// SettingsNamespace is the namespace in the standard store that holds the
// tool's own settings.
const SettingsNamespace = "prefs"

type Config struct {
	Backend BackendConfig
	Server  ServerConfig
	Store   StoreConfig
	Log     LogConfig
	API     APIConfig
}

type BackendConfig struct {
	Kind   string
	Dir    string
	Domain string
}

type ServerConfig struct {
	Port     int
	MaxConns int
}

type StoreConfig struct {
	// Default is the textual Configuration used when a request names none.
	Default string
}

type LogConfig struct {
	Level string
}

type APIConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Backend: BackendConfig{
			Kind:   string(backend.KindPlatform),
			Domain: "com.kalambet.prefs",
		},
		Server: ServerConfig{
			Port:     4100,
			MaxConns: 64,
		},
		Store: StoreConfig{
			Default: preferences.DefaultConfiguration().String(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "prefs-data"
		}
	}
	return filepath.Join(dir, "prefs")
}

// BackendOptions converts the backend section into backend.Options.
func (c Config) BackendOptions() backend.Options {
	opts := backend.Options{
		Kind:   backend.Kind(c.Backend.Kind),
		Dir:    c.Backend.Dir,
		Domain: c.Backend.Domain,
	}
	if opts.Dir == "" && opts.Kind == backend.KindSQLite {
		opts.Dir = defaultDataDir()
	}
	return opts
}

// DefaultStore parses Store.Default.
func (c Config) DefaultStore() (preferences.Configuration, error) {
	return preferences.ParseConfiguration(c.Store.Default)
}

// Bootstrap returns the defaults with PREFS_* environment overrides applied.
// It never touches the backing store, so it is safe to call before one is
// opened.
func Bootstrap() Config {
	cfg := defaults()
	applyEnvOverrides(&cfg)
	return cfg
}

// Load reads configuration from defaults, the tool's own namespace in the
// standard backing store, and environment variables.
//
// Backend selection (backend.*) comes only from the environment because it
// decides which store the remaining settings are read from. Environment
// variables (PREFS_*) override stored values on all platforms.
func Load() (Config, error) {
	cfg := Bootstrap()
	r, closeFn, err := backend.Open(cfg.BackendOptions())
	if err != nil {
		return Config{}, fmt.Errorf("opening backend: %w", err)
	}
	defer closeFn()
	return loadWith(cfg, r)
}

func loadWith(cfg Config, r backend.Resolver) (Config, error) {
	settings, err := Settings(r)
	if err != nil {
		return Config{}, err
	}
	if err := applyStore(&cfg, settings); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if _, err := cfg.DefaultStore(); err != nil {
		return Config{}, fmt.Errorf("store.default: %w", err)
	}
	return cfg, nil
}

// Settings opens the tool's settings namespace.
func Settings(r backend.Resolver) (*preferences.Store, error) {
	return preferences.New(preferences.Named(SettingsNamespace), r)
}
