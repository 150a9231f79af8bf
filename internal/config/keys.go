package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/kalambet/prefs/internal/preferences"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key string
	typ keyType
	env string
	// bootstrap keys select the backing store and are read from the
	// environment only.
	bootstrap bool
	secret    bool
	// validate, when set, checks stored string values on read and on SetKey.
	validate func(v string) error
	apply    func(cfg *Config, v any)
	extract  func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "backend.kind", typ: kString, env: "PREFS_BACKEND", bootstrap: true,
		apply:   func(cfg *Config, v any) { cfg.Backend.Kind = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.Kind },
	},
	{
		key: "backend.dir", typ: kString, env: "PREFS_BACKEND_DIR", bootstrap: true,
		apply:   func(cfg *Config, v any) { cfg.Backend.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.Dir },
	},
	{
		key: "backend.domain", typ: kString, env: "PREFS_BACKEND_DOMAIN", bootstrap: true,
		apply:   func(cfg *Config, v any) { cfg.Backend.Domain = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.Domain },
	},
	{
		key: "server.port", typ: kInt, env: "PREFS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_conns", typ: kInt, env: "PREFS_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: "store.default", typ: kString, env: "PREFS_STORE",
		validate: func(v string) error {
			_, err := preferences.ParseConfiguration(v)
			return err
		},
		apply:   func(cfg *Config, v any) { cfg.Store.Default = v.(string) },
		extract: func(cfg Config) any { return cfg.Store.Default },
	},
	{
		key: "log.level", typ: kString, env: "PREFS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "api.token", typ: kString, env: "PREFS_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
}

// valueGetter is the read side of a preferences.Store.
type valueGetter interface {
	Get(key string) (string, bool, error)
}

func applyStore(cfg *Config, g valueGetter) error {
	for _, s := range specs {
		if s.secret || s.bootstrap {
			continue
		}
		v, ok, err := g.Get(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || v == "" {
			continue
		}
		switch s.typ {
		case kString:
			if s.validate != nil {
				if err := s.validate(v); err != nil {
					fmt.Fprintf(os.Stderr, "[WARN] invalid value for config key %s=%q: %v. Using default value.\n", s.key, v, err)
					continue
				}
			}
			s.apply(cfg, v)
		case kInt:
			if i, err := strconv.Atoi(v); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from config key %s=%q: %v. Using default value.\n", s.key, v, err)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
