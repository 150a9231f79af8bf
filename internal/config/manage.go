package config

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/kalambet/prefs/internal/backend"
)

// tokenKey is where the generated API token is kept in the settings namespace.
const tokenKey = "api.token"

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all config key/value pairs from the current config.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		if s.secret {
			continue
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  fmt.Sprintf("%v", s.extract(cfg)),
		})
	}
	return result
}

// SetKey validates key and value and writes them to the settings namespace.
func SetKey(r backend.Resolver, key, value string) error {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
		}
		if s.bootstrap {
			return fmt.Errorf("%q selects the backing store and can only be set via environment variable %s", key, s.env)
		}
		switch s.typ {
		case kInt:
			if _, err := strconv.Atoi(value); err != nil {
				return fmt.Errorf("invalid integer value for %s: %w", key, err)
			}
		case kString:
			if s.validate != nil {
				if err := s.validate(value); err != nil {
					return err
				}
			}
		}

		settings, err := Settings(r)
		if err != nil {
			return err
		}
		return settings.Set(key, value)
	}

	return fmt.Errorf("unknown config key: %q", key)
}

// ValidKeys returns the list of config keys that SetKey accepts.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret && !s.bootstrap {
			keys = append(keys, s.key)
		}
	}
	return keys
}

// GetAPIToken returns the bearer token for the HTTP API. PREFS_API_TOKEN wins;
// otherwise a token is read from the settings namespace, generating and
// saving one on first use.
func GetAPIToken(cfg Config, r backend.Resolver) (string, error) {
	if cfg.API.Token != "" {
		return cfg.API.Token, nil
	}

	settings, err := Settings(r)
	if err != nil {
		return "", err
	}
	token, ok, err := settings.Get(tokenKey)
	if err != nil {
		return "", fmt.Errorf("reading API token: %w", err)
	}
	if ok && token != "" {
		return token, nil
	}

	token = uuid.NewString()
	if err := settings.Set(tokenKey, token); err != nil {
		return "", fmt.Errorf("saving API token: %w", err)
	}
	return token, nil
}
