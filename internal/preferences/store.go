package preferences

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/prefs/internal/backend"
)

var (
	// ErrInvalidConfiguration is returned for a malformed Configuration.
	ErrInvalidConfiguration = errors.New("invalid preferences configuration")

	// ErrGroupUnavailable is returned by New when the shared group cannot be
	// resolved. It indicates a deployment mistake rather than a transient fault.
	ErrGroupUnavailable = errors.New("shared group unavailable")

	// ErrInvalidKey is returned for an empty key.
	ErrInvalidKey = errors.New("key must not be empty")

	// ErrStorageUnavailable wraps every failure reported by the backing store.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Store gives prefixed access to one backing store. It holds no state beyond
// its immutable configuration and does no locking of its own.
type Store struct {
	config  Configuration
	prefix  string
	backend backend.Backend
	logger  *slog.Logger
}

// New resolves the backing store for cfg.
func New(cfg Configuration, r backend.Resolver) (*Store, error) {
	var (
		b   backend.Backend
		err error
	)
	if id, ok := cfg.Group(); ok {
		b, err = r.Suite(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrGroupUnavailable, id, err)
		}
	} else {
		if cfg.kind == variantNamed {
			if cfg.value == "" {
				return nil, fmt.Errorf("%w: empty namespace name", ErrInvalidConfiguration)
			}
			if strings.TrimSpace(cfg.value) != cfg.value {
				return nil, fmt.Errorf("%w: namespace %q has surrounding whitespace", ErrInvalidConfiguration, cfg.value)
			}
		}
		b, err = r.Standard()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
	}

	return &Store{
		config:  cfg,
		prefix:  cfg.Prefix(),
		backend: b,
		logger:  slog.Default().With("store", cfg.String()),
	}, nil
}

// Configuration returns the configuration the store was built with.
func (s *Store) Configuration() Configuration {
	return s.config
}

func (s *Store) rawKey(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	return s.prefix + key, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// Get returns the value stored under key. A missing key is not an error.
func (s *Store) Get(key string) (string, bool, error) {
	raw, err := s.rawKey(key)
	if err != nil {
		return "", false, err
	}
	v, ok, err := s.backend.Get(raw)
	if err != nil {
		return "", false, unavailable("get", err)
	}
	return v, ok, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	raw, err := s.rawKey(key)
	if err != nil {
		return err
	}
	if err := s.backend.Set(raw, value); err != nil {
		return unavailable("set", err)
	}
	s.logger.Debug("preference set", "key", key)
	return nil
}

// Remove deletes key. Removing an absent key is a no-op.
func (s *Store) Remove(key string) error {
	raw, err := s.rawKey(key)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(raw); err != nil {
		return unavailable("remove", err)
	}
	s.logger.Debug("preference removed", "key", key)
	return nil
}

func (s *Store) rawKeys() ([]string, error) {
	all, err := s.backend.Keys()
	if err != nil {
		return nil, unavailable("keys", err)
	}
	keys := all[:0]
	for _, k := range all {
		if strings.HasPrefix(k, s.prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// RemoveAll deletes every entry under the store's prefix, one key at a time.
// With an empty prefix (LegacyFlatStorage, SharedGroup) that is every entry in
// the backing store, including ones written by other code.
func (s *Store) RemoveAll() error {
	keys, err := s.rawKeys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.backend.Delete(k); err != nil {
			return unavailable("remove all", err)
		}
	}
	s.logger.Debug("preferences cleared", "count", len(keys))
	return nil
}

// Keys returns the keys under the store's prefix with the prefix stripped.
// The order is whatever the backing store enumerates.
func (s *Store) Keys() ([]string, error) {
	raw, err := s.rawKeys()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(raw))
	for i, k := range raw {
		keys[i] = strings.TrimPrefix(k, s.prefix)
	}
	return keys, nil
}
