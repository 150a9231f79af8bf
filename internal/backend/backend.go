package backend

import (
	"errors"
	"fmt"
	"strings"
)

// GlobalDomain is the name the platform reserves for its process-wide
// domain. It can never be opened as a suite.
const GlobalDomain = "NSGlobalDomain"

var (
	// ErrInvalidSuite is returned when a suite identifier cannot be resolved
	// to a backing store.
	ErrInvalidSuite = errors.New("invalid suite identifier")

	// ErrUnknownKind is returned by Open for an unsupported backend kind.
	ErrUnknownKind = errors.New("unknown backend kind")
)

// Backend abstracts a persistent string dictionary for one domain.
// macOS uses UserDefaults (via `defaults` CLI), other platforms a JSON file
// per domain; SQLite and in-memory stores are available everywhere.
type Backend interface {
	Get(key string) (val string, ok bool, err error)
	Set(key, val string) error
	Delete(key string) error
	Keys() ([]string, error)
}

// Resolver hands out backends: the standard one for the application domain
// and separate ones for shared suites.
type Resolver interface {
	Standard() (Backend, error)
	Suite(id string) (Backend, error)
}

// Kind names a backend implementation.
type Kind string

const (
	KindPlatform Kind = "platform"
	KindDefaults Kind = "defaults"
	KindFile     Kind = "file"
	KindSQLite   Kind = "sqlite"
	KindMemory   Kind = "memory"
)

// Options configures Open.
type Options struct {
	Kind Kind
	// Domain is the standard domain, e.g. a bundle identifier.
	Domain string
	// Dir holds file and sqlite data. Ignored by other kinds.
	Dir string
}

// Open returns a Resolver for the requested kind. The returned closer must be
// called once the resolver is no longer used.
func Open(opts Options) (Resolver, func() error, error) {
	if opts.Domain == "" {
		return nil, nil, fmt.Errorf("backend domain is required")
	}
	noop := func() error { return nil }

	switch opts.Kind {
	case KindPlatform, "":
		return newPlatformResolver(opts), noop, nil
	case KindDefaults:
		r, err := newDefaultsResolver(opts.Domain)
		if err != nil {
			return nil, nil, err
		}
		return r, noop, nil
	case KindFile:
		return NewFileResolver(opts.Dir, opts.Domain), noop, nil
	case KindSQLite:
		r, err := OpenSQLite(opts.Dir, opts.Domain)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	case KindMemory:
		return NewMemoryResolver(opts.Domain), noop, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownKind, opts.Kind)
	}
}

// ValidateSuite reports whether id may be opened as a suite next to the
// standard domain. The rules follow UserDefaults(suiteName:), which refuses
// the global domain and the application's own domain.
func ValidateSuite(id, standard string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: empty", ErrInvalidSuite)
	case strings.TrimSpace(id) != id:
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidSuite, id)
	case strings.ContainsAny(id, "/\x00"):
		return fmt.Errorf("%w: %q contains a path separator or NUL", ErrInvalidSuite, id)
	case id == GlobalDomain:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidSuite, id)
	case id == standard:
		return fmt.Errorf("%w: %q is the standard domain", ErrInvalidSuite, id)
	}
	return nil
}
