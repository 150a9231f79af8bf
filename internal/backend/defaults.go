package backend

import (
	"bytes"
	"errors"
	"fmt"

	"howett.net/plist"
)

// runFunc executes the `defaults` tool with args and returns its stdout.
type runFunc func(args ...string) ([]byte, error)

// defaultsBackend talks to the macOS preferences daemon through the
// `defaults` CLI. Enumeration and typed reads go through `defaults export`,
// which emits the whole domain as an XML property list.
type defaultsBackend struct {
	domain string
	run    runFunc
}

// exitCoder is implemented by *exec.ExitError.
type exitCoder interface {
	ExitCode() int
}

// missing reports whether err is the exit status `defaults` uses for a key
// or domain that does not exist.
func missing(err error) bool {
	var ec exitCoder
	return errors.As(err, &ec) && ec.ExitCode() == 1
}

func (b *defaultsBackend) export() (map[string]any, error) {
	out, err := b.run("export", b.domain, "-")
	if err != nil {
		if missing(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("exporting domain '%s': %w", b.domain, err)
	}
	m := map[string]any{}
	if len(bytes.TrimSpace(out)) == 0 {
		return m, nil
	}
	if _, err := plist.Unmarshal(out, &m); err != nil {
		return nil, fmt.Errorf("parsing domain '%s': %w", b.domain, err)
	}
	return m, nil
}

func (b *defaultsBackend) Get(key string) (string, bool, error) {
	m, err := b.export()
	if err != nil {
		return "", false, err
	}
	s, ok := m[key].(string)
	return s, ok, nil
}

func (b *defaultsBackend) Set(key, val string) error {
	if _, err := b.run("write", b.domain, key, "-string", val); err != nil {
		return fmt.Errorf("writing default for key '%s': %w", key, err)
	}
	return nil
}

func (b *defaultsBackend) Delete(key string) error {
	if _, err := b.run("delete", b.domain, key); err != nil {
		if missing(err) {
			return nil
		}
		return fmt.Errorf("deleting default for key '%s': %w", key, err)
	}
	return nil
}

func (b *defaultsBackend) Keys() ([]string, error) {
	m, err := b.export()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys, nil
}

// defaultsResolver maps the standard domain and suites onto `defaults` domains.
type defaultsResolver struct {
	standard string
	run      runFunc
}

func (r *defaultsResolver) Standard() (Backend, error) {
	return &defaultsBackend{domain: r.standard, run: r.run}, nil
}

func (r *defaultsResolver) Suite(id string) (Backend, error) {
	if err := ValidateSuite(id, r.standard); err != nil {
		return nil, err
	}
	return &defaultsBackend{domain: id, run: r.run}, nil
}
