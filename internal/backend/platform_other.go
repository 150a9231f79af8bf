//go:build !darwin

package backend

import "fmt"

func newDefaultsResolver(string) (Resolver, error) {
	return nil, fmt.Errorf("%w: defaults is only available on macOS", ErrUnknownKind)
}

// newPlatformResolver stores preferences as JSON files in an XDG-compatible
// directory. This is the default for Linux and other non-macOS platforms.
func newPlatformResolver(opts Options) Resolver {
	return NewFileResolver(opts.Dir, opts.Domain)
}
