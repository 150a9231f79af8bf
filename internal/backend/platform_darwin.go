//go:build darwin

package backend

import (
	"fmt"
	"os/exec"
)

func runDefaults(args ...string) ([]byte, error) {
	cmd := exec.Command("defaults", args...)
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("defaults %s: %w", args[0], err)
	}
	return out, nil
}

func newDefaultsResolver(standard string) (Resolver, error) {
	return &defaultsResolver{standard: standard, run: runDefaults}, nil
}

func newPlatformResolver(opts Options) Resolver {
	return &defaultsResolver{standard: opts.Domain, run: runDefaults}
}
