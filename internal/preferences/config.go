package preferences

import (
	"fmt"
	"strings"
)

// DefaultGroup is the shared suite used when the host does not choose one.
const DefaultGroup = "group.SharedCapacitorStorage"

type variant int

const (
	variantNamed variant = iota
	variantLegacy
	variantGroup
)

// Configuration selects where a Store keeps its entries. Exactly one of the
// three variants is active; the zero value is Named("") and is rejected by New.
type Configuration struct {
	kind  variant
	value string
}

// Named keeps entries in the standard store under the prefix name + ".".
func Named(name string) Configuration {
	return Configuration{kind: variantNamed, value: name}
}

// LegacyFlatStorage keeps entries unprefixed in the standard store.
func LegacyFlatStorage() Configuration {
	return Configuration{kind: variantLegacy}
}

// SharedGroup keeps entries unprefixed in the suite identified by groupID.
func SharedGroup(groupID string) Configuration {
	return Configuration{kind: variantGroup, value: groupID}
}

// DefaultConfiguration is SharedGroup(DefaultGroup).
func DefaultConfiguration() Configuration {
	return SharedGroup(DefaultGroup)
}

// Prefix returns the raw-key prefix for this configuration.
func (c Configuration) Prefix() string {
	if c.kind == variantNamed {
		return c.value + "."
	}
	return ""
}

// Group returns the suite identifier and true for SharedGroup configurations.
func (c Configuration) Group() (string, bool) {
	return c.value, c.kind == variantGroup
}

// String renders the configuration in the form accepted by ParseConfiguration.
func (c Configuration) String() string {
	switch c.kind {
	case variantLegacy:
		return "legacy"
	case variantGroup:
		return "group:" + c.value
	default:
		return "named:" + c.value
	}
}

// ParseConfiguration parses "named:<name>", "legacy" or "group:<id>".
// Whitespace around the whole input is ignored. New rejects names and group
// identifiers with surrounding whitespace, so every configuration it accepts
// survives a String/ParseConfiguration round trip.
func ParseConfiguration(s string) (Configuration, error) {
	s = strings.TrimSpace(s)
	if s == "legacy" {
		return LegacyFlatStorage(), nil
	}
	kind, value, ok := strings.Cut(s, ":")
	if !ok || value == "" {
		return Configuration{}, fmt.Errorf("%w: %q (want named:<name>, legacy or group:<id>)", ErrInvalidConfiguration, s)
	}
	switch kind {
	case "named":
		return Named(value), nil
	case "group":
		return SharedGroup(value), nil
	}
	return Configuration{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidConfiguration, kind)
}
