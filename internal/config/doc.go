// Package config loads the greeterd runtime configuration from a JSON, YAML or
// TOML file, layers environment overrides on top and validates the result.
// The configured message is kept as a pointer so an explicitly empty value can
// be told apart from a missing one.
package config
