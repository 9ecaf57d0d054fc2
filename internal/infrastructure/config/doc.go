// Package config loads server configuration.
//
// Values are layered: built-in defaults, then an optional TOML or YAML file,
// then environment variables (12-factor). Command-line flags are applied on
// top by cmd/server.
package config
