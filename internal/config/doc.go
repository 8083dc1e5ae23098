// Package config loads, normalizes, and validates the TOML configuration
// shared by the CLI and daemon. Defaults live in defaults.go; every path
// field is expanded and made absolute before other packages see it.
package config
