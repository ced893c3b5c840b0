// Package config loads, normalizes and validates reelvault's TOML
// configuration. Load resolves an explicit path, then
// ~/.config/reelvault/config.toml, then ./reelvault.toml, falling back to
// built-in defaults when no file exists.
package config
