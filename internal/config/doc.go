// Package config loads, validates, and normalizes KiComport configuration.
//
// Configuration lives in a TOML file (default ~/.config/kicomport/config.toml,
// or ./kicomport.toml for project-local setups). Load applies repository
// defaults first, overlays the file when present, expands "~" in every path
// field, and validates the result. Components receive a *Config explicitly;
// nothing in this repository reads configuration from process globals.
package config
