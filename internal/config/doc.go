// Package config loads, normalizes, and validates LauschR configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LAUSCHR_BASE_URL. The Config type centralizes every knob the feed services
// and CLI need: storage directories, upload limits, feed output limits, and
// the role permission table.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
