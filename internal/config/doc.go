// Package config loads, normalizes, and validates Shipyard configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SENDGRID_API_KEY and SHIPYARD_STORAGE_SECRET_KEY. The Config type centralizes
// every knob the worker daemon and CLI need: work/output directories, the
// admission cap, batch defaults, and delivery credentials.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
