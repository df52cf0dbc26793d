// Package config loads, normalizes, and validates mediaconv configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// MEDIACONV_FFMPEG and MEDIACONV_API_TOKEN. The Config type centralizes every
// knob the daemon and CLI need, including the encoder profiles that map a
// source format and conversion kind onto an ffmpeg argument template.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
