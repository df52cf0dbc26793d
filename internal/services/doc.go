// Package services defines shared utilities consumed by the conversion
// pipeline and its integrations.
//
// Key responsibilities:
//   - Context helpers that stamp conversion item IDs, asset IDs, kinds and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and KindOf which maps a
//     failure onto the error kind recorded on a conversion item.
//
// Use these helpers when wiring new pipeline code so error classification and
// observability stay uniform.
package services
