// Package api defines wire-format types and converters shared by the HTTP
// API, the JSON-RPC server and the CLI. It translates queue items, assets
// and conversion outcomes into transport-friendly DTOs so consumers never
// couple to internal types.
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status, queue.Kind,
// gallery.RotateFlip) are exposed as lowercase strings and timestamps use
// RFC3339 with milliseconds in UTC.
package api
