// Package gallery defines the asset model shared by the conversion pipeline
// and its persistence layer: media classification, physical path resolution,
// pending orientation changes, and the Repository boundary.
package gallery
