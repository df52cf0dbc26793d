// Package catalog persists gallery assets and conversion history in SQLite.
//
// Store implements gallery.Repository for the conversion processor and
// queue.HistorySink for durable history. The schema is embedded and
// version-checked at open; a mismatch requires deleting the database.
// Writes retry on SQLITE_BUSY with exponential backoff so the daemon, the
// library watcher and CLI-triggered saves can share one file.
package catalog
