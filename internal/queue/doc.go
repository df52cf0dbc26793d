// Package queue tracks conversion work in memory for the lifetime of the
// process.
//
// The Queue enforces the deduplication rule (at most one waiting or processing
// item per asset and kind), hands out work in FIFO order through claims, and
// accepts terminal transitions only from the current claim holder. Processing
// items heartbeat while the encoder runs; ReclaimStale fails items whose
// holder went silent. Terminal items are kept in a bounded history and can be
// forwarded to a HistorySink for durable storage.
//
// The queue is not persisted. Construct one per process and inject it; there
// is no package-level instance.
package queue
