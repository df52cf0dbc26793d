// Package conversion turns gallery saves into derivative files.
//
// Service.EvaluateAndEnqueue is the entry point for request paths: it runs
// the derivative evaluator, consults the encoder gate and enqueues at most
// one item per (asset, kind). It never blocks on an encoder. The Processor
// claims items from the queue, runs the encoder into a temporary sibling of
// the destination, publishes the result atomically and writes the new file
// name and metadata back through the gallery repository.
//
// The background worker started by Service.Start wakes on queue signals and a
// poll interval, drains with bounded concurrency and reclaims items whose
// heartbeat expired.
package conversion
