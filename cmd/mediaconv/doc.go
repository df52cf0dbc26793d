// Package main hosts the mediaconv CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the daemon: asset registration and rotation, queue inspection and
// maintenance, durable history, encoder checks and configuration scaffolding.
// It centralizes configuration resolution and socket discovery so subcommands
// can focus on presentation.
//
// The hidden "daemon" command runs the daemon process itself; "start" launches
// it detached.
package main
