// Package daemon coordinates the long-running mediaconv process.
//
// It wires configuration, the SQLite catalog, the conversion queue, the
// encoder gate and the conversion service into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon exposes the
// operations the IPC server and the HTTP API share (queue listing, enqueue,
// retry, history, asset registration and rotation) and serves the HTTP API
// with Prometheus metrics.
//
// Keep orchestration here: conversion decisions live in derivative, queue
// and conversion while the daemon focuses on startup, shutdown and wiring.
package daemon
