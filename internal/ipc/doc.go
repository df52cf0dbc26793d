// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Queue,
// asset and status payloads reuse the HTTP API representations so both
// surfaces stay in step.
package ipc
