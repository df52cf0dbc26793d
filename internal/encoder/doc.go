// Package encoder wraps the external tools that produce derivatives.
//
// Gate answers whether conversions can run at all (binary present, profile
// configured) without starting a process. Invokers run one conversion into a
// caller-chosen target path: FFmpeg executes argument templates in their own
// process group so a timeout kills every child, and Drapto drives the
// embedded AV1 encoder for optimized video. Dispatcher picks between them.
package encoder
