// Package preflight provides readiness checks for the filesystem paths and
// external binaries mediaconv depends on.
//
// These checks run in two contexts:
//   - The daemon runner calls RunAll at startup and logs every failure.
//     Failures never block startup; a missing encoder only suppresses
//     enqueueing.
//   - The CLI "mediaconv status" command uses the same checks to display
//     readiness when the daemon is offline.
package preflight
