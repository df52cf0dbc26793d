// Package derivative decides whether a gallery asset needs derivative work.
//
// The evaluators are pure apart from a file existence check through an
// injected FileChecker: they never enqueue, never touch the encoder, and
// report missing files as a Decision rather than an error.
package derivative
