// Package dedupe remembers recently claimed keys so retried requests can be
// recognized and rejected.
//
// A Window holds at most a fixed number of keys, each for a fixed duration.
// Expired keys are dropped lazily while claiming, so a Window needs no
// background goroutine and no Close.
package dedupe
