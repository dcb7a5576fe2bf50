// Package pool implements the worker pool and split-point machinery for a
// parallel alpha-beta search using the Young Brothers Wait Concept (YBWC).
//
// One worker per configured thread, parked on a condition variable while
// idle. A worker that reaches an interior node with enough remaining depth
// becomes a "master": it records a SplitPoint on its own stack, books every
// available peer as a slave of that split point, and then helps with the
// remaining moves itself through the generic idle loop. When the last slave
// retires, the master rejoins the aggregated result and continues its
// sequential search above the split.
//
// Key rules:
//   - Helpful master: a worker that masters live split points may only
//     slave for workers currently searching its topmost split point, so it
//     can never end up blocked on its own subtree.
//   - A beta cut-off at a split point is recorded once and propagated down
//     the parent chain; slaves poll it and abandon work early.
//   - Lock order is pool mutex, then split-point mutex. Worker mutexes are
//     held only for the micro-sections around condition variables.
//
// The pool also owns the shared search state the workers operate on (root
// position, root move list, limits and stop signals) plus the timer worker
// that drives the external time check.
package pool
