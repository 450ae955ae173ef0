// Package optimizer runs the per-file convergence loop.
//
// A task moves Init → RunningIteration → (Converged | Aborted). Every
// iteration applies each engine step once, in order, and verifies its
// output before anything reaches the canonical file. The loop stops after
// the first iteration that saved fewer than Threshold bytes.
package optimizer
