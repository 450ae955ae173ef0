// Package engine invokes the external PNG compression engines against a
// task's working copy.
//
// Each engine is described by a [Spec] (command, probe arguments, whether
// it needs a fresh copy of the canonical file, and its argument lists) and
// run through a [Command], which implements [Step]. A Command reports an
// explicit [Result] and never decides whether its output is kept; that is
// the verifier's job.
package engine
