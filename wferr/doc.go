// Package wferr defines the closed set of error kinds produced by the
// workflow engine (graph validation, node execution, emergency gating,
// and infrastructure failures) and a single Error type that carries a
// machine-readable Kind alongside the usual wrapped cause.
//
// Call sites that need to recover the kind use [KindOf] rather than
// string-matching on Error(); call sites that only care whether a
// specific failure occurred use [Is] with the Kind they expect.
package wferr
