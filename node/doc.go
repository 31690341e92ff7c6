// Package node defines the contract node implementations satisfy and
// resolves a graph's Kind strings to constructors without reflection.
//
// # Core Components
//
//   - [Node]: Descriptor() graph.NodeDescriptor, Execute(ctx, ExecutionContext) ExecutionResult
//   - [ExecutionContext]/[ExecutionResult]: per-invocation inputs/outputs
//   - [SharedState]: the mutable map scoped to one run, safe for the
//     concurrent invocations the executor may dispatch
//   - [Registry]: Kind string -> [Factory], populated once at startup
//
// # Quick Start
//
//	reg := node.NewRegistry()
//	reg.Register("http_fetch", func(d graph.NodeDescriptor) (node.Node, error) {
//	    return newHTTPFetchNode(d)
//	})
//	n, err := reg.Build(descriptor)
//	result := n.Execute(ctx, execCtx)
//
// # Contract
//
// Execute must be idempotent-friendly: SOURCE/EXECUTOR category nodes
// are wrapped in retry by the executor, so a call may run more than once
// for a single logical invocation. ExecutionResult.Outputs must carry a
// key for every declared output port name; the executor fails a node
// that omits one with NodeContractViolation, and drops any undeclared
// extra keys.
package node
