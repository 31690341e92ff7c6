// Package graph models the node/port/connection topology the executor
// runs: a directed, acyclic, strongly-typed wiring diagram that is
// immutable once validated.
//
// # Core Components
//
//   - [NodeDescriptor], [Port], [Connection], [Endpoint]: the data model
//   - [Builder]: assemble nodes/connections imperatively, then Build()
//   - [Graph]: the immutable, validated result; unexported fields, only
//     accessor methods, so mutation after Build() is structurally
//     impossible
//   - [InvalidError]: the six machine-readable validation reason codes
//
// # Quick Start
//
//	b := graph.NewBuilder("pipeline-1")
//	b.AddNode(graph.NodeDescriptor{ID: "fetch", Category: graph.CategorySource, Kind: "http_fetch",
//	    Outputs: []graph.Port{{Name: "price", Type: "float"}}})
//	b.AddNode(graph.NodeDescriptor{ID: "decide", Category: graph.CategoryCondition, Kind: "threshold",
//	    Inputs: []graph.Port{{Name: "value", Type: "float"}}})
//	b.Connect(graph.Endpoint{Node: "fetch", Index: 0}, graph.Endpoint{Node: "decide", Index: 0})
//	g, err := b.Build()
//
// # Validation
//
// Build runs five checks in a fixed order, stopping at the first
// violation: unique node ids, every connection endpoint resolves to an
// existing node and an in-range port index, connected port type tags
// agree, every input port has at most one incoming connection, and the
// connection relation has no cycle. A failure returns *InvalidError
// with one of six Reason values (duplicate_id, dangling_ref,
// port_out_of_range, type_mismatch, fan_in, cycle).
//
// # Wire Format
//
// Graph implements json.Marshaler matching the persisted/UI-exchanged
// shape exactly; ParseGraph decodes that shape back into a Builder.
// NodeDescriptor.Properties is typed as map[string]json.RawMessage so
// unknown/editor-only keys round-trip untouched.
//
// # Scheduling
//
// Graph.TopologicalOrder returns a deterministic execution order: a
// Kahn's-algorithm FIFO queue seeded with zero-indegree nodes in
// insertion order, ties among simultaneously-ready nodes broken by
// lexicographic node id. The executor package schedules by topological
// waves instead and does not use this order; Graph itself makes no
// scheduling decisions beyond exposing the order.
package graph
