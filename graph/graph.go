// Package graph implements the immutable-after-validation DAG topology
// the executor runs: node descriptors, typed ports, connections, and the
// five structural checks a Graph must pass before anyone can run it.
package graph

import (
	"encoding/json"

	"github.com/fluxgraph/core/wferr"
)

// Category is the functional role of a node. Only SOURCE and EXECUTOR are
// provider nodes: ones allowed to touch external systems, and the ones
// the executor wraps in the full resilience composition.
type Category string

const (
	CategorySource    Category = "SOURCE"
	CategoryTransform Category = "TRANSFORM"
	CategoryCondition Category = "CONDITION"
	CategoryScorer    Category = "SCORER"
	CategoryRisk      Category = "RISK"
	CategoryOptimizer Category = "OPTIMIZER"
	CategoryExecutor  Category = "EXECUTOR"
	CategoryMonitor   Category = "MONITOR"
	CategoryGate      Category = "GATE"
)

// IsProvider reports whether c is a category allowed to reach outside the
// process (SOURCE or EXECUTOR).
func (c Category) IsProvider() bool {
	return c == CategorySource || c == CategoryExecutor
}

// Port is a single named, typed input or output slot on a node. Type is
// an opaque tag compared for equality across a connection; the graph
// model does not interpret it beyond that.
type Port struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NodeDescriptor describes one node in a graph: its identity, the
// implementation it selects (Kind), its ports, and opaque
// editor/implementation-owned properties.
type NodeDescriptor struct {
	ID         string                     `json:"id"`
	Category   Category                   `json:"category"`
	Kind       string                     `json:"kind"`
	Inputs     []Port                     `json:"inputs"`
	Outputs    []Port                     `json:"outputs"`
	Properties map[string]json.RawMessage `json:"properties,omitempty"`
}

// Endpoint identifies a single port on a node by index, so renaming a
// port does not invalidate existing connections.
type Endpoint struct {
	Node  string `json:"node"`
	Index int    `json:"index"`
}

// Connection wires one node's output port to another node's input port.
type Connection struct {
	From Endpoint `json:"from"`
	To   Endpoint `json:"to"`
}

// Graph is a validated, immutable topology. The zero value is not usable;
// construct one with Builder.Build. Every accessor returns a defensive
// copy or a read-only view so a caller cannot mutate the graph the
// executor is running against.
type Graph struct {
	id          string
	nodes       map[string]NodeDescriptor
	order       []string
	connections []Connection
	byInput     map[Endpoint]Connection
}

// ID returns the graph's identifier.
func (g *Graph) ID() string {
	return g.id
}

// Node returns the descriptor for id and whether it exists.
func (g *Graph) Node(id string) (NodeDescriptor, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node descriptor in deterministic (insertion) order.
func (g *Graph) Nodes() []NodeDescriptor {
	out := make([]NodeDescriptor, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Connections returns every connection in the graph.
func (g *Graph) Connections() []Connection {
	out := make([]Connection, len(g.connections))
	copy(out, g.connections)
	return out
}

// Upstream returns the connections feeding id's input ports.
func (g *Graph) Upstream(id string) []Connection {
	var out []Connection
	for _, c := range g.connections {
		if c.To.Node == id {
			out = append(out, c)
		}
	}
	return out
}

// Downstream returns the connections fed by id's output ports.
func (g *Graph) Downstream(id string) []Connection {
	var out []Connection
	for _, c := range g.connections {
		if c.From.Node == id {
			out = append(out, c)
		}
	}
	return out
}

// wireGraphJSON is the JSON wire shape for a Graph, matching the
// persisted/UI-exchanged format exactly.
type wireGraphJSON struct {
	GraphID     string           `json:"graph_id"`
	Nodes       []NodeDescriptor `json:"nodes"`
	Connections []Connection     `json:"connections"`
}

// MarshalJSON implements json.Marshaler, emitting the exact persisted/
// UI-exchanged wire shape.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireGraphJSON{
		GraphID:     g.id,
		Nodes:       g.Nodes(),
		Connections: g.Connections(),
	})
}

// ParseGraph decodes the wire JSON shape into a Builder, ready for
// Build() to validate. Unknown keys inside a node's "properties" object
// round-trip untouched since Properties is typed as raw JSON.
func ParseGraph(data []byte) (*Builder, error) {
	var wire wireGraphJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, wferr.Wrap(wferr.KindGraphInvalid, err, "graph: failed to decode JSON")
	}

	b := NewBuilder(wire.GraphID)
	for _, n := range wire.Nodes {
		b.AddNode(n)
	}
	for _, c := range wire.Connections {
		b.Connect(c.From, c.To)
	}
	return b, nil
}
