package graph

import "sort"

// Builder assembles a Graph imperatively. Callers add nodes and
// connections in any order, then call Build, which runs every
// structural check exactly once and returns an immutable *Graph.
// A Builder is not safe for concurrent use.
type Builder struct {
	id          string
	nodes       map[string]NodeDescriptor
	order       []string
	connections []Connection
}

// NewBuilder creates an empty Builder for the graph identified by id.
func NewBuilder(id string) *Builder {
	return &Builder{
		id:    id,
		nodes: make(map[string]NodeDescriptor),
	}
}

// AddNode registers a node descriptor. Adding the same ID twice is not
// rejected here; duplicate detection happens at Build time so the
// caller gets a machine-readable reason code instead of a panic.
func (b *Builder) AddNode(n NodeDescriptor) *Builder {
	b.order = append(b.order, n.ID)
	b.nodes[n.ID] = n
	return b
}

// Connect adds a connection from one node's output port to another
// node's input port, both referenced by index.
func (b *Builder) Connect(from, to Endpoint) *Builder {
	b.connections = append(b.connections, Connection{From: from, To: to})
	return b
}

// Build runs the five structural checks and, if they all pass, returns
// an immutable Graph. The checks run in a fixed order so the first
// violation encountered is always reported the same way for the same
// input.
func (b *Builder) Build() (*Graph, error) {
	if err := checkDuplicateIDs(b.order, b.nodes); err != nil {
		return nil, err
	}
	if err := checkPortReferences(b.nodes, b.connections); err != nil {
		return nil, err
	}
	if err := checkTypeMatch(b.nodes, b.connections); err != nil {
		return nil, err
	}
	if err := checkFanIn(b.connections); err != nil {
		return nil, err
	}
	if err := checkAcyclic(b.order, b.connections); err != nil {
		return nil, err
	}

	nodesCopy := make(map[string]NodeDescriptor, len(b.nodes))
	for id, n := range b.nodes {
		nodesCopy[id] = n
	}
	orderCopy := make([]string, len(b.order))
	copy(orderCopy, b.order)
	connCopy := make([]Connection, len(b.connections))
	copy(connCopy, b.connections)

	byInput := make(map[Endpoint]Connection, len(connCopy))
	for _, c := range connCopy {
		byInput[c.To] = c
	}

	return &Graph{
		id:          b.id,
		nodes:       nodesCopy,
		order:       orderCopy,
		connections: connCopy,
		byInput:     byInput,
	}, nil
}

// checkDuplicateIDs is check 1: node ids must be unique. Builder.AddNode
// already collapses duplicates into a single map entry, so this walks
// the original insertion sequence seen by the builder's caller instead
// of the deduplicated map, catching the case a caller is double-adding.
func checkDuplicateIDs(order []string, nodes map[string]NodeDescriptor) error {
	seen := make(map[string]bool, len(nodes))
	for _, id := range order {
		if seen[id] {
			return &InvalidError{Reason: ReasonDuplicateID, Detail: "node id " + id + " is declared more than once"}
		}
		seen[id] = true
	}
	return nil
}

// checkPortReferences is check 2: every connection endpoint must refer
// to an existing node id and a port index in range.
func checkPortReferences(nodes map[string]NodeDescriptor, connections []Connection) error {
	for _, c := range connections {
		fromNode, ok := nodes[c.From.Node]
		if !ok {
			return &InvalidError{Reason: ReasonDanglingRef, Detail: "connection references unknown node " + c.From.Node}
		}
		if c.From.Index < 0 || c.From.Index >= len(fromNode.Outputs) {
			return &InvalidError{Reason: ReasonPortOutOfRange, Detail: "output port index out of range on node " + c.From.Node}
		}

		toNode, ok := nodes[c.To.Node]
		if !ok {
			return &InvalidError{Reason: ReasonDanglingRef, Detail: "connection references unknown node " + c.To.Node}
		}
		if c.To.Index < 0 || c.To.Index >= len(toNode.Inputs) {
			return &InvalidError{Reason: ReasonPortOutOfRange, Detail: "input port index out of range on node " + c.To.Node}
		}
	}
	return nil
}

// checkTypeMatch is check 3: the type tags on a connection's two
// endpoints must agree.
func checkTypeMatch(nodes map[string]NodeDescriptor, connections []Connection) error {
	for _, c := range connections {
		fromPort := nodes[c.From.Node].Outputs[c.From.Index]
		toPort := nodes[c.To.Node].Inputs[c.To.Index]
		if fromPort.Type != toPort.Type {
			return &InvalidError{
				Reason: ReasonTypeMismatch,
				Detail: "output " + fromPort.Name + " (" + fromPort.Type + ") does not match input " + toPort.Name + " (" + toPort.Type + ")",
			}
		}
	}
	return nil
}

// checkFanIn is check 4: every input port may be referenced by at most
// one connection.
func checkFanIn(connections []Connection) error {
	seen := make(map[Endpoint]bool, len(connections))
	for _, c := range connections {
		if seen[c.To] {
			return &InvalidError{Reason: ReasonFanIn, Detail: "input port already has an incoming connection"}
		}
		seen[c.To] = true
	}
	return nil
}

// checkAcyclic is check 5: the connection relation must have no cycle.
// Runs Kahn's algorithm and reports a cycle if any node is left
// unvisited once the queue drains.
func checkAcyclic(order []string, connections []Connection) error {
	_, err := kahnOrder(order, connections)
	return err
}

// kahnOrder computes a deterministic topological order: a FIFO queue
// seeded with zero-indegree nodes in insertion order, ties among
// simultaneously-ready nodes broken by lexicographic node id.
func kahnOrder(order []string, connections []Connection) ([]string, error) {
	indegree := make(map[string]int, len(order))
	adjacency := make(map[string][]string, len(order))
	for _, id := range order {
		indegree[id] = 0
	}
	for _, c := range connections {
		adjacency[c.From.Node] = append(adjacency[c.From.Node], c.To.Node)
		indegree[c.To.Node]++
	}

	var ready []string
	for _, id := range order {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	result := make([]string, 0, len(order))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		result = append(result, next)

		var newlyReady []string
		for _, child := range adjacency[next] {
			indegree[child]--
			if indegree[child] == 0 {
				newlyReady = append(newlyReady, child)
			}
		}
		sort.Strings(newlyReady)
		ready = append(ready, newlyReady...)
	}

	if len(result) != len(order) {
		return nil, &InvalidError{Reason: ReasonCycle, Detail: "graph contains a cycle"}
	}
	return result, nil
}

// TopologicalOrder returns g's nodes in a deterministic topological
// order: a Kahn's-algorithm FIFO queue, ties broken by lexicographic
// node id. The executor schedules by waves and does not use this order. Safe to call repeatedly; g is never mutated.
func (g *Graph) TopologicalOrder() []string {
	order, err := kahnOrder(g.order, g.connections)
	if err != nil {
		// Graph was already validated acyclic at Build time; this would
		// only trip if the Graph's invariants were somehow violated after
		// construction, which the type's unexported fields prevent.
		panic("graph: topological order failed on a validated graph: " + err.Error())
	}
	return order
}
