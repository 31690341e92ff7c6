// Package nodes supplies a handful of generic node.Node implementations
// the fluxgraphd CLI registers by default, so a graph JSON file can be
// run without linking a bespoke node implementation first. Real
// deployments are expected to register their own domain-specific kinds
// (market data sources, order routers, risk scorers) alongside these.
package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fluxgraph/core/graph"
	"github.com/fluxgraph/core/node"
	"github.com/fluxgraph/core/observe"
)

// KindPassthrough copies every input straight through to the
// identically-named output port, skipping inputs with no matching
// output. Useful for wiring a graph's shape before the real
// implementation for a node exists.
const KindPassthrough = "passthrough"

// KindLog logs every input at Info level and produces no outputs.
// Intended for TRANSFORM/MONITOR placeholder nodes during graph
// development.
const KindLog = "log"

// KindConstant ignores its inputs and always returns the JSON values
// under descriptor.Properties["outputs"], keyed by output port name.
// Useful as a SOURCE node kind for smoke-testing a graph's downstream
// wiring without a real external feed.
const KindConstant = "constant"

// RegisterBuiltins registers Passthrough, Log, and Constant node
// factories on reg under their kind strings.
func RegisterBuiltins(reg *node.Registry) {
	reg.Register(KindPassthrough, newPassthrough)
	reg.Register(KindLog, newLog)
	reg.Register(KindConstant, newConstant)
}

type passthroughNode struct {
	descriptor graph.NodeDescriptor
}

func newPassthrough(descriptor graph.NodeDescriptor) (node.Node, error) {
	return &passthroughNode{descriptor: descriptor}, nil
}

func (n *passthroughNode) Descriptor() graph.NodeDescriptor { return n.descriptor }

func (n *passthroughNode) Execute(_ context.Context, execCtx node.ExecutionContext) node.ExecutionResult {
	outputs := make(map[string]any, len(n.descriptor.Outputs))
	for _, port := range n.descriptor.Outputs {
		if v, ok := execCtx.Inputs[port.Name]; ok {
			outputs[port.Name] = v
		}
	}
	return node.Completed(n.descriptor.ID, outputs)
}

type logNode struct {
	descriptor graph.NodeDescriptor
}

func newLog(descriptor graph.NodeDescriptor) (node.Node, error) {
	return &logNode{descriptor: descriptor}, nil
}

func (n *logNode) Descriptor() graph.NodeDescriptor { return n.descriptor }

func (n *logNode) Execute(ctx context.Context, execCtx node.ExecutionContext) node.ExecutionResult {
	if logger := execCtx.Logger; logger != nil {
		fields := make([]observe.Field, 0, len(execCtx.Inputs))
		for k, v := range execCtx.Inputs {
			fields = append(fields, observe.Field{Key: k, Value: v})
		}
		logger.Info(ctx, "log node received inputs", fields...)
	}
	return node.Completed(n.descriptor.ID, map[string]any{})
}

type constantNode struct {
	descriptor graph.NodeDescriptor
	values     map[string]any
}

func newConstant(descriptor graph.NodeDescriptor) (node.Node, error) {
	raw, ok := descriptor.Properties["outputs"]
	if !ok {
		return &constantNode{descriptor: descriptor, values: map[string]any{}}, nil
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("nodes: constant node %q: failed to decode properties.outputs: %w", descriptor.ID, err)
	}
	return &constantNode{descriptor: descriptor, values: values}, nil
}

func (n *constantNode) Descriptor() graph.NodeDescriptor { return n.descriptor }

func (n *constantNode) Execute(_ context.Context, _ node.ExecutionContext) node.ExecutionResult {
	outputs := make(map[string]any, len(n.descriptor.Outputs))
	for _, port := range n.descriptor.Outputs {
		outputs[port.Name] = n.values[port.Name]
	}
	return node.Completed(n.descriptor.ID, outputs)
}
