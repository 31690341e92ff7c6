// Package node defines the node implementation contract the executor
// invokes, and a no-reflection registry resolving a graph.NodeDescriptor's
// Kind string to a constructor.
package node

import (
	"context"
	"time"

	"github.com/fluxgraph/core/graph"
	"github.com/fluxgraph/core/observe"
)

// Status is the outcome of one node invocation.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusSkipped   Status = "SKIPPED"
)

// ExecutionContext is constructed fresh for a single node invocation and
// discarded once it returns. Inputs maps an input port's declared name
// to a value computed from an upstream node's output (or from the run's
// initial inputs, for a root port). SharedState is a mutable map scoped
// to the entire run, shared by every node invocation within it.
type ExecutionContext struct {
	CorrelationID string
	RunID         string
	GraphID       string
	BotID         string
	StrategyID    string

	Inputs      map[string]any
	SharedState *SharedState

	Timeout time.Duration
	Logger  observe.Logger
}

// ExecutionResult is what a node's Execute call must return.
// Outputs keys MUST equal the descriptor's declared output port names.
type ExecutionResult struct {
	NodeID     string
	Status     Status
	Outputs    map[string]any
	ErrorKind  string
	ErrorMsg   string
	DurationMS int64
}

// Completed builds a COMPLETED result.
func Completed(nodeID string, outputs map[string]any) ExecutionResult {
	return ExecutionResult{NodeID: nodeID, Status: StatusCompleted, Outputs: outputs}
}

// Failed builds a FAILED result carrying a machine-readable error kind.
func Failed(nodeID, errorKind, errorMsg string) ExecutionResult {
	return ExecutionResult{NodeID: nodeID, Status: StatusFailed, ErrorKind: errorKind, ErrorMsg: errorMsg}
}

// Skipped builds a SKIPPED result, used when an upstream producer failed.
func Skipped(nodeID, reason string) ExecutionResult {
	return ExecutionResult{NodeID: nodeID, Status: StatusSkipped, ErrorMsg: reason}
}

// Node is the contract every node implementation satisfies. Execute must
// be idempotent-friendly: the executor may retry it as part of the
// resilience composition for SOURCE/EXECUTOR category nodes.
type Node interface {
	Descriptor() graph.NodeDescriptor
	Execute(ctx context.Context, execCtx ExecutionContext) ExecutionResult
}

// Factory constructs a Node from its graph descriptor. Implementations
// typically read descriptor.Properties for node-specific configuration.
type Factory func(descriptor graph.NodeDescriptor) (Node, error)
