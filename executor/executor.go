// Package executor runs a validated graph.Graph to completion: scheduling
// nodes in topological waves, composing per-node resilience, checking the
// emergency gate before every node, checkpointing progress, and emitting
// the full run-lifecycle event sequence on the shared event bus.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fluxgraph/core/config"
	"github.com/fluxgraph/core/emergency"
	"github.com/fluxgraph/core/factory"
	"github.com/fluxgraph/core/graph"
	"github.com/fluxgraph/core/node"
	"github.com/fluxgraph/core/observe"
	"github.com/fluxgraph/core/resilience"
	"github.com/fluxgraph/core/wferr"
)

// defaultMaxParallelNodes bounds how many nodes within a single wave run
// concurrently, via errgroup.SetLimit, so a very wide graph cannot spawn
// an unbounded number of goroutines in one step.
const defaultMaxParallelNodes = 16

// RunStatus is a run's terminal outcome.
type RunStatus string

const (
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
	RunHalted    RunStatus = "HALTED"
)

// RunOptions carries the run-scoped identity values every emitted event
// and checkpoint includes alongside the correlation id.
type RunOptions struct {
	BotID      string
	StrategyID string
}

// Inputs supplies values for nodes with no incoming connection, keyed by
// node id and then by the node's declared input port name.
type Inputs map[string]map[string]any

// RunResult is what Execute returns: the run's final status and every
// node's individual outcome.
type RunResult struct {
	RunID          string
	GraphID        string
	Status         RunStatus
	PerNodeResults map[string]node.ExecutionResult
	StartedAt      time.Time
	CompletedAt    time.Time
}

// Executor runs one graph at a time on behalf of a caller holding a
// shared Infrastructure; it is safe to share across concurrent Execute
// calls (each call mints its own run id and its own local bookkeeping).
type Executor struct {
	infra      *factory.Infrastructure
	nodes      *node.Registry
	middleware *observe.Middleware
	resCfg     config.ResilienceConfig

	maxParallelNodes int
}

// New builds an Executor from an already-constructed Infrastructure and a
// node.Registry of implementations to dispatch to. infra is never copied;
// the executor borrows its state store, event bus, emergency controller,
// and resilience registry rather than owning them, per the container
// being passed explicitly instead of reached via a package global.
func New(infra *factory.Infrastructure, nodes *node.Registry) (*Executor, error) {
	middleware, err := observe.MiddlewareFromObserver(infra.Observer)
	if err != nil {
		return nil, fmt.Errorf("executor: failed to build observability middleware: %w", err)
	}
	return &Executor{
		infra:            infra,
		nodes:            nodes,
		middleware:       middleware,
		resCfg:           infra.Config.Resilience,
		maxParallelNodes: defaultMaxParallelNodes,
	}, nil
}

// Execute runs g once to completion. g is already validated and immutable
// (graph.Builder.Build never returns a cyclic or otherwise invalid Graph),
// so no GraphInvalid path exists inside Execute itself; a cyclic or
// malformed submission is rejected earlier, at Build time, before any
// event is emitted or checkpoint written.
func (e *Executor) Execute(ctx context.Context, g *graph.Graph, initialInputs Inputs, shared *node.SharedState, opts RunOptions) (RunResult, error) {
	runID := newRunID(g.ID())
	ctx = observe.WithCorrelationID(ctx, runID)

	result := RunResult{
		RunID:          runID,
		GraphID:        g.ID(),
		PerNodeResults: make(map[string]node.ExecutionResult),
		StartedAt:      time.Now(),
	}

	e.publish(ctx, "execution_started", runID, g.ID(), opts, nil)
	e.checkpoint(ctx, g.ID(), runID, "running", result)

	allNodes := g.Nodes()
	if len(allNodes) == 0 {
		result.Status = RunCompleted
		result.CompletedAt = time.Now()
		e.publish(ctx, "execution_completed", runID, g.ID(), opts, nil)
		e.checkpoint(ctx, g.ID(), runID, "completed", result)
		return result, nil
	}

	outputs := make(map[string]map[string]any, len(allNodes))
	skipReasons := make(map[string]string, len(allNodes))
	halted := false

	var mu sync.Mutex // guards result.PerNodeResults, outputs, skipReasons, and checkpoint writes

	for _, wave := range waves(g) {
		select {
		case <-ctx.Done():
			halted = true
		default:
		}
		if halted {
			break
		}
		if err := e.infra.Emergency.AssertCanOperate(); err != nil {
			halted = true
			break
		}

		group, gctx := errgroup.WithContext(ctx)
		group.SetLimit(e.maxParallelNodes)

		for _, nodeID := range wave {
			nodeID := nodeID
			descriptor, _ := g.Node(nodeID)

			mu.Lock()
			reason, skip := upstreamSkipReason(g, nodeID, skipReasons)
			mu.Unlock()
			if skip {
				res := node.ExecutionResult{
					NodeID:    nodeID,
					Status:    node.StatusSkipped,
					ErrorKind: string(wferr.KindUpstreamFailed),
					ErrorMsg:  reason,
				}
				mu.Lock()
				result.PerNodeResults[nodeID] = res
				skipReasons[nodeID] = res.ErrorMsg
				mu.Unlock()
				e.publish(ctx, "node_failed", runID, g.ID(), opts, nodeEventFrom(descriptor, res))
				continue
			}

			group.Go(func() error {
				res := e.runOneNode(gctx, g, descriptor, runID, opts, initialInputs, &mu, outputs, shared)

				mu.Lock()
				result.PerNodeResults[nodeID] = res
				if res.Status == node.StatusCompleted {
					outputs[nodeID] = res.Outputs
				} else {
					skipReasons[nodeID] = res.ErrorMsg
				}
				mu.Unlock()

				kind := "node_completed"
				if res.Status != node.StatusCompleted {
					kind = "node_failed"
				}
				e.publish(ctx, kind, runID, g.ID(), opts, nodeEventFrom(descriptor, res))

				mu.Lock()
				e.checkpoint(ctx, g.ID(), runID, "running", result)
				mu.Unlock()
				return nil
			})
		}
		_ = group.Wait()
	}

	result.Status = computeStatus(result.PerNodeResults, halted)
	result.CompletedAt = time.Now()

	finalKind := map[RunStatus]string{
		RunCompleted: "execution_completed",
		RunFailed:    "execution_failed",
		RunHalted:    "execution_halted",
	}[result.Status]

	e.publish(ctx, finalKind, runID, g.ID(), opts, nil)
	e.checkpoint(ctx, g.ID(), runID, string(statusCheckpointValue(result.Status)), result)

	return result, nil
}

// runOneNode executes a single node, gating on the emergency controller
// first, then composing the resilience chain appropriate to its category.
func (e *Executor) runOneNode(ctx context.Context, g *graph.Graph, descriptor graph.NodeDescriptor, runID string, opts RunOptions, initialInputs Inputs, mu *sync.Mutex, outputs map[string]map[string]any, shared *node.SharedState) node.ExecutionResult {
	if descriptor.Category == graph.CategoryExecutor {
		if err := e.infra.Emergency.AssertCanTrade(); err != nil {
			return node.ExecutionResult{
				NodeID:    descriptor.ID,
				Status:    node.StatusSkipped,
				ErrorKind: string(wferr.KindEmergencyHalted),
				ErrorMsg:  err.Error(),
			}
		}
	}

	n, err := e.nodes.Build(descriptor)
	if err != nil {
		return node.Failed(descriptor.ID, string(wferr.KindNodeContractViolation), err.Error())
	}

	timeout := e.resCfg.DefaultNodeTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	mu.Lock()
	execCtx := e.buildExecutionContext(g, descriptor, runID, opts, initialInputs, outputs, shared, timeout)
	mu.Unlock()

	start := time.Now()
	res := e.runNode(ctx, n, descriptor, execCtx, timeout)
	res.DurationMS = time.Since(start).Milliseconds()

	if res.Status == node.StatusCompleted {
		res = validateOutputs(descriptor, res, e.infra.Observer.Logger())
	}
	return res
}

// runNode invokes n through the resilience composition its category
// selects and classifies the outcome into a node.ExecutionResult.
func (e *Executor) runNode(ctx context.Context, n node.Node, descriptor graph.NodeDescriptor, execCtx node.ExecutionContext, timeout time.Duration) node.ExecutionResult {
	var last node.ExecutionResult
	call := func(ctx context.Context) error {
		last = n.Execute(ctx, execCtx)
		if last.Status == node.StatusFailed {
			kind := last.ErrorKind
			if kind == "" {
				kind = "NodeExecutionFailed"
			}
			return wferr.New(wferr.Kind(kind), last.ErrorMsg)
		}
		return nil
	}

	meta := observe.NodeMeta{ID: descriptor.ID, Kind: descriptor.Kind, Category: string(descriptor.Category)}
	traced := e.middleware.Wrap(func(ctx context.Context, _ observe.NodeMeta, _ any) (any, error) {
		return nil, e.resilienceChainFor(descriptor, timeout).Execute(ctx, call)
	})
	_, err := traced(ctx, meta, nil)

	if err == nil {
		return last
	}
	return classifyFailure(err, descriptor.Category.IsProvider(), last, descriptor.ID)
}

// resilienceChainFor builds
// rate_limiter(bulkhead(timeout(retry(circuit_breaker(call))))) for
// SOURCE/EXECUTOR nodes (the only categories allowed to touch external
// systems) and timeout(call) alone for every other category. Provider
// nodes share their bulkhead and rate limiter by node ID, the same key
// the circuit breaker uses, so a flaky provider node is isolated and
// throttled independently of the rest of the graph.
func (e *Executor) resilienceChainFor(descriptor graph.NodeDescriptor, timeout time.Duration) *resilience.Executor {
	if !descriptor.Category.IsProvider() {
		return resilience.NewExecutor(resilience.WithTimeout(timeout))
	}

	name := "node:" + descriptor.ID
	cb := e.infra.Resilience.CircuitBreaker(name)
	bulkhead := e.infra.Resilience.Bulkhead(name)
	limiter := e.infra.Resilience.RateLimiter(name)
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  e.resCfg.RetryMaxAttempts,
		InitialDelay: e.resCfg.RetryMinWait,
		MaxDelay:     e.resCfg.RetryMaxWait,
	})
	return resilience.NewExecutor(
		resilience.WithTimeout(timeout),
		resilience.WithRetry(retry),
		resilience.WithCircuitBreaker(cb),
		resilience.WithBulkhead(bulkhead),
		resilience.WithRateLimiter(limiter),
	)
}

// classifyFailure maps a resilience-chain error to the stable error kind
// the executor reports on the node result. Infrastructure-level outcomes
// (open breaker, timeout, cancellation) take precedence over whatever
// kind the node implementation itself reported, since those happened
// above the node rather than inside it.
func classifyFailure(err error, isProvider bool, last node.ExecutionResult, nodeID string) node.ExecutionResult {
	switch {
	case isCircuitOpen(err):
		return node.Failed(nodeID, string(wferr.KindCircuitOpen), err.Error())
	case isResilienceTimeout(err):
		return node.Failed(nodeID, string(wferr.KindNodeTimeout), err.Error())
	case isCancelled(err):
		return node.Failed(nodeID, string(wferr.KindCancelled), "run cancelled")
	case last.Status == node.StatusFailed && isProvider:
		return node.Failed(nodeID, string(wferr.KindRetryExhausted), last.ErrorMsg)
	case last.Status == node.StatusFailed:
		return last
	default:
		return node.Failed(nodeID, string(wferr.KindRetryExhausted), err.Error())
	}
}

// buildExecutionContext resolves descriptor's declared input ports from
// either an upstream node's recorded outputs or the run's initial inputs.
func (e *Executor) buildExecutionContext(g *graph.Graph, descriptor graph.NodeDescriptor, runID string, opts RunOptions, initialInputs Inputs, outputs map[string]map[string]any, shared *node.SharedState, timeout time.Duration) node.ExecutionContext {
	inputs := make(map[string]any, len(descriptor.Inputs))

	for idx, port := range descriptor.Inputs {
		wired := false
		for _, conn := range g.Upstream(descriptor.ID) {
			if conn.To.Index != idx {
				continue
			}
			srcDescriptor, _ := g.Node(conn.From.Node)
			if conn.From.Index < len(srcDescriptor.Outputs) {
				srcPort := srcDescriptor.Outputs[conn.From.Index].Name
				inputs[port.Name] = outputs[conn.From.Node][srcPort]
			}
			wired = true
			break
		}
		if wired {
			continue
		}
		if vals, ok := initialInputs[descriptor.ID]; ok {
			if v, ok2 := vals[port.Name]; ok2 {
				inputs[port.Name] = v
			}
		}
	}

	return node.ExecutionContext{
		CorrelationID: runID,
		RunID:         runID,
		GraphID:       g.ID(),
		BotID:         opts.BotID,
		StrategyID:    opts.StrategyID,
		Inputs:        inputs,
		SharedState:   shared,
		Timeout:       timeout,
		Logger:        e.infra.Observer.Logger(),
	}
}

// validateOutputs enforces the output-port contract: a missing declared
// port fails the node; an undeclared extra port is dropped and logged.
func validateOutputs(descriptor graph.NodeDescriptor, res node.ExecutionResult, logger observe.Logger) node.ExecutionResult {
	cleaned := make(map[string]any, len(descriptor.Outputs))
	for _, port := range descriptor.Outputs {
		v, ok := res.Outputs[port.Name]
		if !ok {
			return node.Failed(descriptor.ID, string(wferr.KindNodeContractViolation),
				fmt.Sprintf("node %q did not produce declared output %q", descriptor.ID, port.Name))
		}
		cleaned[port.Name] = v
	}
	if len(res.Outputs) > len(cleaned) {
		logger.Warn(context.Background(), "node produced undeclared output ports, dropping",
			observe.Field{Key: "node_id", Value: descriptor.ID})
	}
	res.Outputs = cleaned
	return res
}

// upstreamSkipReason reports whether id should be skipped because a
// node feeding one of its input ports already failed or was skipped.
func upstreamSkipReason(g *graph.Graph, id string, skipReasons map[string]string) (string, bool) {
	for _, conn := range g.Upstream(id) {
		if _, failed := skipReasons[conn.From.Node]; failed {
			return "upstream node " + conn.From.Node + " did not produce a result", true
		}
	}
	return "", false
}

// computeStatus derives the run's terminal status from its per-node
// results: any emergency-gated or cancelled node makes the whole run
// HALTED; otherwise any failure or upstream-failure skip makes it
// FAILED; a run with neither is COMPLETED.
func computeStatus(results map[string]node.ExecutionResult, haltedBeforeCompletion bool) RunStatus {
	halted := haltedBeforeCompletion
	failed := false
	for _, r := range results {
		if r.ErrorKind == string(wferr.KindEmergencyHalted) || r.ErrorKind == string(wferr.KindCancelled) {
			halted = true
		}
		if r.Status == node.StatusFailed || (r.Status == node.StatusSkipped && r.ErrorKind == string(wferr.KindUpstreamFailed)) {
			failed = true
		}
	}
	switch {
	case halted:
		return RunHalted
	case failed:
		return RunFailed
	default:
		return RunCompleted
	}
}

func isCircuitOpen(err error) bool        { return errors.Is(err, resilience.ErrCircuitOpen) }
func isResilienceTimeout(err error) bool  { return errors.Is(err, resilience.ErrTimeout) }
func isCancelled(err error) bool          { return errors.Is(err, context.Canceled) }

func statusCheckpointValue(s RunStatus) string {
	switch s {
	case RunCompleted:
		return "completed"
	case RunFailed:
		return "failed"
	case RunHalted:
		return "halted"
	default:
		return "running"
	}
}

// waves groups g's nodes into deterministic topological layers: each
// layer holds every node whose dependencies are already in an earlier
// layer, sorted lexicographically for a stable run-to-run order. This
// is the wave unit the executor dispatches to errgroup one layer at a
// time, mirroring graph.kahnOrder's indegree-draining shape but grouped
// by simultaneous readiness instead of flattened into one sequence.
func waves(g *graph.Graph) [][]string {
	nodes := g.Nodes()
	indegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		indegree[n.ID] = len(g.Upstream(n.ID))
	}

	remaining := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		remaining[n.ID] = true
	}

	var result [][]string
	for len(remaining) > 0 {
		var wave []string
		for id := range remaining {
			if indegree[id] == 0 {
				wave = append(wave, id)
			}
		}
		sort.Strings(wave)
		for _, id := range wave {
			delete(remaining, id)
			for _, conn := range g.Downstream(id) {
				indegree[conn.To.Node]--
			}
		}
		result = append(result, wave)
	}
	return result
}
