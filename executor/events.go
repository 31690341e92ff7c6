package executor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fluxgraph/core/emergency"
	"github.com/fluxgraph/core/graph"
	"github.com/fluxgraph/core/node"
	"github.com/fluxgraph/core/observe"
)

// eventEnvelope is the exact payload shape published on
// emergency.EventChannel ("workflow_events") for every run-lifecycle and
// node-lifecycle event the executor emits.
type eventEnvelope struct {
	Type          string         `json:"type"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id"`
	WorkflowID    string         `json:"workflow_id"`
	RunID         string         `json:"run_id"`
	BotID         *string        `json:"bot_id"`
	StrategyID    *string        `json:"strategy_id"`
	NodeID        *string        `json:"node_id"`
	NodeName      *string        `json:"node_name"`
	NodeCategory  *string        `json:"node_category"`
	DurationMS    *int64         `json:"duration_ms"`
	Status        *string        `json:"status"`
	Outputs       map[string]any `json:"outputs"`
	Error         *string        `json:"error"`
	ErrorKind     *string        `json:"error_kind"`
}

// nodeEventFields carries the per-node fields a node_started/completed/
// failed event fills in, alongside the run-level fields publish already
// has on hand.
type nodeEventFields struct {
	id         string
	kind       string
	category   string
	durationMS *int64
	status     *string
	outputs    map[string]any
	errMsg     *string
	errKind    *string
}

// nodeEventFrom builds the node-specific fields for a completed or failed
// node result, to be merged into the envelope by publish.
func nodeEventFrom(descriptor graph.NodeDescriptor, res node.ExecutionResult) *nodeEventFields {
	status := string(res.Status)
	duration := res.DurationMS
	f := &nodeEventFields{
		id:         descriptor.ID,
		kind:       descriptor.Kind,
		category:   string(descriptor.Category),
		durationMS: &duration,
		status:     &status,
		outputs:    res.Outputs,
	}
	if res.ErrorMsg != "" {
		f.errMsg = &res.ErrorMsg
	}
	if res.ErrorKind != "" {
		f.errKind = &res.ErrorKind
	}
	return f
}

// publish emits kind on the workflow event channel, filling in the
// run-level identity fields and, when node is non-nil, the per-node
// fields. Publish failures are logged and otherwise swallowed: event
// emission is best-effort relative to work completion.
func (e *Executor) publish(ctx context.Context, kind, runID, graphID string, opts RunOptions, evt *nodeEventFields) {
	if e.infra.Events == nil {
		return
	}

	env := eventEnvelope{
		Type:          kind,
		Timestamp:     time.Now(),
		CorrelationID: runID,
		WorkflowID:    graphID,
		RunID:         runID,
		BotID:         optionalString(opts.BotID),
		StrategyID:    optionalString(opts.StrategyID),
	}
	if evt != nil {
		env.NodeID = optionalString(evt.id)
		env.NodeName = optionalString(evt.kind)
		env.NodeCategory = optionalString(evt.category)
		env.DurationMS = evt.durationMS
		env.Status = evt.status
		env.Outputs = evt.outputs
		env.Error = evt.errMsg
		env.ErrorKind = evt.errKind
	}

	if err := e.infra.Events.Publish(ctx, emergency.EventChannel, env); err != nil {
		e.infra.Observer.Logger().Warn(ctx, "failed to publish workflow event",
			observe.Field{Key: "event_type", Value: kind},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}

// checkpoint writes the run's status and full result under the reserved
// state-store key layout. Writes are best-effort: a failure is logged,
// never returned, since telemetry must not block work completion.
func (e *Executor) checkpoint(ctx context.Context, graphID, runID, status string, result RunResult) {
	if e.infra.State == nil {
		return
	}

	ttl := time.Hour
	if status != "running" {
		ttl = 0
	}

	statusKey := fmt.Sprintf("workflow:%s:execution:%s:status", graphID, runID)
	resultKey := fmt.Sprintf("workflow:%s:execution:%s:result", graphID, runID)
	latestKey := fmt.Sprintf("workflow:%s:latest_execution", graphID)

	if err := e.infra.State.Set(ctx, statusKey, status, ttl); err != nil {
		e.logCheckpointFailure(ctx, statusKey, err)
	}
	if err := e.infra.State.Set(ctx, resultKey, result, ttl); err != nil {
		e.logCheckpointFailure(ctx, resultKey, err)
	}
	if err := e.infra.State.Set(ctx, latestKey, runID, 0); err != nil {
		e.logCheckpointFailure(ctx, latestKey, err)
	}
}

func (e *Executor) logCheckpointFailure(ctx context.Context, key string, err error) {
	e.infra.Observer.Logger().Warn(ctx, "checkpoint write failed",
		observe.Field{Key: "key", Value: key},
		observe.Field{Key: "error", Value: err.Error()},
	)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// newRunID mints a correlation identifier of the shape
// exec_{graph_id}_{random_suffix}.
func newRunID(graphID string) string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("exec_%s_%s", graphID, hex.EncodeToString(buf))
}
