package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/core/config"
	"github.com/fluxgraph/core/emergency"
	"github.com/fluxgraph/core/eventbus"
	"github.com/fluxgraph/core/factory"
	"github.com/fluxgraph/core/graph"
	"github.com/fluxgraph/core/node"
	"github.com/fluxgraph/core/wferr"
)

func testConfig() *config.Config {
	cfg := config.Development()
	cfg.Observability.TracingEnabled = false
	cfg.Observability.MetricsEnabled = false
	cfg.Resilience.RetryMaxAttempts = 2
	cfg.Resilience.RetryMinWait = 2 * time.Millisecond
	cfg.Resilience.RetryMaxWait = 10 * time.Millisecond
	cfg.Resilience.CircuitFailureThreshold = 5
	cfg.Resilience.CircuitRecoveryTimeout = 60 * time.Millisecond
	cfg.Resilience.DefaultNodeTimeout = 2 * time.Second
	cfg.Resilience.ProviderMaxConcurrent = 100
	cfg.Resilience.ProviderRateLimitPerSecond = 1000
	cfg.Resilience.ProviderRateLimitBurst = 1000
	cfg.Resilience.ProviderRateLimitMaxWait = time.Second
	return &cfg
}

func newTestExecutor(t *testing.T, reg *node.Registry) (*Executor, *factory.Infrastructure) {
	t.Helper()
	infra, err := factory.Build(context.Background(), testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = infra.Close(context.Background()) })

	exec, err := New(infra, reg)
	require.NoError(t, err)
	return exec, infra
}

// eventRecorder subscribes to workflow_events and lets tests wait for a
// target event count instead of racing the in-process bus's async
// dispatch.
type eventRecorder struct {
	mu     sync.Mutex
	events []eventEnvelope
}

func newEventRecorder(t *testing.T, bus eventbus.Bus) *eventRecorder {
	t.Helper()
	r := &eventRecorder{}
	_, err := bus.Subscribe(emergency.EventChannel, func(_ context.Context, e eventbus.Event) error {
		env, ok := e.Payload.(eventEnvelope)
		if !ok {
			return nil
		}
		r.mu.Lock()
		r.events = append(r.events, env)
		r.mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	return r
}

func (r *eventRecorder) snapshot() []eventEnvelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]eventEnvelope, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) types() []string {
	snap := r.snapshot()
	out := make([]string, len(snap))
	for i, e := range snap {
		out[i] = e.Type
	}
	return out
}

func port(name string) graph.Port { return graph.Port{Name: name, Type: "any"} }

// stubNode returns a fixed ExecutionResult regardless of input, counting
// how many times Execute is invoked.
type stubNode struct {
	descriptor graph.NodeDescriptor
	calls      *atomic.Int64
	run        func(ctx context.Context, execCtx node.ExecutionContext) node.ExecutionResult
}

func (s *stubNode) Descriptor() graph.NodeDescriptor { return s.descriptor }

func (s *stubNode) Execute(ctx context.Context, execCtx node.ExecutionContext) node.ExecutionResult {
	if s.calls != nil {
		s.calls.Add(1)
	}
	res := s.run(ctx, execCtx)
	res.NodeID = s.descriptor.ID
	return res
}

func registerStub(t *testing.T, reg *node.Registry, kind string, calls *atomic.Int64, run func(context.Context, node.ExecutionContext) node.ExecutionResult) {
	t.Helper()
	reg.Register(kind, func(d graph.NodeDescriptor) (node.Node, error) {
		return &stubNode{descriptor: d, calls: calls, run: run}, nil
	})
}

func succeedNode(outputs map[string]any) func(context.Context, node.ExecutionContext) node.ExecutionResult {
	return func(_ context.Context, execCtx node.ExecutionContext) node.ExecutionResult {
		return node.Completed("", outputs)
	}
}

// --- E1: linear happy path ---

func TestExecute_LinearHappyPath(t *testing.T) {
	reg := node.NewRegistry()
	registerStub(t, reg, "pass_x", nil, succeedNode(map[string]any{"out": "x"}))
	registerStub(t, reg, "pass_through", nil, func(_ context.Context, execCtx node.ExecutionContext) node.ExecutionResult {
		return node.Completed("", map[string]any{"out": execCtx.Inputs["in"]})
	})

	b := graph.NewBuilder("g1")
	b.AddNode(graph.NodeDescriptor{ID: "A", Category: graph.CategorySource, Kind: "pass_x", Outputs: []graph.Port{port("out")}})
	b.AddNode(graph.NodeDescriptor{ID: "B", Category: graph.CategoryTransform, Kind: "pass_through", Inputs: []graph.Port{port("in")}, Outputs: []graph.Port{port("out")}})
	b.AddNode(graph.NodeDescriptor{ID: "C", Category: graph.CategoryTransform, Kind: "pass_through", Inputs: []graph.Port{port("in")}, Outputs: []graph.Port{port("out")}})
	b.Connect(graph.Endpoint{Node: "A", Index: 0}, graph.Endpoint{Node: "B", Index: 0})
	b.Connect(graph.Endpoint{Node: "B", Index: 0}, graph.Endpoint{Node: "C", Index: 0})
	g, err := b.Build()
	require.NoError(t, err)

	exec, infra := newTestExecutor(t, reg)
	recorder := newEventRecorder(t, infra.Events)

	result, err := exec.Execute(context.Background(), g, Inputs{}, node.NewSharedState(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.Status)
	assert.Len(t, result.PerNodeResults, 3)
	for _, id := range []string{"A", "B", "C"} {
		assert.Equal(t, node.StatusCompleted, result.PerNodeResults[id].Status)
	}

	require.Eventually(t, func() bool { return len(recorder.snapshot()) >= 5 }, time.Second, 5*time.Millisecond)
	types := recorder.types()
	assert.Equal(t, "execution_started", types[0])
	assert.Equal(t, "execution_completed", types[len(types)-1])

	for _, env := range recorder.snapshot() {
		assert.Equal(t, result.RunID, env.CorrelationID)
	}
}

// --- E2: diamond with one branch failing ---

func TestExecute_DiamondOneBranchFails(t *testing.T) {
	reg := node.NewRegistry()
	registerStub(t, reg, "pass_x", nil, succeedNode(map[string]any{"out": "x"}))
	registerStub(t, reg, "always_fail", nil, func(_ context.Context, execCtx node.ExecutionContext) node.ExecutionResult {
		return node.Failed("", "ConnectionError", "boom")
	})
	registerStub(t, reg, "pass_through", nil, func(_ context.Context, execCtx node.ExecutionContext) node.ExecutionResult {
		return node.Completed("", map[string]any{"out": execCtx.Inputs["in"]})
	})
	registerStub(t, reg, "join", nil, func(_ context.Context, execCtx node.ExecutionContext) node.ExecutionResult {
		return node.Completed("", map[string]any{"out": "joined"})
	})

	b := graph.NewBuilder("g2")
	b.AddNode(graph.NodeDescriptor{ID: "A", Category: graph.CategorySource, Kind: "pass_x", Outputs: []graph.Port{port("out")}})
	b.AddNode(graph.NodeDescriptor{ID: "B", Category: graph.CategoryExecutor, Kind: "always_fail", Inputs: []graph.Port{port("in")}, Outputs: []graph.Port{port("out")}})
	b.AddNode(graph.NodeDescriptor{ID: "C", Category: graph.CategoryTransform, Kind: "pass_through", Inputs: []graph.Port{port("in")}, Outputs: []graph.Port{port("out")}})
	b.AddNode(graph.NodeDescriptor{ID: "D", Category: graph.CategoryTransform, Kind: "join", Inputs: []graph.Port{port("in0"), port("in1")}, Outputs: []graph.Port{port("out")}})
	b.Connect(graph.Endpoint{Node: "A", Index: 0}, graph.Endpoint{Node: "B", Index: 0})
	b.Connect(graph.Endpoint{Node: "A", Index: 0}, graph.Endpoint{Node: "C", Index: 0})
	b.Connect(graph.Endpoint{Node: "B", Index: 0}, graph.Endpoint{Node: "D", Index: 0})
	b.Connect(graph.Endpoint{Node: "C", Index: 0}, graph.Endpoint{Node: "D", Index: 1})
	g, err := b.Build()
	require.NoError(t, err)

	exec, _ := newTestExecutor(t, reg)
	result, err := exec.Execute(context.Background(), g, Inputs{}, node.NewSharedState(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, RunFailed, result.Status)
	assert.Equal(t, node.StatusCompleted, result.PerNodeResults["A"].Status)
	assert.Equal(t, node.StatusFailed, result.PerNodeResults["B"].Status)
	assert.Equal(t, string(wferr.KindRetryExhausted), result.PerNodeResults["B"].ErrorKind)
	assert.Equal(t, node.StatusCompleted, result.PerNodeResults["C"].Status)
	assert.Equal(t, node.StatusSkipped, result.PerNodeResults["D"].Status)
	assert.Equal(t, string(wferr.KindUpstreamFailed), result.PerNodeResults["D"].ErrorKind)
}

// --- E3: emergency halt mid-run ---

func TestExecute_EmergencyHaltMidRun(t *testing.T) {
	reg := node.NewRegistry()
	var completedCount atomic.Int64
	registerStub(t, reg, "chain_step", nil, func(_ context.Context, execCtx node.ExecutionContext) node.ExecutionResult {
		completedCount.Add(1)
		return node.Completed("", map[string]any{"out": "ok"})
	})

	ids := []string{"n1", "n2", "n3", "n4", "n5", "n6"}
	b := graph.NewBuilder("g3")
	for i, id := range ids {
		d := graph.NodeDescriptor{ID: id, Category: graph.CategoryExecutor, Kind: "chain_step", Outputs: []graph.Port{port("out")}}
		if i > 0 {
			d.Inputs = []graph.Port{port("in")}
		}
		b.AddNode(d)
		if i > 0 {
			b.Connect(graph.Endpoint{Node: ids[i-1], Index: 0}, graph.Endpoint{Node: id, Index: 0})
		}
	}
	g, err := b.Build()
	require.NoError(t, err)

	exec, infra := newTestExecutor(t, reg)

	// Halt the controller once the second node has completed, simulating
	// an operator or risk check reacting mid-run.
	go func() {
		for completedCount.Load() < 2 {
			time.Sleep(time.Millisecond)
		}
		infra.Emergency.SetState(context.Background(), emergency.HALT, "daily loss")
	}()

	result, err := exec.Execute(context.Background(), g, Inputs{}, node.NewSharedState(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, RunHalted, result.Status)
	assert.LessOrEqual(t, completedCount.Load(), int64(3))
	assert.Equal(t, node.StatusCompleted, result.PerNodeResults["n1"].Status)
	assert.Equal(t, node.StatusCompleted, result.PerNodeResults["n2"].Status)
}

// --- E4: circuit breaker opens then recovers ---

func TestExecute_CircuitOpensThenRecovers(t *testing.T) {
	reg := node.NewRegistry()
	var calls atomic.Int64
	var shouldFail atomic.Bool
	shouldFail.Store(true)
	registerStub(t, reg, "flaky_provider", &calls, func(_ context.Context, execCtx node.ExecutionContext) node.ExecutionResult {
		if shouldFail.Load() {
			return node.Failed("", "ConnectionError", "unreachable")
		}
		return node.Completed("", map[string]any{"out": "ok"})
	})

	newSingleNodeGraph := func() *graph.Graph {
		b := graph.NewBuilder("g4")
		b.AddNode(graph.NodeDescriptor{ID: "provider", Category: graph.CategorySource, Kind: "flaky_provider", Outputs: []graph.Port{port("out")}})
		g, err := b.Build()
		require.NoError(t, err)
		return g
	}

	cfg := testConfig()
	cfg.Resilience.RetryMaxAttempts = 1 // isolate circuit-breaker counting from internal retry attempts
	infra, err := factory.Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = infra.Close(context.Background()) })
	exec, err := New(infra, reg)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		result, err := exec.Execute(context.Background(), newSingleNodeGraph(), Inputs{}, node.NewSharedState(), RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, node.StatusFailed, result.PerNodeResults["provider"].Status, "run %d", i+1)
	}

	result, err := exec.Execute(context.Background(), newSingleNodeGraph(), Inputs{}, node.NewSharedState(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, string(wferr.KindCircuitOpen), result.PerNodeResults["provider"].ErrorKind)
	callsBeforeRecovery := calls.Load()

	shouldFail.Store(false)
	time.Sleep(cfg.Resilience.CircuitRecoveryTimeout + 20*time.Millisecond)

	result, err = exec.Execute(context.Background(), newSingleNodeGraph(), Inputs{}, node.NewSharedState(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, node.StatusCompleted, result.PerNodeResults["provider"].Status)
	assert.Greater(t, calls.Load(), callsBeforeRecovery, "breaker should allow the probe call through")

	cb := infra.Resilience.CircuitBreaker("node:provider")
	assert.Equal(t, "closed", cb.State().String())
}

// --- E5: cancellation ---

func TestExecute_CancellationHaltsRun(t *testing.T) {
	reg := node.NewRegistry()
	registerStub(t, reg, "long_running", nil, func(ctx context.Context, execCtx node.ExecutionContext) node.ExecutionResult {
		select {
		case <-ctx.Done():
			return node.Failed("", string(wferr.KindCancelled), "cancelled")
		case <-time.After(30 * time.Second):
			return node.Completed("", map[string]any{"out": "too slow"})
		}
	})

	b := graph.NewBuilder("g5")
	b.AddNode(graph.NodeDescriptor{ID: "n1", Category: graph.CategoryTransform, Kind: "long_running", Outputs: []graph.Port{port("out")}})
	g, err := b.Build()
	require.NoError(t, err)

	exec, _ := newTestExecutor(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result, err := exec.Execute(ctx, g, Inputs{}, node.NewSharedState(), RunOptions{})
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Less(t, elapsed, 5*time.Second)
	assert.Equal(t, RunHalted, result.Status)
	assert.Equal(t, node.StatusFailed, result.PerNodeResults["n1"].Status)
	assert.Equal(t, string(wferr.KindCancelled), result.PerNodeResults["n1"].ErrorKind)
}

// --- Edge cases ---

func TestExecute_EmptyGraphCompletesImmediately(t *testing.T) {
	reg := node.NewRegistry()
	b := graph.NewBuilder("empty")
	g, err := b.Build()
	require.NoError(t, err)

	exec, infra := newTestExecutor(t, reg)
	recorder := newEventRecorder(t, infra.Events)

	result, err := exec.Execute(context.Background(), g, Inputs{}, node.NewSharedState(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.Status)
	assert.Empty(t, result.PerNodeResults)

	require.Eventually(t, func() bool { return len(recorder.snapshot()) >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"execution_started", "execution_completed"}, recorder.types())
}

func TestExecute_MissingDeclaredOutputIsContractViolation(t *testing.T) {
	reg := node.NewRegistry()
	registerStub(t, reg, "sloppy", nil, func(_ context.Context, execCtx node.ExecutionContext) node.ExecutionResult {
		return node.Completed("", map[string]any{"wrong_name": "x"})
	})

	b := graph.NewBuilder("g6")
	b.AddNode(graph.NodeDescriptor{ID: "n1", Category: graph.CategoryTransform, Kind: "sloppy", Outputs: []graph.Port{port("out")}})
	g, err := b.Build()
	require.NoError(t, err)

	exec, _ := newTestExecutor(t, reg)
	result, err := exec.Execute(context.Background(), g, Inputs{}, node.NewSharedState(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, node.StatusFailed, result.PerNodeResults["n1"].Status)
	assert.Equal(t, string(wferr.KindNodeContractViolation), result.PerNodeResults["n1"].ErrorKind)
}

func TestExecute_UndeclaredExtraOutputIsDroppedNotFailed(t *testing.T) {
	reg := node.NewRegistry()
	registerStub(t, reg, "chatty", nil, func(_ context.Context, execCtx node.ExecutionContext) node.ExecutionResult {
		return node.Completed("", map[string]any{"out": "x", "extra": "unused"})
	})

	b := graph.NewBuilder("g7")
	b.AddNode(graph.NodeDescriptor{ID: "n1", Category: graph.CategoryTransform, Kind: "chatty", Outputs: []graph.Port{port("out")}})
	g, err := b.Build()
	require.NoError(t, err)

	exec, _ := newTestExecutor(t, reg)
	result, err := exec.Execute(context.Background(), g, Inputs{}, node.NewSharedState(), RunOptions{})
	require.NoError(t, err)

	res := result.PerNodeResults["n1"]
	assert.Equal(t, node.StatusCompleted, res.Status)
	assert.Equal(t, map[string]any{"out": "x"}, res.Outputs)
}

func TestWaves_GroupsIndependentNodesTogether(t *testing.T) {
	b := graph.NewBuilder("waves")
	b.AddNode(graph.NodeDescriptor{ID: "A", Outputs: []graph.Port{port("o")}})
	b.AddNode(graph.NodeDescriptor{ID: "B", Outputs: []graph.Port{port("o")}})
	b.AddNode(graph.NodeDescriptor{ID: "C", Inputs: []graph.Port{port("i0"), port("i1")}})
	b.Connect(graph.Endpoint{Node: "A", Index: 0}, graph.Endpoint{Node: "C", Index: 0})
	b.Connect(graph.Endpoint{Node: "B", Index: 0}, graph.Endpoint{Node: "C", Index: 1})
	g, err := b.Build()
	require.NoError(t, err)

	got := waves(g)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"A", "B"}, got[0])
	assert.Equal(t, []string{"C"}, got[1])
}
