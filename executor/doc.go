// Package executor is documented alongside its implementation in
// executor.go.
//
// # Core Components
//
//   - [Executor]: New(infra, registry) binds a factory.Infrastructure and
//     a node.Registry; Execute(ctx, graph, inputs, shared, opts) runs it
//   - [RunResult]/[RunStatus]: the run's terminal outcome and per-node detail
//   - [Inputs]: node id -> input port name -> value, for root ports only
//
// # Quick Start
//
//	infra, _ := factory.Build(ctx, cfg)
//	reg := node.NewRegistry()
//	reg.Register("http_fetch", newHTTPFetchNode)
//	exec, _ := executor.New(infra, reg)
//
//	g, _ := graph.ParseGraph(graphJSON)
//	built, _ := g.Build()
//	result, err := exec.Execute(ctx, built, executor.Inputs{
//	    "source_1": {"symbol": "BTC-USD"},
//	}, node.NewSharedState(), executor.RunOptions{BotID: "bot-1"})
//
// # Scheduling
//
// Nodes run in topological waves: every node in a wave has had every
// upstream node resolve (completed, failed, or skipped) in an earlier
// wave. Nodes within a wave run concurrently through an errgroup bounded
// by SetLimit; node-result bookkeeping and checkpoint writes are
// serialized under a mutex regardless of wave width, so checkpoint
// monotonicity holds the same as sequential execution would produce.
// The per-node emergency-gate check (AssertCanTrade) and event
// publishing run outside that mutex; AssertCanOperate is checked once
// per wave before it is dispatched.
//
// # Failure propagation
//
// A FAILED node never aborts the run by itself. Its downstream nodes are
// marked SKIPPED with error_kind UpstreamFailed and everything else still
// runs. The run's own terminal status is HALTED if any node stopped for
// an emergency or cancellation reason, FAILED if any node failed or was
// skipped for UpstreamFailed (and the run was not halted), and COMPLETED
// otherwise.
package executor
