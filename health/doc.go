// Package health provides the liveness/readiness checks fluxgraphd exposes
// over HTTP while it serves a long-running graph.
//
// A [Checker] reports one component's status; an [Aggregator] registers
// checkers by name and rolls them up into an overall [Status] using
// worst-case logic (any Unhealthy wins, then any Degraded, else Healthy).
// [RegisterHandlers] wires /healthz (liveness), /readyz (readiness), and
// /health (per-check JSON detail) onto an *http.ServeMux from a single
// aggregator.
//
// fluxgraphd's serve command builds one aggregator per process and
// registers three checkers: "state" (probes the state store), "events"
// (checks the event bus is still listening), and "emergency" (reports
// degraded once the emergency controller is at SHUTDOWN):
//
//	agg := health.NewAggregator()
//	agg.Register("state", health.NewCheckerFunc("state", func(ctx context.Context) health.Result {
//	    if _, err := store.Exists(ctx, "fluxgraphd:healthcheck"); err != nil {
//	        return health.Unhealthy("state store unreachable", err)
//	    }
//	    return health.Healthy("state store reachable")
//	}))
//	health.RegisterHandlers(mux, agg)
package health
