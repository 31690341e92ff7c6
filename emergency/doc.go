// Package emergency implements the four-level kill-switch the executor
// consults before running each node.
//
// # Core Components
//
//   - [Controller]: State/SetState/CanOperate/CanTrade/AssertCanOperate/
//     AssertCanTrade/CheckRiskLimit/Subscribe/PersistState/RestoreState
//   - [Level]: NORMAL < ALERT < HALT < SHUTDOWN, totally ordered
//
// # Rules
//
//   - NORMAL: any operation allowed.
//   - ALERT: all operations allowed; advisory only.
//   - HALT: EXECUTOR-category nodes are blocked; other categories still run.
//   - SHUTDOWN: nothing is allowed; the executor refuses new runs and
//     cancels in-flight ones.
//
// # Quick Start
//
//	ctrl := emergency.NewController(bus)
//	if err := ctrl.RestoreState(ctx, store); err != nil {
//	    return err
//	}
//
//	if err := ctrl.AssertCanOperate(); err != nil {
//	    return err
//	}
//	ctrl.CheckRiskLimit(ctx, "daily_drawdown", -520, -500, true) // auto-halts
//
// # Persistence
//
// SetState immediately persists nothing by itself; PersistState writes the
// current level/reason/timestamp to the injected state.Store under
// [StateKey] (ttl=0, unbounded). Call PersistState after every SetState
// you want to survive a restart, and RestoreState once at startup (the
// factory package does both as part of Build). A missing key on
// RestoreState is not an error — the controller starts at NORMAL.
//
// # Risk Limits
//
// CheckRiskLimit compares magnitudes, not raw values, so a limit of -500
// is exceeded by a current value of -520 exactly as a limit of 500 is
// exceeded by 520. When exceeded it publishes risk_limit_exceeded; when
// autoHalt is also true it transitions to HALT via SetState.
//
// # Events
//
// Every SetState publishes emergency_state_changed on [EventChannel]
// (workflow_events), the same channel the executor uses for its own
// lifecycle events, so the WebSocket broadcaster and any other bus
// subscriber see transitions without depending on the Controller directly.
// Subscribe registers an additional handler invoked synchronously,
// in-process, for callers that want to react without going through the
// bus (e.g. the factory package's handler that persists each transition).
//
// # Thread Safety
//
// Controller is safe for concurrent use; transitions are serialized under
// a mutex, the same locked-state-machine shape resilience.CircuitBreaker
// uses for its three states, scaled here to four totally-ordered levels.
package emergency
