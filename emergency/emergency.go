package emergency

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/fluxgraph/core/eventbus"
	"github.com/fluxgraph/core/state"
	"github.com/fluxgraph/core/wferr"
)

// Level is a totally-ordered emergency state. Levels only ever compare by
// their numeric value: NORMAL < ALERT < HALT < SHUTDOWN.
type Level int

const (
	// NORMAL allows every operation.
	NORMAL Level = iota
	// ALERT allows every operation; advisory only.
	ALERT
	// HALT blocks EXECUTOR-category nodes; other categories still run.
	HALT
	// SHUTDOWN blocks every operation; the executor refuses new runs and
	// cancels in-flight ones.
	SHUTDOWN
)

func (l Level) String() string {
	switch l {
	case NORMAL:
		return "NORMAL"
	case ALERT:
		return "ALERT"
	case HALT:
		return "HALT"
	case SHUTDOWN:
		return "SHUTDOWN"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// StateKey is the well-known state-store key PersistState writes to and
// RestoreState reads from on startup.
const StateKey = "emergency:state"

// EventChannel is the channel emergency_state_changed and
// risk_limit_exceeded events are published on.
const EventChannel = "workflow_events"

// ErrHalted is returned by AssertCanTrade when the controller is at HALT
// or SHUTDOWN.
var ErrHalted = wferr.New(wferr.KindEmergencyHalted, "trading operations are halted")

// ErrShutdown is returned by AssertCanOperate when the controller is at
// SHUTDOWN.
var ErrShutdown = wferr.New(wferr.KindEmergencyHalted, "all operations are shut down")

// Handler observes emergency state transitions and risk-limit breaches.
type Handler func(ctx context.Context, from, to Level, reason string)

// persistedState is the JSON shape written to the state store by
// PersistState and read back by RestoreState.
type persistedState struct {
	Level     Level     `json:"level"`
	Reason    string    `json:"reason"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Controller is the emergency gate the executor consults before running
// each node. It is grounded on the same mutex-guarded struct-with-enum
// shape resilience.CircuitBreaker uses, scaled from 3 states to 4
// totally-ordered levels.
type Controller struct {
	bus eventbus.Bus

	mu      sync.Mutex
	level   Level
	reason  string
	updated time.Time

	subMu    sync.Mutex
	handlers []Handler
}

// NewController creates a Controller at NORMAL, publishing transitions on
// bus.
func NewController(bus eventbus.Bus) *Controller {
	return &Controller{
		bus:     bus,
		level:   NORMAL,
		updated: time.Now(),
	}
}

// State returns the current emergency level.
func (c *Controller) State() Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// SetState transitions the controller to level for reason, publishing
// emergency_state_changed and notifying every registered Subscribe
// handler. Safe to call from concurrent goroutines; transitions are
// serialized.
func (c *Controller) SetState(ctx context.Context, level Level, reason string) {
	c.mu.Lock()
	from := c.level
	c.level = level
	c.reason = reason
	c.updated = time.Now()
	c.mu.Unlock()

	c.notify(ctx, from, level, reason)

	if c.bus != nil {
		_ = c.bus.Publish(ctx, EventChannel, map[string]any{
			"kind":   "emergency_state_changed",
			"from":   from.String(),
			"to":     level.String(),
			"reason": reason,
		})
	}
}

func (c *Controller) notify(ctx context.Context, from, to Level, reason string) {
	c.subMu.Lock()
	handlers := make([]Handler, len(c.handlers))
	copy(handlers, c.handlers)
	c.subMu.Unlock()

	for _, h := range handlers {
		h(ctx, from, to, reason)
	}
}

// Subscribe registers handler to be called synchronously on every state
// transition, in addition to the emergency_state_changed event published
// on the bus.
func (c *Controller) Subscribe(handler Handler) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// CanOperate reports whether any operation is currently permitted
// (everything except SHUTDOWN).
func (c *Controller) CanOperate() bool {
	return c.State() != SHUTDOWN
}

// CanTrade reports whether EXECUTOR-category nodes may run (NORMAL or
// ALERT only).
func (c *Controller) CanTrade() bool {
	level := c.State()
	return level == NORMAL || level == ALERT
}

// AssertCanOperate returns ErrShutdown if the controller is at SHUTDOWN.
func (c *Controller) AssertCanOperate() error {
	if !c.CanOperate() {
		return ErrShutdown
	}
	return nil
}

// AssertCanTrade returns ErrHalted if the controller is at HALT or
// SHUTDOWN.
func (c *Controller) AssertCanTrade() error {
	if !c.CanTrade() {
		return ErrHalted
	}
	return nil
}

// riskLimitExceeded reports whether current has breached limit, comparing
// magnitudes so that a limit of -500 is exceeded by a value of -520 (a
// larger loss) exactly as it would be by +520 against a +500 limit.
func riskLimitExceeded(current, limit float64) bool {
	return math.Abs(current) >= math.Abs(limit)
}

// CheckRiskLimit compares current against limit by magnitude. If
// exceeded, it publishes risk_limit_exceeded; if autoHalt is also true, it
// additionally transitions the controller to HALT. Returns whether the
// limit was exceeded.
func (c *Controller) CheckRiskLimit(ctx context.Context, name string, current, limit float64, autoHalt bool) bool {
	if !riskLimitExceeded(current, limit) {
		return false
	}

	if c.bus != nil {
		_ = c.bus.Publish(ctx, EventChannel, map[string]any{
			"kind":    "risk_limit_exceeded",
			"name":    name,
			"current": current,
			"limit":   limit,
		})
	}

	if autoHalt {
		c.SetState(ctx, HALT, fmt.Sprintf("risk limit %q exceeded: %v >= %v", name, current, limit))
	}
	return true
}

// PersistState writes the current level and reason to store under
// StateKey, unbounded (ttl=0).
func (c *Controller) PersistState(ctx context.Context, store state.Store) error {
	c.mu.Lock()
	snapshot := persistedState{Level: c.level, Reason: c.reason, UpdatedAt: c.updated}
	c.mu.Unlock()

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("emergency: failed to encode state: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("emergency: failed to decode state for storage: %w", err)
	}

	return store.Set(ctx, StateKey, decoded, 0)
}

// RestoreState reads a previously persisted level from store, so an
// operator-triggered shutdown survives a process restart. A missing key
// is not an error; the controller simply stays at NORMAL.
func (c *Controller) RestoreState(ctx context.Context, store state.Store) error {
	value, err := store.Get(ctx, StateKey)
	if err != nil {
		if err == state.ErrNotFound {
			return nil
		}
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("emergency: failed to re-encode restored state: %w", err)
	}

	var snapshot persistedState
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return fmt.Errorf("emergency: failed to decode restored state: %w", err)
	}

	c.mu.Lock()
	c.level = snapshot.Level
	c.reason = snapshot.Reason
	c.updated = snapshot.UpdatedAt
	c.mu.Unlock()
	return nil
}
