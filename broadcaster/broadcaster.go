// Package broadcaster fans workflow_events out to connected WebSocket
// clients. It never terminates HTTP itself: callers upgrade a request
// through Upgrade and hand the broadcaster an *http.Request's upgraded
// connection, wiring it into whatever router they use.
package broadcaster

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fluxgraph/core/eventbus"
	"github.com/fluxgraph/core/observe"
)

// writeWait bounds how long a single WriteMessage call may block before
// a slow client is dropped.
const writeWait = 5 * time.Second

// sendBuffer is how many pending messages a client's outgoing queue
// holds before the broadcaster starts dropping each new message for
// that client rather than blocking event delivery to everyone else.
const sendBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Filter narrows which events a Client receives. An empty field imposes
// no constraint on that dimension; an event missing the corresponding
// field (the emergency events the emergency package and the
// circuit-breaker events the factory package publish alongside node/run
// events) never matches a non-empty filter
// on that dimension, since those events are not scoped to a workflow.
type Filter struct {
	WorkflowID string
	BotID      string
	StrategyID string
}

func (f Filter) empty() bool {
	return f.WorkflowID == "" && f.BotID == "" && f.StrategyID == ""
}

// filterFields is the subset of the event envelope's wire shape a
// Filter matches against. Field names mirror the executor package's
// published JSON exactly; events that don't carry these keys (null on
// decode) simply fail to match a non-empty filter.
type filterFields struct {
	WorkflowID *string `json:"workflow_id"`
	BotID      *string `json:"bot_id"`
	StrategyID *string `json:"strategy_id"`
}

func (f Filter) matches(fields filterFields) bool {
	if f.empty() {
		return true
	}
	if f.WorkflowID != "" && (fields.WorkflowID == nil || *fields.WorkflowID != f.WorkflowID) {
		return false
	}
	if f.BotID != "" && (fields.BotID == nil || *fields.BotID != f.BotID) {
		return false
	}
	if f.StrategyID != "" && (fields.StrategyID == nil || *fields.StrategyID != f.StrategyID) {
		return false
	}
	return true
}

// Client is one connected WebSocket subscriber. Run blocks until the
// connection closes or ctx is cancelled; call it from a goroutine.
type Client struct {
	id     string
	conn   *websocket.Conn
	filter Filter
	logger observe.Logger
	owner  *Broadcaster

	send chan []byte
	once sync.Once
	done chan struct{}
}

// Upgrade upgrades r into a WebSocket connection and registers the
// resulting Client with b, subscribed to filter. The caller must call
// client.Run(ctx) (typically in its own goroutine) to start pumping
// events; Run returns once the connection closes and unregisters the
// client on its way out.
func (b *Broadcaster) Upgrade(w http.ResponseWriter, r *http.Request, filter Filter) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		id:     uuid.NewString(),
		conn:   conn,
		filter: filter,
		logger: b.logger,
		owner:  b,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	b.register(c)
	return c, nil
}

// Run pumps queued events to the client until ctx is cancelled, the
// connection errors, or Close is called, unregistering it from its
// Broadcaster before returning either way. Safe to call exactly once
// per Client.
func (c *Client) Run(ctx context.Context) {
	defer c.conn.Close()
	defer c.owner.Unregister(c)

	go func() {
		for {
			if _, _, err := c.conn.ReadMessage(); err != nil {
				c.Close()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Warn(ctx, "broadcaster: dropping client after write failure",
					observe.Field{Key: "client_id", Value: c.id},
					observe.Field{Key: "error", Value: err.Error()})
				return
			}
		}
	}
}

// Close stops Run. Idempotent.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue delivers payload to the client's outgoing queue, dropping the
// message (and logging) rather than blocking the publisher if the
// client isn't draining fast enough.
func (c *Client) enqueue(ctx context.Context, payload []byte) {
	select {
	case c.send <- payload:
	default:
		c.logger.Warn(ctx, "broadcaster: client queue full, dropping event",
			observe.Field{Key: "client_id", Value: c.id})
	}
}

// Broadcaster subscribes to an eventbus.Bus channel and fans every
// delivered event out to every registered Client whose Filter matches
// it. It is not on the executor's call path: Subscribe's handler never
// returns an error the bus would log as a failed delivery attempt
// against the executor's own publish, and a client's write failure only
// ever drops that one client.
type Broadcaster struct {
	logger observe.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

// New subscribes a Broadcaster to channel on bus. The returned
// Broadcaster must be kept alive (referenced) for as long as clients
// should keep receiving events; it holds no background goroutine of its
// own beyond what Subscribe registers on bus.
func New(bus eventbus.Bus, channel string, logger observe.Logger) (*Broadcaster, error) {
	b := &Broadcaster{logger: logger, clients: make(map[string]*Client)}
	if _, err := bus.Subscribe(channel, b.handle); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Broadcaster) register(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[c.id] = c
}

// Unregister removes c from the fan-out set. Run calls this itself on
// the way out; exported so a caller managing a client's lifecycle some
// other way can still clean up explicitly.
func (b *Broadcaster) Unregister(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, c.id)
}

// ClientCount reports how many clients are currently registered.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// handle is the eventbus.Handler fanning one delivered event out to
// every matching client. It always returns nil: a marshal failure or a
// client's full queue is logged, never propagated back to the bus.
func (b *Broadcaster) handle(ctx context.Context, evt eventbus.Event) error {
	raw, err := json.Marshal(evt.Payload)
	if err != nil {
		b.logger.Warn(ctx, "broadcaster: failed to encode event for fan-out",
			observe.Field{Key: "error", Value: err.Error()})
		return nil
	}

	var fields filterFields
	_ = json.Unmarshal(raw, &fields)

	b.mu.Lock()
	targets := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		if c.filter.matches(fields) {
			targets = append(targets, c)
		}
	}
	b.mu.Unlock()

	for _, c := range targets {
		c.enqueue(ctx, raw)
	}
	return nil
}
