// Package broadcaster is documented alongside its implementation in
// broadcaster.go.
//
// # Core Components
//
//   - [Broadcaster]: New(bus, channel, logger) subscribes to an
//     eventbus.Bus channel; Upgrade(w, r, filter) registers a new client
//   - [Client]: Run(ctx) pumps queued events to one WebSocket connection
//   - [Filter]: narrows a client's subscription by workflow/bot/strategy id
//
// # Quick Start
//
//	b, _ := broadcaster.New(infra.Events, emergency.EventChannel, infra.Observer.Logger())
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//	    client, err := b.Upgrade(w, r, broadcaster.Filter{WorkflowID: r.URL.Query().Get("workflow_id")})
//	    if err != nil {
//	        return
//	    }
//	    client.Run(r.Context())
//	})
//
// # Isolation from the executor
//
// A client's write failure or a full outgoing queue is logged and that
// client alone is dropped; nothing here ever returns an error the bus
// would attribute to the executor's own publish call, and the
// broadcaster's handler always returns nil to the bus.
package broadcaster
