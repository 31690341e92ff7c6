package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluxgraph/core/broadcaster"
	"github.com/fluxgraph/core/emergency"
	"github.com/fluxgraph/core/health"
	"github.com/fluxgraph/core/observe"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a health endpoint and a WebSocket event feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	return cmd
}

func serve(ctx context.Context, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := buildInfrastructure(ctx)
	if err != nil {
		return err
	}
	defer infra.Close(context.Background())

	agg := health.NewAggregator()
	agg.Register("state", health.NewCheckerFunc("state", func(ctx context.Context) health.Result {
		if _, err := infra.State.Exists(ctx, "fluxgraphd:healthcheck"); err != nil {
			return health.Unhealthy("state store unreachable", err)
		}
		return health.Healthy("state store reachable")
	}))
	agg.Register("events", health.NewCheckerFunc("events", func(ctx context.Context) health.Result {
		if err := infra.Events.Publish(ctx, "fluxgraphd:healthcheck", nil); err != nil {
			return health.Unhealthy("event bus unreachable", err)
		}
		return health.Healthy("event bus reachable")
	}))
	agg.Register("emergency", health.NewCheckerFunc("emergency", func(_ context.Context) health.Result {
		if err := infra.Emergency.AssertCanOperate(); err != nil {
			return health.Degraded(err.Error())
		}
		return health.Healthy(fmt.Sprintf("level=%s", infra.Emergency.State()))
	}))

	bc, err := broadcaster.New(infra.Events, emergency.EventChannel, infra.Observer.Logger())
	if err != nil {
		return fail(exitConfigError, fmt.Errorf("building broadcaster: %w", err))
	}

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		client, err := bc.Upgrade(w, r, broadcaster.Filter{
			WorkflowID: r.URL.Query().Get("workflow_id"),
			BotID:      r.URL.Query().Get("bot_id"),
			StrategyID: r.URL.Query().Get("strategy_id"),
		})
		if err != nil {
			infra.Observer.Logger().Warn(r.Context(), "serve: websocket upgrade failed",
				observe.Field{Key: "error", Value: err.Error()})
			return
		}
		client.Run(r.Context())
	})

	server := &http.Server{Addr: addr, Handler: mux}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	infra.Observer.Logger().Info(ctx, "fluxgraphd: serving", observe.Field{Key: "addr", Value: addr})

	select {
	case <-ctx.Done():
		infra.Emergency.SetState(context.Background(), emergency.SHUTDOWN, "process shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fail(exitRuntimeError, fmt.Errorf("shutting down http server: %w", err))
		}
		return nil
	case err := <-serveErr:
		if err != nil {
			return fail(exitRuntimeError, fmt.Errorf("http server: %w", err))
		}
		return nil
	}
}
