package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fluxgraph/core/config"
	"github.com/fluxgraph/core/factory"
	"github.com/fluxgraph/core/node"
	"github.com/fluxgraph/core/nodes"
	"github.com/fluxgraph/core/secret"
)

// buildInfrastructure loads configuration and wires an Infrastructure.
// Any failure here is a configuration error (exit code 2): run has
// already parsed and validated its graph before calling this, and serve
// has no graph, so nothing here can be a graph error.
func buildInfrastructure(ctx context.Context) (*factory.Infrastructure, error) {
	resolver := secret.NewResolver(true, envProvider{})
	cfg, err := config.Load(ctx, resolver)
	if err != nil {
		return nil, fail(exitConfigError, fmt.Errorf("loading configuration: %w", err))
	}

	infra, err := factory.Build(ctx, cfg)
	if err != nil {
		return nil, fail(exitConfigError, fmt.Errorf("building infrastructure: %w", err))
	}
	return infra, nil
}

// defaultRegistry returns a node.Registry seeded with the generic
// placeholder kinds from the nodes package. A real deployment registers
// its own node kinds over this same Registry before calling Execute.
func defaultRegistry() *node.Registry {
	reg := node.NewRegistry()
	nodes.RegisterBuiltins(reg)
	return reg
}

// envProvider resolves "secretref:env:NAME" the same way ${NAME}
// expansion already does, so a config file can use either form
// interchangeably.
type envProvider struct{}

func (envProvider) Name() string { return "env" }

func (envProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("env: variable %q not set", ref)
	}
	return v, nil
}

func (envProvider) Close() error { return nil }
