package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxgraph/core/executor"
	"github.com/fluxgraph/core/graph"
	"github.com/fluxgraph/core/node"
)

func newRunCmd() *cobra.Command {
	var inputFlags []string

	cmd := &cobra.Command{
		Use:   "run <graph.json>",
		Short: "Execute a graph once and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			botID, _ := cmd.Flags().GetString("bot-id")
			strategyID, _ := cmd.Flags().GetString("strategy-id")
			return runGraph(cmd.Context(), args[0], inputFlags, botID, strategyID)
		},
	}
	cmd.Flags().StringArrayVar(&inputFlags, "input", nil,
		"initial input for a root port, as node_id.port=json_value; repeatable")
	return cmd
}

func runGraph(ctx context.Context, path string, inputFlags []string, botID, strategyID string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(exitGraphInvalid, fmt.Errorf("reading %s: %w", path, err))
	}

	builder, err := graph.ParseGraph(data)
	if err != nil {
		return fail(exitGraphInvalid, fmt.Errorf("parsing graph: %w", err))
	}
	g, err := builder.Build()
	if err != nil {
		return fail(exitGraphInvalid, fmt.Errorf("validating graph: %w", err))
	}

	inputs, err := parseInputFlags(inputFlags)
	if err != nil {
		return fail(exitGraphInvalid, err)
	}

	infra, err := buildInfrastructure(ctx)
	if err != nil {
		return err
	}
	defer infra.Close(ctx)

	exec, err := executor.New(infra, defaultRegistry())
	if err != nil {
		return fail(exitConfigError, fmt.Errorf("building executor: %w", err))
	}

	result, err := exec.Execute(ctx, g, inputs, node.NewSharedState(), executor.RunOptions{
		BotID:      botID,
		StrategyID: strategyID,
	})
	if err != nil {
		return fail(exitRuntimeError, fmt.Errorf("executing graph: %w", err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)

	switch result.Status {
	case executor.RunCompleted:
		return nil
	case executor.RunHalted:
		return fail(exitEmergencyHalted, fmt.Errorf("run %s halted", result.RunID))
	default:
		return fail(exitRuntimeError, fmt.Errorf("run %s failed", result.RunID))
	}
}

// parseInputFlags turns repeated --input node_id.port=json_value flags
// into executor.Inputs. The value after '=' is decoded as JSON, so
// `--input src.symbol='"BTC-USD"'` and `--input src.qty=10` both work;
// a value that isn't valid JSON is kept as a raw string.
func parseInputFlags(flags []string) (executor.Inputs, error) {
	inputs := make(executor.Inputs)
	for _, f := range flags {
		key, rawValue, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("--input %q: expected node_id.port=value", f)
		}
		nodeID, port, ok := strings.Cut(key, ".")
		if !ok {
			return nil, fmt.Errorf("--input %q: expected node_id.port before '='", f)
		}

		var value any
		if err := json.Unmarshal([]byte(rawValue), &value); err != nil {
			value = rawValue
		}

		if inputs[nodeID] == nil {
			inputs[nodeID] = map[string]any{}
		}
		inputs[nodeID][port] = value
	}
	return inputs, nil
}
