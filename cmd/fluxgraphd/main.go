// Command fluxgraphd runs and serves workflow graphs built from the
// engine's core packages: graph, node, executor, factory, broadcaster.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes match the CLI's documented contract exactly: 0 success, 1
// graph invalid, 2 configuration error, 3 runtime error, 4 halted by
// emergency.
const (
	exitSuccess         = 0
	exitGraphInvalid    = 1
	exitConfigError     = 2
	exitRuntimeError    = 3
	exitEmergencyHalted = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fluxgraphd:", err)
		if code, ok := exitCodeFromError(err); ok {
			return code
		}
		return exitRuntimeError
	}
	return exitSuccess
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fluxgraphd",
		Short:         "Run and serve workflow execution graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("bot-id", "", "bot id recorded on every event and checkpoint")
	root.PersistentFlags().String("strategy-id", "", "strategy id recorded on every event and checkpoint")

	root.AddCommand(newRunCmd())
	root.AddCommand(newServeCmd())
	return root
}

// exitCode is an error wrapper a subcommand uses to request a specific
// process exit code without cobra printing a usage dump for it.
type exitCode struct {
	code int
	err  error
}

func (e *exitCode) Error() string { return e.err.Error() }
func (e *exitCode) Unwrap() error { return e.err }

func exitCodeFromError(err error) (int, bool) {
	ec, ok := err.(*exitCode)
	if !ok {
		return 0, false
	}
	return ec.code, true
}

func fail(code int, err error) error {
	return &exitCode{code: code, err: err}
}
