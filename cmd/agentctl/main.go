// Command agentctl is the operator CLI for the coordination runtime: it
// boots an in-process Manager wired to the bus and registry, alongside a
// task queue and shared memory pool handed to the agents it spawns, and
// drives one
// operation against them before exiting. It does not talk to a remote
// daemon — the runtime it drives lives only for the lifetime of the
// command, matching the library's no-cross-process-transport stance.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	logLevel    string
	serviceName string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "agentctl: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agentctl",
	Short: "Operate a local agent coordination runtime",
	Long: `agentctl boots the coordination runtime's message bus, registry,
task queue, and shared memory pool in-process, spawns agents, and runs a
single operator command against them.

It is a development and smoke-test tool, not a client for a remote
cluster: every subcommand owns its runtime for the command's lifetime.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (optional, env vars override)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "overrides AGENTMESH_LOG_LEVEL for this invocation")
	rootCmd.PersistentFlags().StringVar(&serviceName, "service-name", "agentctl", "service name attached to logs, traces, and metrics")

	rootCmd.AddCommand(spawnCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(submitTaskCmd)
	rootCmd.AddCommand(statsCmd)
}
