package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrelhq/agentmesh/coordinator/agents"
	"github.com/kestrelhq/agentmesh/coordinator/ids"
	"github.com/kestrelhq/agentmesh/coordinator/types"
	"github.com/kestrelhq/agentmesh/coordinator/worker"
)

var spawnType string

var spawnCmd = &cobra.Command{
	Use:   "spawn",
	Short: "Spawn one agent of the given type, print its status, and exit",
	RunE:  runSpawn,
}

func init() {
	spawnCmd.Flags().StringVar(&spawnType, "type", "executor", "agent type: planner, executor, verifier, monitor, master")
}

func newAgentByType(kind string, rt *runtime) (worker.Behavior, error) {
	id := ids.New(kind)
	switch kind {
	case "planner":
		return agents.NewPlanner(id, echoGenerator{}), nil
	case "executor":
		return agents.NewExecutor(id, echoTools{}, rt.pool), nil
	case "verifier":
		return agents.NewVerifier(id, agents.AlwaysPass), nil
	case "monitor":
		source := func() agents.Snapshot {
			stats := rt.manager.Stats()
			qstats := rt.queue.Stats()
			return agents.Snapshot{
				TasksCompleted:  qstats.Completed,
				TasksFailed:     qstats.Failed,
				AliveAgents:     stats.Alive,
				TotalAgents:     stats.TotalAgents,
				PendingMessages: qstats.Pending,
			}
		}
		rules := []agents.AlertRule{
			agents.ErrorRateHigh(0.5),
			agents.TaskFailureRate(10),
			agents.AgentUnhealthy(0.5),
			agents.MessageBacklog(100),
		}
		return agents.NewMonitor(id, source, rules, 10*time.Second, rt.manager.Broadcast), nil
	case "master":
		finder := func() (string, bool) {
			for _, info := range rt.manager.FindByCapability(types.CapabilityTaskExecution) {
				return info.ID, true
			}
			return "", false
		}
		return agents.NewMaster(id, echoGenerator{}, rt.queue, rt.manager.Send, finder), nil
	default:
		return nil, fmt.Errorf("unknown agent type %q", kind)
	}
}

func runSpawn(cmd *cobra.Command, args []string) error {
	rt, err := bootRuntime()
	if err != nil {
		return err
	}
	defer rt.shutdown(context.Background())

	w, err := newAgentByType(spawnType, rt)
	if err != nil {
		return err
	}

	id, err := rt.manager.Spawn(context.Background(), w)
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}

	time.Sleep(50 * time.Millisecond) // give the driver goroutine a moment to start
	status, _ := rt.manager.Status(id)
	fmt.Printf("spawned %s\n  type:         %s\n  status:       %s\n  capabilities: %v\n",
		id, status.Type, status.AgentStatus, status.Capabilities)
	return nil
}
