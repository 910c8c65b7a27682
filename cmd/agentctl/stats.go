package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsDuration time.Duration

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Spawn the default agent set, let it run briefly, then print aggregate stats",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().DurationVar(&statsDuration, "duration", time.Second, "how long to let the runtime run before sampling stats")
}

func runStats(cmd *cobra.Command, args []string) error {
	rt, err := bootRuntime()
	if err != nil {
		return err
	}
	defer rt.shutdown(context.Background())

	for _, kind := range []string{"planner", "executor", "verifier", "monitor", "master"} {
		w, err := newAgentByType(kind, rt)
		if err != nil {
			return err
		}
		if _, err := rt.manager.Spawn(context.Background(), w); err != nil {
			return fmt.Errorf("spawn %s: %w", kind, err)
		}
	}

	time.Sleep(statsDuration)

	ms := rt.manager.Stats()
	qs := rt.queue.Stats()

	fmt.Printf("agents:   total=%d alive=%d idle=%d busy=%d\n", ms.TotalAgents, ms.Alive, ms.Idle, ms.Busy)
	fmt.Printf("messages: total=%d failed=%d\n", ms.TotalMessages, ms.FailedMessages)
	fmt.Printf("tasks:    pending=%d in_progress=%d completed=%d failed=%d\n",
		qs.Pending, qs.InProgress, qs.Completed, qs.Failed)
	return nil
}
