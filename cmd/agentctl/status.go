package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Spawn one of every built-in agent type and print their statuses",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	time.Sleep(50 * time.Millisecond)

	fmt.Printf("%-24s %-10s %-8s %s\n", "ID", "TYPE", "STATUS", "CAPABILITIES")
	for _, st := range rt.manager.StatusAll() {
		fmt.Printf("%-24s %-10s %-8s %v\n", st.ID, st.Type, st.AgentStatus, st.Capabilities)
	}
	return nil
}
