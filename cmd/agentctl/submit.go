package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrelhq/agentmesh/coordinator/message"
	"github.com/kestrelhq/agentmesh/coordinator/types"
)

var (
	submitGoal    string
	submitTimeout time.Duration
)

var submitTaskCmd = &cobra.Command{
	Use:   "submit-task",
	Short: "Submit a goal to a Master agent and wait for it to complete",
	RunE:  runSubmitTask,
}

func init() {
	submitTaskCmd.Flags().StringVar(&submitGoal, "goal", "", "goal text to hand to the Master agent (required)")
	submitTaskCmd.Flags().DurationVar(&submitTimeout, "timeout", 10*time.Second, "how long to wait for completion")
	submitTaskCmd.MarkFlagRequired("goal")
}

func runSubmitTask(cmd *cobra.Command, args []string) error {
	rt, err := bootRuntime()
	if err != nil {
		return err
	}
	defer rt.shutdown(context.Background())

	for _, kind := range []string{"executor", "master"} {
		w, err := newAgentByType(kind, rt)
		if err != nil {
			return err
		}
		if _, err := rt.manager.Spawn(context.Background(), w); err != nil {
			return fmt.Errorf("spawn %s: %w", kind, err)
		}
	}

	// The CLI itself is the Master's correspondent: register it on the
	// bus under a fixed id so the Master's completion notice has
	// somewhere to land.
	operator, err := rt.bus.Register("agentctl-operator")
	if err != nil {
		return fmt.Errorf("registering operator receiver: %w", err)
	}
	defer rt.bus.Unregister("agentctl-operator")

	masterID := findMasterID(rt)
	if masterID == "" {
		return fmt.Errorf("no master agent was spawned")
	}

	req := message.New("agentctl-operator", masterID, message.KindTaskAssignment, types.PriorityNormal,
		map[string]any{"goal": submitGoal})
	if err := rt.bus.Send(context.Background(), req); err != nil {
		return fmt.Errorf("sending goal: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	accepted, err := operator.Recv(ctx)
	if err != nil {
		return fmt.Errorf("waiting for master's acceptance: %w", err)
	}
	fmt.Printf("accepted: %+v\n", accepted.Payload)

	for {
		reply, err := operator.Recv(ctx)
		if err != nil {
			return fmt.Errorf("waiting for completion: %w", err)
		}
		if reply.Kind == message.KindResultNotification {
			fmt.Printf("completed: %+v\n", reply.Payload)
			return nil
		}
	}
}

func findMasterID(rt *runtime) string {
	for _, st := range rt.manager.StatusAll() {
		if st.Type == types.AgentTypeMaster {
			return st.ID
		}
	}
	return ""
}
