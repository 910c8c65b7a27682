package types

import "testing"

func TestAgentTypeString(t *testing.T) {
	cases := []struct {
		t    AgentType
		want string
	}{
		{AgentTypeMaster, "master"},
		{AgentTypePlanner, "planner"},
		{CustomAgentType("researcher"), "custom:researcher"},
	}
	for _, c := range cases {
		if got := c.t.String(); got != c.want {
			t.Errorf("AgentType.String() = %q, want %q", got, c.want)
		}
	}
}

func TestAgentCapabilityString(t *testing.T) {
	cases := []struct {
		c    AgentCapability
		want string
	}{
		{CapabilityTaskPlanning, "task_planning"},
		{ToolCalling("fetch_url"), "tool_calling(fetch_url)"},
		{CustomCapability("summarize"), "custom(summarize)"},
	}
	for _, c := range cases {
		if got := c.c.String(); got != c.want {
			t.Errorf("AgentCapability.String() = %q, want %q", got, c.want)
		}
	}
}

func TestPriorityOrdering(t *testing.T) {
	if !(PriorityLow < PriorityNormal && PriorityNormal < PriorityHigh && PriorityHigh < PriorityUrgent) {
		t.Fatal("priority levels are not in the documented total order Low < Normal < High < Urgent")
	}
}

func TestTaskStatusConstructors(t *testing.T) {
	if s := Assigned("agent-1"); s.Kind != TaskAssigned || s.AgentID != "agent-1" {
		t.Errorf("Assigned() = %+v, want Kind=%s AgentID=agent-1", s, TaskAssigned)
	}
	if s := Failed("timeout"); s.Kind != TaskFailed || s.Reason != "timeout" {
		t.Errorf("Failed() = %+v, want Kind=%s Reason=timeout", s, TaskFailed)
	}
	if s := Pending(); s.String() != string(TaskPending) {
		t.Errorf("Pending().String() = %q, want %q", s.String(), TaskPending)
	}
	if got := Assigned("a1").String(); got != "assigned(a1)" {
		t.Errorf("Assigned(a1).String() = %q, want assigned(a1)", got)
	}
}

func TestAccessLevelValues(t *testing.T) {
	// The access levels label memory pool entries by visibility: Public,
	// Private, Shared — not a read/write permission scheme.
	for _, lvl := range []AccessLevel{AccessPublic, AccessPrivate, AccessShared} {
		if lvl == "" {
			t.Fatal("access level must not be the empty string")
		}
	}
}
