package config

import (
	"os"
	"testing"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	cfg := Default()
	if cfg.MessageBus.BroadcastCapacity != 1000 {
		t.Errorf("BroadcastCapacity = %d, want 1000", cfg.MessageBus.BroadcastCapacity)
	}
	if cfg.MessageBus.P2PCapacity != 100 {
		t.Errorf("P2PCapacity = %d, want 100", cfg.MessageBus.P2PCapacity)
	}
	if cfg.Registry.HeartbeatTimeoutSecs != 30 {
		t.Errorf("HeartbeatTimeoutSecs = %d, want 30", cfg.Registry.HeartbeatTimeoutSecs)
	}
	if cfg.Registry.CleanupIntervalSecs != 60 {
		t.Errorf("CleanupIntervalSecs = %d, want 60", cfg.Registry.CleanupIntervalSecs)
	}
	if cfg.MaxAgents != 100 {
		t.Errorf("MaxAgents = %d, want 100", cfg.MaxAgents)
	}
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	t.Setenv("AGENTMESH_MAX_AGENTS", "7")
	t.Setenv("AGENTMESH_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxAgents != 7 {
		t.Errorf("MaxAgents = %d, want 7 from env override", cfg.MaxAgents)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug from env override", cfg.LogLevel)
	}
}

func TestLoadYAMLFileLayeredUnderEnv(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "agentmesh-*.yaml")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.WriteString("max_agents: 42\nlog_level: warn\nhealth_addr: \"file:9090\"\n"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	f.Close()
	t.Setenv("AGENTMESH_HEALTH_ADDR", "env:9091")

	cfg, err := Load(f.Name())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxAgents != 42 {
		t.Errorf("MaxAgents = %d, want 42 from YAML file", cfg.MaxAgents)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn from YAML file", cfg.LogLevel)
	}
	if cfg.HealthAddr != "env:9091" {
		t.Errorf("HealthAddr = %q, want env:9091 (env overrides the YAML file)", cfg.HealthAddr)
	}
}

func TestTranslationHelpers(t *testing.T) {
	cfg := Default()
	bus := cfg.BusConfig()
	if bus.BroadcastCapacity != cfg.MessageBus.BroadcastCapacity {
		t.Errorf("BusConfig().BroadcastCapacity = %d, want %d", bus.BroadcastCapacity, cfg.MessageBus.BroadcastCapacity)
	}
	if cfg.RegistryConfigValue().HeartbeatTimeout.Seconds() != float64(cfg.Registry.HeartbeatTimeoutSecs) {
		t.Error("RegistryConfigValue() did not convert seconds to a time.Duration correctly")
	}
	if cfg.ManagerConfig().MaxAgents != cfg.MaxAgents {
		t.Error("ManagerConfig().MaxAgents mismatch")
	}
	if cfg.GlobalConfig().LogLevel != cfg.LogLevel {
		t.Error("GlobalConfig().LogLevel mismatch")
	}
}
