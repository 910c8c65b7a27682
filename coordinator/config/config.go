// Package config loads the runtime's top-level configuration: built-in
// defaults, an optional YAML file layered on top, and environment
// variables overriding both.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kestrelhq/agentmesh/coordinator/bus"
	"github.com/kestrelhq/agentmesh/coordinator/manager"
	"github.com/kestrelhq/agentmesh/coordinator/memory"
	"github.com/kestrelhq/agentmesh/coordinator/registry"
	"github.com/kestrelhq/agentmesh/coordinator/shared"
)

// MessageBusConfig holds the message fabric's capacities.
type MessageBusConfig struct {
	BroadcastCapacity int  `yaml:"broadcast_capacity"`
	P2PCapacity       int  `yaml:"p2p_capacity"`
	HistorySize       int  `yaml:"history_size"`
	EnablePersistence bool `yaml:"enable_persistence"`
}

// RegistryConfig mirrors the registry's documented defaults.
type RegistryConfig struct {
	HeartbeatTimeoutSecs int `yaml:"heartbeat_timeout_secs"`
	CleanupIntervalSecs  int `yaml:"cleanup_interval_secs"`
}

// MemoryConfig bounds the shared memory pool's tiers. Zero means
// unbounded, matching memory.DefaultConfig.
type MemoryConfig struct {
	GlobalCapacity      int `yaml:"global_capacity"`
	PerAgentCapacity    int `yaml:"per_agent_capacity"`
	CleanupIntervalSecs int `yaml:"cleanup_interval_secs"`
}

// AgentManagerConfig is the top-level config a host binary builds to wire
// the bus, registry, memory pool, and manager together.
type AgentManagerConfig struct {
	MessageBus        MessageBusConfig `yaml:"message_bus"`
	Registry          RegistryConfig   `yaml:"registry"`
	Memory            MemoryConfig     `yaml:"memory"`
	MaxAgents         int              `yaml:"max_agents"`
	EnableAutoScaling bool             `yaml:"enable_auto_scaling"`

	RuntimeMode        string `yaml:"runtime_mode"`
	MaxConcurrentTasks int    `yaml:"max_concurrent_tasks"`
	TaskTimeoutSecs    int    `yaml:"task_timeout_secs"`
	EnableLogging      bool   `yaml:"enable_logging"`
	LogLevel           string `yaml:"log_level"`

	ServiceName string `yaml:"service_name"`
	HealthAddr  string `yaml:"health_addr"`
}

// Default returns the AgentManagerConfig with every documented default
// value, before environment or YAML overrides are applied.
func Default() AgentManagerConfig {
	return AgentManagerConfig{
		MessageBus: MessageBusConfig{
			BroadcastCapacity: 1000,
			P2PCapacity:       100,
			HistorySize:       1000,
			EnablePersistence: false,
		},
		Registry: RegistryConfig{
			HeartbeatTimeoutSecs: 30,
			CleanupIntervalSecs:  60,
		},
		Memory: MemoryConfig{
			GlobalCapacity:      0,
			PerAgentCapacity:    0,
			CleanupIntervalSecs: 60,
		},
		MaxAgents:          100,
		EnableAutoScaling:  false,
		RuntimeMode:        "standard",
		MaxConcurrentTasks: 10,
		TaskTimeoutSecs:    300,
		EnableLogging:      true,
		LogLevel:           "info",
		ServiceName:        "agentmesh",
		HealthAddr:         "",
	}
}

// Load builds an AgentManagerConfig starting from Default, applying a YAML
// file at yamlPath if non-empty, then applying environment-variable
// overrides (env wins, so container deployments can override a baked-in
// file).
func Load(yamlPath string) (AgentManagerConfig, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return cfg, fmt.Errorf("reading config file %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", yamlPath, err)
		}
	}

	cfg.MessageBus.BroadcastCapacity = getEnvAsInt("AGENTMESH_BROADCAST_CAPACITY", cfg.MessageBus.BroadcastCapacity)
	cfg.MessageBus.P2PCapacity = getEnvAsInt("AGENTMESH_P2P_CAPACITY", cfg.MessageBus.P2PCapacity)
	cfg.MessageBus.HistorySize = getEnvAsInt("AGENTMESH_HISTORY_SIZE", cfg.MessageBus.HistorySize)
	cfg.Registry.HeartbeatTimeoutSecs = getEnvAsInt("AGENTMESH_HEARTBEAT_TIMEOUT_SECS", cfg.Registry.HeartbeatTimeoutSecs)
	cfg.Registry.CleanupIntervalSecs = getEnvAsInt("AGENTMESH_CLEANUP_INTERVAL_SECS", cfg.Registry.CleanupIntervalSecs)
	cfg.MaxAgents = getEnvAsInt("AGENTMESH_MAX_AGENTS", cfg.MaxAgents)
	cfg.LogLevel = getEnv("AGENTMESH_LOG_LEVEL", cfg.LogLevel)
	cfg.ServiceName = getEnv("AGENTMESH_SERVICE_NAME", cfg.ServiceName)
	cfg.HealthAddr = getEnv("AGENTMESH_HEALTH_ADDR", cfg.HealthAddr)

	return cfg, nil
}

// BusConfig translates the YAML/env shape into bus.Config.
func (c AgentManagerConfig) BusConfig() bus.Config {
	return bus.Config{
		BroadcastCapacity: c.MessageBus.BroadcastCapacity,
		P2PCapacity:       c.MessageBus.P2PCapacity,
		HistorySize:       c.MessageBus.HistorySize,
	}
}

// RegistryConfigValue translates the YAML/env shape into registry.Config.
func (c AgentManagerConfig) RegistryConfigValue() registry.Config {
	return registry.Config{
		HeartbeatTimeout: time.Duration(c.Registry.HeartbeatTimeoutSecs) * time.Second,
		CleanupInterval:  time.Duration(c.Registry.CleanupIntervalSecs) * time.Second,
	}
}

// MemoryConfigValue translates the YAML/env shape into memory.Config.
func (c AgentManagerConfig) MemoryConfigValue() memory.Config {
	return memory.Config{
		GlobalCapacity:   c.Memory.GlobalCapacity,
		PerAgentCapacity: c.Memory.PerAgentCapacity,
		CleanupInterval:  time.Duration(c.Memory.CleanupIntervalSecs) * time.Second,
	}
}

// ManagerConfig translates the YAML/env shape into manager.Config.
func (c AgentManagerConfig) ManagerConfig() manager.Config {
	return manager.Config{
		MaxAgents:         c.MaxAgents,
		EnableAutoScaling: c.EnableAutoScaling,
		HeartbeatInterval: 10 * time.Second,
		TerminateTimeout:  10 * time.Second,
	}
}

// GlobalConfig translates the YAML/env shape into shared.GlobalConfig.
func (c AgentManagerConfig) GlobalConfig() shared.GlobalConfig {
	return shared.GlobalConfig{
		RuntimeMode:        shared.RuntimeMode(c.RuntimeMode),
		MaxConcurrentTasks: c.MaxConcurrentTasks,
		TaskTimeoutSecs:    c.TaskTimeoutSecs,
		EnableLogging:      c.EnableLogging,
		LogLevel:           c.LogLevel,
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if iv, err := strconv.Atoi(v); err == nil {
			return iv
		}
	}
	return defaultValue
}
