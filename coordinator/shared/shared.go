// Package shared holds the GlobalContext: the read-mostly runtime config
// and scratchpad handed by reference to every spawned driver. Named
// "shared" rather than "context" to avoid colliding with the standard
// library's context package in import lists throughout the rest of this
// module.
package shared

import "sync"

// RuntimeMode names the runtime's operating mode. It is carried in
// GlobalConfig for workers to read; no package in this module changes its
// behavior based on it.
type RuntimeMode string

const (
	RuntimeModeStandard RuntimeMode = "standard"
	RuntimeModeStrict   RuntimeMode = "strict"
)

// GlobalConfig is the configuration a host binds a GlobalContext from.
type GlobalConfig struct {
	RuntimeMode        RuntimeMode
	MaxConcurrentTasks int
	TaskTimeoutSecs    int
	EnableLogging      bool
	LogLevel           string
}

func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		RuntimeMode:        RuntimeModeStandard,
		MaxConcurrentTasks: 10,
		TaskTimeoutSecs:    300,
		EnableLogging:      true,
		LogLevel:           "info",
	}
}

// GlobalContext is shared by reference among every driver: read-mostly
// config plus a shared scratchpad guarded by a single RWMutex.
type GlobalContext struct {
	Config GlobalConfig

	mu   sync.RWMutex
	data map[string]any
}

func New(cfg GlobalConfig) *GlobalContext {
	return &GlobalContext{
		Config: cfg,
		data:   make(map[string]any),
	}
}

// Get reads a scratchpad value.
func (g *GlobalContext) Get(key string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.data[key]
	return v, ok
}

// Set writes a scratchpad value.
func (g *GlobalContext) Set(key string, value any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.data[key] = value
}
