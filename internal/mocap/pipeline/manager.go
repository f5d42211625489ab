package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vrmcast/vrmcast/internal/vrm"
)

// Manager is the process-wide registry of pipelines. Each pipeline is
// fully isolated: its own channel state, socket, and recorder. The HTTP
// control surface and the startup config both create pipelines through
// the manager so ids stay unique.
type Manager struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
}

func NewManager() *Manager {
	return &Manager{pipelines: make(map[string]*Pipeline)}
}

// Create registers a new idle pipeline under settings.ID.
func (m *Manager) Create(settings Settings, profile *vrm.CapabilityProfile) (*Pipeline, error) {
	if settings.ID == "" {
		return nil, fmt.Errorf("pipeline id is required")
	}
	p, err := New(settings, profile)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pipelines[settings.ID]; exists {
		return nil, fmt.Errorf("pipeline %s already exists", settings.ID)
	}
	m.pipelines[settings.ID] = p
	return p, nil
}

// Get returns the pipeline registered under id.
func (m *Manager) Get(id string) (*Pipeline, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pipelines[id]
	return p, ok
}

// Remove stops the pipeline and drops it from the registry.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	p, ok := m.pipelines[id]
	if ok {
		delete(m.pipelines, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("pipeline %s not found", id)
	}
	p.Stop()
	return nil
}

// List returns all registered pipelines sorted by id.
func (m *Manager) List() []*Pipeline {
	m.mu.RLock()
	out := make([]*Pipeline, 0, len(m.pipelines))
	for _, p := range m.pipelines {
		out = append(out, p)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// StopAll brings every pipeline to Idle. Used on shutdown so in-flight
// recordings are sealed before the process exits.
func (m *Manager) StopAll() {
	for _, p := range m.List() {
		p.Stop()
	}
}
