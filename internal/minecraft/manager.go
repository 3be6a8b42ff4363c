package minecraft

import (
	"context"
	"sort"
	"sync"
	"time"

	"protonmc/internal/logging"
	"protonmc/internal/model"
)

// Options configures a Manager.
type Options struct {
	Build           CommandBuilder
	ConsoleMaxLines int
	StopTimeout     time.Duration
	Logger          *logging.Logger
}

// Manager owns one Instance per registered server and fans their events out to sinks.
type Manager struct {
	build       CommandBuilder
	consoleMax  int
	stopTimeout time.Duration
	log         *logging.Logger

	mu        sync.RWMutex
	instances map[string]*Instance
	sinks     []Sink
}

// NewManager creates an empty manager.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 30 * time.Second
	}
	return &Manager{
		build:       opts.Build,
		consoleMax:  opts.ConsoleMaxLines,
		stopTimeout: opts.StopTimeout,
		log:         opts.Logger.With("component", "minecraft"),
		instances:   map[string]*Instance{},
	}
}

// AddSink subscribes s to every instance event.
func (m *Manager) AddSink(s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	sinks := append([]Sink(nil), m.sinks...)
	m.mu.RUnlock()
	for _, s := range sinks {
		s.HandleEvent(e)
	}
}

// Register returns the instance for srv, creating it on first use.
func (m *Manager) Register(srv model.Server) *Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.instances[srv.Name]; ok {
		return inst
	}
	inst := newInstance(srv, m)
	m.instances[srv.Name] = inst
	return inst
}

// Get looks up a registered instance.
func (m *Manager) Get(name string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[name]
	return inst, ok
}

// Remove forgets a stopped instance.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[name]
	if !ok {
		return nil
	}
	if inst.State() != model.StateStopped && inst.State() != model.StateCreating {
		return ErrServerBusy
	}
	delete(m.instances, name)
	return nil
}

// Names lists registered servers alphabetically.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.instances))
	for n := range m.instances {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunningCount returns how many servers are starting or running.
func (m *Manager) RunningCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, inst := range m.instances {
		if inst.Running() {
			n++
		}
	}
	return n
}

// Shutdown stops every running server and waits for them, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	all := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		all = append(all, inst)
	}
	m.mu.RUnlock()

	for _, inst := range all {
		if inst.Stop() {
			m.log.Info("server_shutdown_requested", "server", inst.Server().Name)
		}
	}
	for _, inst := range all {
		if err := inst.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
