// Package modmap is an in-memory module table implementing
// host.ModuleResolver.
package modmap

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"bbtrace/internal/host"
)

// Map is a sorted, non-overlapping set of loaded modules. Modules can be
// loaded and unloaded while lookups are in flight.
type Map struct {
	mu      sync.RWMutex
	modules []host.Module // sorted by Base

	outstanding atomic.Int64
}

// New returns a map populated with mods.
func New(mods ...host.Module) (*Map, error) {
	m := &Map{}
	for _, mod := range mods {
		if err := m.Load(mod); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Load adds a module. Overlapping an existing module is an error.
func (m *Map) Load(mod host.Module) error {
	if mod.Size == 0 {
		return fmt.Errorf("module %s at %s: empty range", mod.DisplayName(), mod.Base)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.modules), func(i int) bool { return m.modules[i].Base >= mod.Base })
	if i > 0 && m.modules[i-1].Contains(mod.Base) {
		return fmt.Errorf("module %s at %s overlaps %s", mod.DisplayName(), mod.Base, m.modules[i-1].DisplayName())
	}
	if i < len(m.modules) && mod.Contains(m.modules[i].Base) {
		return fmt.Errorf("module %s at %s overlaps %s", mod.DisplayName(), mod.Base, m.modules[i].DisplayName())
	}
	m.modules = append(m.modules, host.Module{})
	copy(m.modules[i+1:], m.modules[i:])
	m.modules[i] = mod
	return nil
}

// Unload removes the module loaded at base.
func (m *Map) Unload(base host.Addr) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.modules), func(i int) bool { return m.modules[i].Base >= base })
	if i == len(m.modules) || m.modules[i].Base != base {
		return false
	}
	m.modules = append(m.modules[:i], m.modules[i+1:]...)
	return true
}

// Modules returns a copy of the loaded modules in address order.
func (m *Map) Modules() []host.Module {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]host.Module(nil), m.modules...)
}

// ResolveModule returns a copy of the module containing addr. The caller
// owns the copy until ReleaseModule.
func (m *Map) ResolveModule(addr host.Addr) (*host.Module, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := sort.Search(len(m.modules), func(i int) bool { return m.modules[i].Base > addr })
	if i == 0 || !m.modules[i-1].Contains(addr) {
		return nil, false
	}
	mod := m.modules[i-1]
	m.outstanding.Add(1)
	return &mod, true
}

// ReleaseModule hands back a module returned by ResolveModule.
func (m *Map) ReleaseModule(mod *host.Module) {
	if mod == nil {
		return
	}
	if m.outstanding.Add(-1) < 0 {
		panic("modmap: release without matching resolve")
	}
}

// Outstanding reports resolved modules not yet released.
func (m *Map) Outstanding() int64 {
	return m.outstanding.Load()
}
