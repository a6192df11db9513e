package host

import "path/filepath"

// Module is a loaded code unit (executable or shared library).
type Module struct {
	Name     string
	FileName string
	Base     Addr
	Size     uint64
}

// Contains reports whether addr lies inside the module's mapped range.
func (m *Module) Contains(addr Addr) bool {
	return addr >= m.Base && uint64(addr-m.Base) < m.Size
}

// DisplayName returns the module name, falling back to the file's base name.
func (m *Module) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	if m.FileName != "" {
		return filepath.Base(m.FileName)
	}
	return "<unknown>"
}

// ModuleResolver maps addresses to modules. Every module returned by
// ResolveModule must be handed back through ReleaseModule.
type ModuleResolver interface {
	ResolveModule(addr Addr) (*Module, bool)
	ReleaseModule(m *Module)
}
