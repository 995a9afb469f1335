package varstore

import (
	"fmt"

	"github.com/systemboot/bootmgr/pkg/loadoption"
)

// Memory is a map backed Store.
type Memory struct {
	vars map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{vars: make(map[string][]byte)}
}

// Set stores a copy of value under name.
func (m *Memory) Set(name string, value []byte) {
	m.vars[name] = append([]byte(nil), value...)
}

// Delete removes name.
func (m *Memory) Delete(name string) {
	delete(m.vars, name)
}

// Read implements Store.
func (m *Memory) Read(name string) ([]byte, error) {
	v, ok := m.vars[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

// BootEntryNames implements Store.
func (m *Memory) BootEntryNames() ([]string, error) {
	var names []string
	for name := range m.vars {
		if _, ok := loadoption.ParseBootName(name); ok {
			names = append(names, name)
		}
	}
	return names, nil
}
