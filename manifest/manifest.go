// Package manifest handles pywasm.toml run configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest describes one machine run: how big the memory is, which
// memory cells to seed before execution, and where the program lives.
type Manifest struct {
	Machine MachineConfig `toml:"machine"`
	Program ProgramConfig `toml:"program"`
	Seed    []SeedCell    `toml:"seed"`

	// Dir is the directory containing the pywasm.toml file (set at load time).
	Dir string `toml:"-"`
}

// MachineConfig configures the machine itself.
type MachineConfig struct {
	MemorySize int  `toml:"memory-size"`
	Trace      bool `toml:"trace"`
}

// ProgramConfig points at the serialized program to run.
type ProgramConfig struct {
	Path string `toml:"path"`
}

// SeedCell is one memory cell written before the run starts.
type SeedCell struct {
	Addr  int     `toml:"addr"`
	Value float64 `toml:"value"`
}

// Load parses a pywasm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "pywasm.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Machine.MemorySize < 0 {
		return nil, fmt.Errorf("invalid memory-size %d in %s", m.Machine.MemorySize, path)
	}

	// Defaults
	if m.Machine.MemorySize == 0 {
		m.Machine.MemorySize = 65536
	}

	return &m, nil
}

// ProgramPath returns the absolute path of the configured program file.
func (m *Manifest) ProgramPath() string {
	if m.Program.Path == "" || filepath.IsAbs(m.Program.Path) {
		return m.Program.Path
	}
	return filepath.Join(m.Dir, m.Program.Path)
}
