package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/lucasmelin/python-webassembly/vm"
)

// Snapshot captures the externally visible state of a Machine: its linear
// memory and operand stack. The function table is not captured; a restore
// supplies it again, so snapshots stay portable across hosts with the
// same table layout.
type Snapshot struct {
	ID         string   `cbor:"id"`
	MemorySize int      `cbor:"memory_size"`
	Memory     []byte   `cbor:"memory"`
	Stack      []uint64 `cbor:"stack"`
}

// CaptureSnapshot copies the machine's memory and operand stack.
func CaptureSnapshot(m *vm.Machine) *Snapshot {
	values := m.StackValues()
	stack := make([]uint64, len(values))
	for i, v := range values {
		stack[i] = uint64(v)
	}
	return &Snapshot{
		ID:         m.ID(),
		MemorySize: m.MemorySize(),
		Memory:     m.MemoryBytes(),
		Stack:      stack,
	}
}

// Restore builds a fresh machine from the snapshot with the given
// function table. Additional options are applied before the snapshot's
// memory size, which always wins.
func (s *Snapshot) Restore(functions []vm.Function, opts ...vm.Option) (*vm.Machine, error) {
	opts = append(opts, vm.WithMemorySize(s.MemorySize))
	m := vm.NewMachine(functions, opts...)
	if err := m.SetMemoryBytes(s.Memory); err != nil {
		return nil, fmt.Errorf("wire: restore snapshot %s: %w", s.ID, err)
	}
	for i, bits := range s.Stack {
		v := vm.Value(bits)
		if !v.IsFloat() && !v.IsBool() {
			return nil, fmt.Errorf("wire: restore snapshot %s: stack slot %d holds unknown value bits %#016x", s.ID, i, bits)
		}
		m.Push(v)
	}
	return m, nil
}

// MarshalSnapshot serializes a snapshot to CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("wire: unmarshal snapshot: %w", err)
	}
	return &s, nil
}
