package vm

import (
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// DefaultMemorySize is the linear memory capacity used when no
// WithMemorySize option is given.
const DefaultMemorySize = 65536

// ---------------------------------------------------------------------------
// Machine: memory, function table, operand stack
// ---------------------------------------------------------------------------

// Machine owns one linear memory, one fixed function table, and the
// top-level operand stack. A Machine is single-threaded: one Run at a
// time, no sharing across instances.
type Machine struct {
	id        string
	memory    *Memory
	functions []Function
	stack     []Value

	log   commonlog.Logger
	trace bool
}

// Option configures a Machine at construction time.
type Option func(*Machine)

// WithMemorySize sets the linear memory capacity in bytes. Non-positive
// sizes are ignored and the machine keeps DefaultMemorySize.
func WithMemorySize(size int) Option {
	return func(m *Machine) {
		if size <= 0 {
			return
		}
		m.memory = NewMemory(size)
	}
}

// WithTrace logs every executed instruction at debug level.
func WithTrace() Option {
	return func(m *Machine) {
		m.trace = true
	}
}

// NewMachine creates a machine with the given function table. The table
// is fixed for the machine's lifetime; indices are stable.
func NewMachine(functions []Function, opts ...Option) *Machine {
	m := &Machine{
		id:        uuid.New().String(),
		functions: functions,
		log:       commonlog.GetLogger("pywasm.vm"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.memory == nil {
		m.memory = NewMemory(DefaultMemorySize)
	}
	return m
}

// ID returns the machine's unique instance id.
func (m *Machine) ID() string {
	return m.id
}

// NumFunctions returns the size of the function table.
func (m *Machine) NumFunctions() int {
	return len(m.functions)
}

// ---------------------------------------------------------------------------
// Operand stack
// ---------------------------------------------------------------------------

func (m *Machine) push(v Value) {
	m.stack = append(m.stack, v)
}

// popVal removes the top of the operand stack, reporting an underflow
// trap attributed to op.
func (m *Machine) popVal(op Opcode) (Value, error) {
	if len(m.stack) == 0 {
		return 0, m.trap(ErrStackUnderflow, op, "")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

// Push places a value on the operand stack. Intended for embedder setup
// and snapshot restore; bytecode manipulates the stack through opcodes.
func (m *Machine) Push(v Value) {
	m.push(v)
}

// Pop removes and returns the top of the operand stack.
func (m *Machine) Pop() (Value, error) {
	if len(m.stack) == 0 {
		return 0, ErrStackUnderflow
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

// StackDepth returns the number of values on the operand stack.
func (m *Machine) StackDepth() int {
	return len(m.stack)
}

// StackValues returns a copy of the operand stack, bottom first.
func (m *Machine) StackValues() []Value {
	out := make([]Value, len(m.stack))
	copy(out, m.stack)
	return out
}

// ---------------------------------------------------------------------------
// External memory access
// ---------------------------------------------------------------------------

// Store writes v as an 8-byte little-endian float64 at addr. This is the
// sanctioned way for external code to seed machine state before a run.
func (m *Machine) Store(addr int, v float64) error {
	return m.memory.StoreFloat64(addr, v)
}

// Load reads the 8-byte little-endian float64 at addr.
func (m *Machine) Load(addr int) (float64, error) {
	return m.memory.LoadFloat64(addr)
}

// MemorySize returns the linear memory capacity in bytes.
func (m *Machine) MemorySize() int {
	return m.memory.Size()
}

// MemoryBytes returns a copy of the linear memory contents.
func (m *Machine) MemoryBytes() []byte {
	return m.memory.Bytes()
}

// SetMemoryBytes replaces the linear memory contents; the replacement
// must match the memory size exactly.
func (m *Machine) SetMemoryBytes(data []byte) error {
	return m.memory.SetBytes(data)
}

// ---------------------------------------------------------------------------
// Top-level execution
// ---------------------------------------------------------------------------

// Run executes a top-level instruction sequence with an empty activation,
// as if wrapped in one implicit outermost block: a branch to level 0 ends
// the run, a deeper branch or a return has nothing to unwind to and is
// fatal. Values left on the operand stack survive the run and can be
// inspected with Pop or StackValues.
func (m *Machine) Run(code []Instruction) error {
	out, err := m.execute(code, NewLocals(nil))
	if err != nil {
		return err
	}
	switch out.kind {
	case outcomeBranch:
		if out.level > 0 {
			return m.trapf(ErrUnresolvedBranch, OpBr, "branch level %d escaped the top-level sequence", out.level)
		}
	case outcomeReturning:
		return m.trap(ErrTopLevelReturn, OpReturn, "")
	}
	return nil
}
