package vm

import (
	"errors"
	"fmt"
)

// Fault taxonomy. Every runtime failure wraps one of these sentinels, so
// embedders can classify traps with errors.Is. None of them are
// recoverable mid-run: each indicates a defect in the supplied instruction
// stream or function table, and the current Run or call is aborted.
var (
	ErrUnknownOpcode    = errors.New("vm: unknown opcode")
	ErrStackUnderflow   = errors.New("vm: stack underflow")
	ErrTypeMismatch     = errors.New("vm: type mismatch")
	ErrUndefinedLocal   = errors.New("vm: undefined local")
	ErrMemoryOutOfRange = errors.New("vm: memory access out of range")
	ErrUnresolvedBranch = errors.New("vm: unresolved branch")
	ErrUnknownFunction  = errors.New("vm: unknown function index")
	ErrTopLevelReturn   = errors.New("vm: return outside a function activation")
	ErrImportFault      = errors.New("vm: import function failed")
)

// trap builds a fault wrapping the given sentinel, annotated with the
// faulting opcode and the operand stack depth at the time of the fault.
func (m *Machine) trap(kind error, op Opcode, detail string) error {
	if detail == "" {
		return fmt.Errorf("%w (op %s, stack depth %d)", kind, op, len(m.stack))
	}
	return fmt.Errorf("%w: %s (op %s, stack depth %d)", kind, detail, op, len(m.stack))
}

func (m *Machine) trapf(kind error, op Opcode, format string, args ...interface{}) error {
	return m.trap(kind, op, fmt.Sprintf(format, args...))
}
