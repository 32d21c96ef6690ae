package vm

// Function is one entry in a Machine's function table. The table is built
// once at Machine construction and never mutated; call instructions refer
// to entries by index only. Exactly two implementations exist: Defined
// (a bytecode body) and Import (a host callable).
type Function interface {
	// NumParams is the number of values popped off the operand stack by a
	// call instruction and bound to local slots 0..NumParams-1.
	NumParams() int

	// ReturnsValue reports whether a call pushes one result value.
	ReturnsValue() bool
}

// Defined is a function whose body is an instruction sequence executed
// against a fresh activation.
type Defined struct {
	Params  int
	Returns bool
	Code    []Instruction
}

func (f *Defined) NumParams() int     { return f.Params }
func (f *Defined) ReturnsValue() bool { return f.Returns }

// HostFunc is the host-side contract of an import function: it receives
// the call arguments in declared parameter order and may produce one
// result value. A non-nil error aborts the run as an import fault.
type HostFunc func(args []Value) (Value, error)

// Import is a function implemented by the host environment. It is invoked
// directly with the call arguments; it has no locals and never touches
// the operand stack or memory unless the host reaches back through the
// Machine's public accessors.
type Import struct {
	Params  int
	Returns bool
	Call    HostFunc
}

func (f *Import) NumParams() int     { return f.Params }
func (f *Import) ReturnsValue() bool { return f.Returns }
