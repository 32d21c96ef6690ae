package vm

import "fmt"

// Locals holds the indexed variable slots of one function activation.
// Slot i is seeded from call argument i; slots set past the end grow the
// activation. A Locals is created fresh at call entry and discarded when
// the call returns; nothing captures it.
type Locals struct {
	slots []Value
	set   []bool
}

// NewLocals creates an activation seeded with the given arguments.
func NewLocals(args []Value) *Locals {
	l := &Locals{
		slots: make([]Value, len(args)),
		set:   make([]bool, len(args)),
	}
	for i, arg := range args {
		l.slots[i] = arg
		l.set[i] = true
	}
	return l
}

// Get returns slot i. Reading a slot that was never set is a fault.
func (l *Locals) Get(i int) (Value, error) {
	if i < 0 || i >= len(l.slots) || !l.set[i] {
		return 0, fmt.Errorf("%w: slot %d", ErrUndefinedLocal, i)
	}
	return l.slots[i], nil
}

// Set stores v in slot i, growing the activation if needed.
// Negative slot indices are a fault.
func (l *Locals) Set(i int, v Value) error {
	if i < 0 {
		return fmt.Errorf("%w: slot %d", ErrUndefinedLocal, i)
	}
	for i >= len(l.slots) {
		l.slots = append(l.slots, 0)
		l.set = append(l.set, false)
	}
	l.slots[i] = v
	l.set[i] = true
	return nil
}

// Len returns the number of slots, set or not.
func (l *Locals) Len() int {
	return len(l.slots)
}
