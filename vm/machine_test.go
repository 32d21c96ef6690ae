package vm

import (
	"errors"
	"fmt"
	"testing"
)

// popFloat pops the top of the stack and asserts it is a number.
func popFloat(t *testing.T, m *Machine) float64 {
	t.Helper()
	v, err := m.Pop()
	if err != nil {
		t.Fatalf("Pop failed: %v", err)
	}
	if !v.IsFloat() {
		t.Fatalf("top of stack = %s, want a number", v)
	}
	return v.Float64()
}

func TestConstArithmetic(t *testing.T) {
	// Compute 2 + 3 * 0.1
	m := NewMachine(nil)
	code := []Instruction{
		ConstFloat(2),
		ConstFloat(3),
		ConstFloat(0.1),
		Mul(),
		Add(),
	}
	if err := m.Run(code); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if m.StackDepth() != 1 {
		t.Fatalf("stack depth = %d, want 1", m.StackDepth())
	}
	if got := popFloat(t, m); got != 2+3*0.1 {
		t.Errorf("result = %v, want %v", got, 2+3*0.1)
	}
}

func TestArithmeticOpcodes(t *testing.T) {
	tests := []struct {
		op   Instruction
		a, b float64
		want float64
	}{
		{Add(), 1.5, 2.25, 3.75},
		{Add(), -1, 1, 0},
		{Sub(), 10, 4, 6},
		{Sub(), 0.5, 2, -1.5},
		{Mul(), 3, 0.1, 3 * 0.1},
		{Mul(), -2, 8, -16},
	}
	for _, tt := range tests {
		m := NewMachine(nil)
		if err := m.Run([]Instruction{ConstFloat(tt.a), ConstFloat(tt.b), tt.op}); err != nil {
			t.Fatalf("%s %v %v: %v", tt.op.Op, tt.a, tt.b, err)
		}
		if m.StackDepth() != 1 {
			t.Errorf("%s: stack depth = %d, want 1", tt.op.Op, m.StackDepth())
		}
		if got := popFloat(t, m); got != tt.want {
			t.Errorf("%v %s %v = %v, want %v", tt.a, tt.op.Op, tt.b, got, tt.want)
		}
	}
}

func TestComparisonOpcodes(t *testing.T) {
	tests := []struct {
		op   Instruction
		a, b float64
		want Value
	}{
		{LE(), 1, 2, True},
		{LE(), 2, 2, True},
		{LE(), 3, 2, False},
		{GE(), 1, 2, False},
		{GE(), 2, 2, True},
		{GE(), 3, 2, True},
	}
	for _, tt := range tests {
		m := NewMachine(nil)
		if err := m.Run([]Instruction{ConstFloat(tt.a), ConstFloat(tt.b), tt.op}); err != nil {
			t.Fatalf("%s %v %v: %v", tt.op.Op, tt.a, tt.b, err)
		}
		got, err := m.Pop()
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("%v %s %v = %s, want %s", tt.a, tt.op.Op, tt.b, got, tt.want)
		}
	}
}

func TestMachineStoreLoad(t *testing.T) {
	m := NewMachine(nil, WithMemorySize(256))
	if err := m.Store(40, 2.3); err != nil {
		t.Fatal(err)
	}
	got, err := m.Load(40)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2.3 {
		t.Errorf("Load = %v, want 2.3", got)
	}

	if err := m.Store(249, 1.0); !errors.Is(err, ErrMemoryOutOfRange) {
		t.Errorf("Store past end = %v, want ErrMemoryOutOfRange", err)
	}
	if _, err := m.Load(-8); !errors.Is(err, ErrMemoryOutOfRange) {
		t.Errorf("Load at negative address = %v, want ErrMemoryOutOfRange", err)
	}
}

func TestWithMemorySizeNonPositive(t *testing.T) {
	for _, size := range []int{0, -1, -65536} {
		m := NewMachine(nil, WithMemorySize(size))
		if m.MemorySize() != DefaultMemorySize {
			t.Errorf("WithMemorySize(%d): memory size = %d, want %d", size, m.MemorySize(), DefaultMemorySize)
		}
	}
}

func TestLoadStoreOpcodes(t *testing.T) {
	m := NewMachine(nil)
	code := []Instruction{
		ConstFloat(64),  // addr
		ConstFloat(9.5), // value
		Store(),
		ConstFloat(64),
		Load(),
	}
	if err := m.Run(code); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := popFloat(t, m); got != 9.5 {
		t.Errorf("loaded = %v, want 9.5", got)
	}
}

func TestCallWithLocals(t *testing.T) {
	// update_position(x, v, dt) = x + v*dt, stored to memory by the caller.
	updatePosition := &Defined{
		Params:  3,
		Returns: true,
		Code: []Instruction{
			LocalGet(0),
			LocalGet(1),
			LocalGet(2),
			Mul(),
			Add(),
		},
	}
	m := NewMachine([]Function{updatePosition})
	if err := m.Store(22, 2.0); err != nil {
		t.Fatal(err)
	}
	if err := m.Store(42, 3.0); err != nil {
		t.Fatal(err)
	}

	code := []Instruction{
		ConstFloat(22),
		ConstFloat(22),
		Load(),
		ConstFloat(42),
		Load(),
		ConstFloat(0.1),
		Call(0),
		Store(),
	}
	if err := m.Run(code); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	got, err := m.Load(22)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2+3*0.1 {
		t.Errorf("memory[22] = %v, want %v", got, 2+3*0.1)
	}
	if m.StackDepth() != 0 {
		t.Errorf("stack depth = %d, want 0", m.StackDepth())
	}
}

func TestLocalSetGet(t *testing.T) {
	fn := &Defined{
		Params:  1,
		Returns: true,
		Code: []Instruction{
			LocalGet(0),
			ConstFloat(1),
			Add(),
			LocalSet(1),
			LocalGet(1),
		},
	}
	m := NewMachine([]Function{fn})
	if err := m.Run([]Instruction{ConstFloat(41), Call(0)}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := popFloat(t, m); got != 42 {
		t.Errorf("result = %v, want 42", got)
	}
}

func TestLocalGetUnset(t *testing.T) {
	fn := &Defined{
		Params:  1,
		Returns: false,
		Code:    []Instruction{LocalGet(2)},
	}
	m := NewMachine([]Function{fn})
	err := m.Run([]Instruction{ConstFloat(1), Call(0)})
	if !errors.Is(err, ErrUndefinedLocal) {
		t.Errorf("Run = %v, want ErrUndefinedLocal", err)
	}
}

func TestCallWithoutResultLeavesStack(t *testing.T) {
	sink := &Defined{
		Params:  2,
		Returns: false,
		// Consume the arguments, produce nothing.
		Code: []Instruction{LocalGet(0), LocalSet(2)},
	}
	m := NewMachine([]Function{sink})
	code := []Instruction{
		ConstFloat(99), // survives the call untouched
		ConstFloat(1),
		ConstFloat(2),
		Call(0),
	}
	if err := m.Run(code); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if m.StackDepth() != 1 {
		t.Fatalf("stack depth = %d, want 1", m.StackDepth())
	}
	if got := popFloat(t, m); got != 99 {
		t.Errorf("remaining value = %v, want 99", got)
	}
}

func TestCallArgumentOrder(t *testing.T) {
	var got []float64
	spy := &Import{
		Params:  3,
		Returns: false,
		Call: func(args []Value) (Value, error) {
			for _, a := range args {
				got = append(got, a.Float64())
			}
			return 0, nil
		},
	}
	m := NewMachine([]Function{spy})
	if err := m.Run([]Instruction{ConstFloat(1), ConstFloat(2), ConstFloat(3), Call(0)}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := []float64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestImportInvocation(t *testing.T) {
	calls := 0
	double := &Import{
		Params:  1,
		Returns: true,
		Call: func(args []Value) (Value, error) {
			calls++
			return FromFloat64(args[0].Float64() * 2), nil
		},
	}
	m := NewMachine([]Function{double})
	if err := m.Run([]Instruction{ConstFloat(21), Call(0)}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("host callable invoked %d times, want 1", calls)
	}
	if m.StackDepth() != 1 {
		t.Fatalf("stack depth = %d, want 1", m.StackDepth())
	}
	if got := popFloat(t, m); got != 42 {
		t.Errorf("result = %v, want 42", got)
	}
}

func TestImportWithoutResult(t *testing.T) {
	called := false
	noop := &Import{
		Params:  1,
		Returns: false,
		Call: func(args []Value) (Value, error) {
			called = true
			return FromFloat64(123), nil // ignored: the import declares no result
		},
	}
	m := NewMachine([]Function{noop})
	if err := m.Run([]Instruction{ConstFloat(5), Call(0)}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !called {
		t.Error("host callable was not invoked")
	}
	if m.StackDepth() != 0 {
		t.Errorf("stack depth = %d, want 0", m.StackDepth())
	}
}

func TestImportFault(t *testing.T) {
	boom := &Import{
		Params:  0,
		Returns: false,
		Call: func(args []Value) (Value, error) {
			return 0, fmt.Errorf("device unavailable")
		},
	}
	m := NewMachine([]Function{boom})
	err := m.Run([]Instruction{Call(0)})
	if !errors.Is(err, ErrImportFault) {
		t.Errorf("Run = %v, want ErrImportFault", err)
	}
}

func TestUnknownFunctionIndex(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Run([]Instruction{Call(0)}); !errors.Is(err, ErrUnknownFunction) {
		t.Errorf("Run = %v, want ErrUnknownFunction", err)
	}
	m = NewMachine([]Function{&Defined{}})
	if err := m.Run([]Instruction{Call(-1)}); !errors.Is(err, ErrUnknownFunction) {
		t.Errorf("Run with negative index = %v, want ErrUnknownFunction", err)
	}
}

func TestStackUnderflow(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Run([]Instruction{Add()}); !errors.Is(err, ErrStackUnderflow) {
		t.Errorf("Run = %v, want ErrStackUnderflow", err)
	}
}

func TestTypeMismatch(t *testing.T) {
	m := NewMachine(nil)
	err := m.Run([]Instruction{Const(True), ConstFloat(1), Add()})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("arithmetic on a boolean = %v, want ErrTypeMismatch", err)
	}

	m = NewMachine(nil)
	err = m.Run([]Instruction{Const(False), Load()})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("boolean address = %v, want ErrTypeMismatch", err)
	}
}

func TestUnknownOpcode(t *testing.T) {
	m := NewMachine(nil)
	err := m.Run([]Instruction{{Op: Opcode(0xEE)}})
	if !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("Run = %v, want ErrUnknownOpcode", err)
	}
}

func TestRunTopLevelReturn(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Run([]Instruction{Return()}); !errors.Is(err, ErrTopLevelReturn) {
		t.Errorf("Run = %v, want ErrTopLevelReturn", err)
	}
}

func TestRunTopLevelBranch(t *testing.T) {
	// The top-level sequence behaves as an implicit outermost block, so a
	// level-0 branch simply ends the run.
	m := NewMachine(nil)
	if err := m.Run([]Instruction{ConstFloat(1), Br(0), ConstFloat(2)}); err != nil {
		t.Fatalf("Run = %v, want success", err)
	}
	if m.StackDepth() != 1 {
		t.Errorf("stack depth = %d, want 1", m.StackDepth())
	}

	m = NewMachine(nil)
	if err := m.Run([]Instruction{Br(1)}); !errors.Is(err, ErrUnresolvedBranch) {
		t.Errorf("Run = %v, want ErrUnresolvedBranch", err)
	}
}

func TestMachineIDsAreUnique(t *testing.T) {
	a := NewMachine(nil)
	b := NewMachine(nil)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("machine ids not unique: %q vs %q", a.ID(), b.ID())
	}
}
