package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies a single instruction.
type Opcode byte

// Stack and arithmetic
const (
	OpConst Opcode = 0x01 // push literal value
	OpAdd   Opcode = 0x02 // pop a, b; push a + b
	OpSub   Opcode = 0x03 // pop a, b; push a - b
	OpMul   Opcode = 0x04 // pop a, b; push a * b
	OpLE    Opcode = 0x05 // pop a, b; push a <= b
	OpGE    Opcode = 0x06 // pop a, b; push a >= b
)

// Linear memory
const (
	OpLoad  Opcode = 0x10 // pop addr; push 8-byte float at addr
	OpStore Opcode = 0x11 // pop addr, val; write val at addr
)

// Locals
const (
	OpLocalGet Opcode = 0x20 // push local slot (operand index)
	OpLocalSet Opcode = 0x21 // pop into local slot (operand index)
)

// Calls and returns
const (
	OpCall   Opcode = 0x30 // invoke function table entry (operand index)
	OpReturn Opcode = 0x31 // unwind the current function activation
)

// Structured control flow
const (
	OpBr    Opcode = 0x40 // branch out of N+1 enclosing structures (operand level)
	OpBrIf  Opcode = 0x41 // pop boolean; branch if true
	OpBlock Opcode = 0x42 // execute nested body; br 0 resumes after it
	OpLoop  Opcode = 0x43 // execute nested body repeatedly; br 0 exits it
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OperandKind describes what an opcode's operand slot holds.
type OperandKind int

const (
	OperandNone  OperandKind = iota // no operand
	OperandValue                    // literal Value (const)
	OperandIndex                    // local slot, function index, or branch level
	OperandBody                     // nested instruction sequence (block/loop)
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name    string
	Operand OperandKind
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpConst:    {"const", OperandValue},
	OpAdd:      {"add", OperandNone},
	OpSub:      {"sub", OperandNone},
	OpMul:      {"mul", OperandNone},
	OpLE:       {"le", OperandNone},
	OpGE:       {"ge", OperandNone},
	OpLoad:     {"load", OperandNone},
	OpStore:    {"store", OperandNone},
	OpLocalGet: {"local.get", OperandIndex},
	OpLocalSet: {"local.set", OperandIndex},
	OpCall:     {"call", OperandIndex},
	OpReturn:   {"return", OperandNone},
	OpBr:       {"br", OperandIndex},
	OpBrIf:     {"br_if", OperandIndex},
	OpBlock:    {"block", OperandBody},
	OpLoop:     {"loop", OperandBody},
}

// Info returns the metadata for op, with ok=false for unknown opcodes.
func (op Opcode) Info() (OpcodeInfo, bool) {
	info, ok := opcodeTable[op]
	return info, ok
}

// Operand returns the operand kind for op (OperandNone if unknown).
func (op Opcode) Operand() OperandKind {
	return opcodeTable[op].Operand
}

func (op Opcode) String() string {
	if info, ok := opcodeTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("unknown(0x%02X)", byte(op))
}

// OpcodeByName resolves an opcode from its wire name.
func OpcodeByName(name string) (Opcode, bool) {
	for op, info := range opcodeTable {
		if info.Name == name {
			return op, true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Instruction is one node of a structured instruction sequence: an opcode
// plus its operand. Exactly one operand field is meaningful, selected by
// the opcode's OperandKind. Instructions are immutable once built and may
// be shared read-only across executions.
type Instruction struct {
	Op    Opcode
	Lit   Value         // OperandValue
	Index int           // OperandIndex
	Body  []Instruction // OperandBody
}

func (ins Instruction) String() string {
	switch ins.Op.Operand() {
	case OperandValue:
		return fmt.Sprintf("%s %s", ins.Op, ins.Lit)
	case OperandIndex:
		return fmt.Sprintf("%s %d", ins.Op, ins.Index)
	case OperandBody:
		parts := make([]string, len(ins.Body))
		for i, nested := range ins.Body {
			parts[i] = nested.String()
		}
		return fmt.Sprintf("%s [%s]", ins.Op, strings.Join(parts, "; "))
	default:
		return ins.Op.String()
	}
}

// ---------------------------------------------------------------------------
// Instruction constructors
// ---------------------------------------------------------------------------

// Const pushes a literal value.
func Const(v Value) Instruction { return Instruction{Op: OpConst, Lit: v} }

// ConstFloat pushes a literal number.
func ConstFloat(f float64) Instruction { return Const(FromFloat64(f)) }

// Add pops two numbers and pushes their sum.
func Add() Instruction { return Instruction{Op: OpAdd} }

// Sub pops two numbers and pushes their difference.
func Sub() Instruction { return Instruction{Op: OpSub} }

// Mul pops two numbers and pushes their product.
func Mul() Instruction { return Instruction{Op: OpMul} }

// LE pops two numbers and pushes a <= b.
func LE() Instruction { return Instruction{Op: OpLE} }

// GE pops two numbers and pushes a >= b.
func GE() Instruction { return Instruction{Op: OpGE} }

// Load pops an address and pushes the number stored there.
func Load() Instruction { return Instruction{Op: OpLoad} }

// Store pops an address and a number and writes the number at the address.
func Store() Instruction { return Instruction{Op: OpStore} }

// LocalGet pushes local slot i.
func LocalGet(i int) Instruction { return Instruction{Op: OpLocalGet, Index: i} }

// LocalSet pops into local slot i.
func LocalSet(i int) Instruction { return Instruction{Op: OpLocalSet, Index: i} }

// Call invokes function table entry f.
func Call(f int) Instruction { return Instruction{Op: OpCall, Index: f} }

// Return unwinds the current function activation.
func Return() Instruction { return Instruction{Op: OpReturn} }

// Br branches out of level+1 enclosing structures.
func Br(level int) Instruction { return Instruction{Op: OpBr, Index: level} }

// BrIf pops a boolean and branches if it is true.
func BrIf(level int) Instruction { return Instruction{Op: OpBrIf, Index: level} }

// Block groups body as a branch target: br 0 resumes after the block.
func Block(body ...Instruction) Instruction { return Instruction{Op: OpBlock, Body: body} }

// Loop repeats body until a branch exits it: br 0 terminates the loop.
func Loop(body ...Instruction) Instruction { return Instruction{Op: OpLoop, Body: body} }
