// Package wire defines the serialized forms of programs and machine
// snapshots. The vm core only consumes in-memory instruction trees; this
// package is the embedding layer that moves them on and off disk.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/lucasmelin/python-webassembly/vm"
)

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ProgramVersion is the current program envelope version.
const ProgramVersion = 1

// Program is the on-disk envelope for an instruction sequence.
type Program struct {
	Version int     `cbor:"version"`
	Code    []Instr `cbor:"code"`
}

// Instr is the serialized form of one instruction. Exactly one operand
// field is populated, matching the opcode's operand kind; const literals
// use Num or Bool depending on the value's tag.
type Instr struct {
	Op    string   `cbor:"op"`
	Num   *float64 `cbor:"num,omitempty"`
	Bool  *bool    `cbor:"bool,omitempty"`
	Index *int     `cbor:"index,omitempty"`
	Body  []Instr  `cbor:"body,omitempty"`
}

// FromInstructions converts an instruction tree to its wire form.
func FromInstructions(code []vm.Instruction) []Instr {
	out := make([]Instr, len(code))
	for i, ins := range code {
		w := Instr{Op: ins.Op.String()}
		switch ins.Op.Operand() {
		case vm.OperandValue:
			if ins.Lit.IsBool() {
				b := ins.Lit.Bool()
				w.Bool = &b
			} else {
				f := ins.Lit.Float64()
				w.Num = &f
			}
		case vm.OperandIndex:
			idx := ins.Index
			w.Index = &idx
		case vm.OperandBody:
			w.Body = FromInstructions(ins.Body)
		}
		out[i] = w
	}
	return out
}

// ToInstructions converts wire instructions back to an executable tree.
func ToInstructions(code []Instr) ([]vm.Instruction, error) {
	out := make([]vm.Instruction, len(code))
	for i, w := range code {
		op, ok := vm.OpcodeByName(w.Op)
		if !ok {
			return nil, fmt.Errorf("wire: unknown opcode %q", w.Op)
		}
		ins := vm.Instruction{Op: op}
		switch op.Operand() {
		case vm.OperandValue:
			switch {
			case w.Bool != nil:
				ins.Lit = vm.FromBool(*w.Bool)
			case w.Num != nil:
				ins.Lit = vm.FromFloat64(*w.Num)
			default:
				return nil, fmt.Errorf("wire: %s instruction without a literal", w.Op)
			}
		case vm.OperandIndex:
			if w.Index == nil {
				return nil, fmt.Errorf("wire: %s instruction without an index", w.Op)
			}
			ins.Index = *w.Index
		case vm.OperandBody:
			body, err := ToInstructions(w.Body)
			if err != nil {
				return nil, err
			}
			ins.Body = body
		}
		out[i] = ins
	}
	return out, nil
}

// MarshalProgram serializes an instruction sequence to CBOR bytes.
func MarshalProgram(code []vm.Instruction) ([]byte, error) {
	p := Program{Version: ProgramVersion, Code: FromInstructions(code)}
	return cborEncMode.Marshal(&p)
}

// UnmarshalProgram deserializes an instruction sequence from CBOR bytes.
func UnmarshalProgram(data []byte) ([]vm.Instruction, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("wire: unmarshal program: %w", err)
	}
	if p.Version != ProgramVersion {
		return nil, fmt.Errorf("wire: unsupported program version %d", p.Version)
	}
	return ToInstructions(p.Code)
}
