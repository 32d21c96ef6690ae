package vm

// ---------------------------------------------------------------------------
// Control-flow outcomes
// ---------------------------------------------------------------------------

// outcomeKind classifies how an instruction sequence finished. Branches
// and returns are threaded up through enclosing structures as ordinary
// values rather than via panic/recover, so every exit path runs the same
// cleanup code.
type outcomeKind int

const (
	outcomeNormal    outcomeKind = iota // ran to completion
	outcomeBranch                       // unwinding; level blocks remain to exit
	outcomeReturning                    // unwinding the whole function activation
)

type outcome struct {
	kind  outcomeKind
	level int // meaningful for outcomeBranch only
}

var normalOutcome = outcome{kind: outcomeNormal}

// ---------------------------------------------------------------------------
// Instruction dispatch
// ---------------------------------------------------------------------------

// execute runs each instruction of code in order against the machine's
// shared operand stack and memory and the supplied activation, until the
// sequence is exhausted or a branch or return escapes it.
func (m *Machine) execute(code []Instruction, locals *Locals) (outcome, error) {
	for i := range code {
		ins := &code[i]
		if m.trace {
			m.log.Debugf("machine %s: %-24s stack depth %d", m.id, ins, len(m.stack))
		}

		switch ins.Op {
		case OpConst:
			m.push(ins.Lit)

		case OpAdd, OpSub, OpMul:
			b, err := m.popVal(ins.Op)
			if err != nil {
				return normalOutcome, err
			}
			a, err := m.popVal(ins.Op)
			if err != nil {
				return normalOutcome, err
			}
			if !a.IsFloat() || !b.IsFloat() {
				return normalOutcome, m.trapf(ErrTypeMismatch, ins.Op, "arithmetic requires numbers, got %s and %s", a, b)
			}
			switch ins.Op {
			case OpAdd:
				m.push(FromFloat64(a.Float64() + b.Float64()))
			case OpSub:
				m.push(FromFloat64(a.Float64() - b.Float64()))
			case OpMul:
				m.push(FromFloat64(a.Float64() * b.Float64()))
			}

		case OpLE, OpGE:
			b, err := m.popVal(ins.Op)
			if err != nil {
				return normalOutcome, err
			}
			a, err := m.popVal(ins.Op)
			if err != nil {
				return normalOutcome, err
			}
			if !a.IsFloat() || !b.IsFloat() {
				return normalOutcome, m.trapf(ErrTypeMismatch, ins.Op, "comparison requires numbers, got %s and %s", a, b)
			}
			if ins.Op == OpLE {
				m.push(FromBool(a.Float64() <= b.Float64()))
			} else {
				m.push(FromBool(a.Float64() >= b.Float64()))
			}

		case OpLoad:
			addr, err := m.popVal(ins.Op)
			if err != nil {
				return normalOutcome, err
			}
			if !addr.IsFloat() {
				return normalOutcome, m.trapf(ErrTypeMismatch, ins.Op, "address must be a number, got %s", addr)
			}
			f, err := m.memory.LoadFloat64(int(addr.Float64()))
			if err != nil {
				return normalOutcome, err
			}
			m.push(FromFloat64(f))

		case OpStore:
			val, err := m.popVal(ins.Op)
			if err != nil {
				return normalOutcome, err
			}
			addr, err := m.popVal(ins.Op)
			if err != nil {
				return normalOutcome, err
			}
			if !addr.IsFloat() || !val.IsFloat() {
				return normalOutcome, m.trapf(ErrTypeMismatch, ins.Op, "store requires numbers, got %s and %s", addr, val)
			}
			if err := m.memory.StoreFloat64(int(addr.Float64()), val.Float64()); err != nil {
				return normalOutcome, err
			}

		case OpLocalGet:
			v, err := locals.Get(ins.Index)
			if err != nil {
				return normalOutcome, err
			}
			m.push(v)

		case OpLocalSet:
			v, err := m.popVal(ins.Op)
			if err != nil {
				return normalOutcome, err
			}
			if err := locals.Set(ins.Index, v); err != nil {
				return normalOutcome, err
			}

		case OpCall:
			if ins.Index < 0 || ins.Index >= len(m.functions) {
				return normalOutcome, m.trapf(ErrUnknownFunction, ins.Op, "index %d, table size %d", ins.Index, len(m.functions))
			}
			fn := m.functions[ins.Index]
			args := make([]Value, fn.NumParams())
			for j := len(args) - 1; j >= 0; j-- {
				v, err := m.popVal(ins.Op)
				if err != nil {
					return normalOutcome, err
				}
				args[j] = v
			}
			result, err := m.call(fn, args)
			if err != nil {
				return normalOutcome, err
			}
			if fn.ReturnsValue() {
				m.push(result)
			}

		case OpReturn:
			return outcome{kind: outcomeReturning}, nil

		case OpBr:
			return outcome{kind: outcomeBranch, level: ins.Index}, nil

		case OpBrIf:
			cond, err := m.popVal(ins.Op)
			if err != nil {
				return normalOutcome, err
			}
			if !cond.IsBool() {
				return normalOutcome, m.trapf(ErrTypeMismatch, ins.Op, "condition must be a boolean, got %s", cond)
			}
			if cond.Bool() {
				return outcome{kind: outcomeBranch, level: ins.Index}, nil
			}

		case OpBlock:
			out, err := m.execute(ins.Body, locals)
			if err != nil {
				return normalOutcome, err
			}
			switch out.kind {
			case outcomeBranch:
				if out.level > 0 {
					return outcome{kind: outcomeBranch, level: out.level - 1}, nil
				}
				// Level 0 targets this block: fall through to the
				// instruction after it.
			case outcomeReturning:
				return out, nil
			}

		case OpLoop:
			for {
				out, err := m.execute(ins.Body, locals)
				if err != nil {
					return normalOutcome, err
				}
				if out.kind == outcomeReturning {
					return out, nil
				}
				if out.kind == outcomeBranch {
					if out.level > 0 {
						return outcome{kind: outcomeBranch, level: out.level - 1}, nil
					}
					// Level 0 terminates the loop, not just the iteration.
					break
				}
				// Normal completion of the body re-enters the loop.
			}

		default:
			return normalOutcome, m.trap(ErrUnknownOpcode, ins.Op, "")
		}
	}
	return normalOutcome, nil
}

// ---------------------------------------------------------------------------
// Call protocol
// ---------------------------------------------------------------------------

// call invokes one function table entry with arguments already popped off
// the operand stack in declared parameter order. For a Defined function
// the call boundary absorbs exactly one Returning outcome; a Branch that
// escapes the body is a structural bytecode error. The result is
// meaningful only when the function declares one.
func (m *Machine) call(fn Function, args []Value) (Value, error) {
	switch f := fn.(type) {
	case *Defined:
		locals := NewLocals(args)
		out, err := m.execute(f.Code, locals)
		if err != nil {
			return 0, err
		}
		if out.kind == outcomeBranch {
			return 0, m.trapf(ErrUnresolvedBranch, OpCall, "branch level %d escaped the function body", out.level)
		}
		if f.Returns {
			return m.popVal(OpCall)
		}
		return 0, nil

	case *Import:
		result, err := f.Call(args)
		if err != nil {
			return 0, m.trapf(ErrImportFault, OpCall, "%v", err)
		}
		return result, nil

	default:
		return 0, m.trap(ErrUnknownFunction, OpCall, "unrecognized function table entry")
	}
}
