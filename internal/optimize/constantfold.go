package optimize

import "github.com/nexusshell/nexusshell/internal/mir"

// ConstantFolding replaces an arithmetic, comparison, logical or Not
// instruction whose operands are both known compile-time constants
// (the result of an earlier, never-redefined LoadImmediate in the same
// block) with a single LoadImmediate of the computed result. It also
// resolves a Branch whose condition register is a known constant into
// an unconditional Jump, which is what lets DeadCodeElimination then
// drop the untaken side.
//
// This generalizes executor.rs's constant_folding, which is a no-op
// stub in the original ("In a real implementation, this would fold
// constant arithmetic operations") — here it actually does.
type ConstantFolding struct{}

func (ConstantFolding) Name() string { return "constant-folding" }

func (c ConstantFolding) Run(fn *mir.Function) (bool, error) {
	n, err := c.run(fn)
	return n > 0, err
}

func (ConstantFolding) run(fn *mir.Function) (int, error) {
	folded := 0
	for _, id := range fn.SortedBlockIDs() {
		block, _ := fn.Block(id)
		known := map[mir.Register]mir.Value{}

		for i, inst := range block.Instructions {
			switch inst.Op {
			case mir.OpLoadImmediate:
				known[inst.Dest] = inst.Imm
				continue

			case mir.OpAdd, mir.OpSub, mir.OpMul, mir.OpDiv,
				mir.OpEqual, mir.OpNotEqual, mir.OpLess, mir.OpGreater,
				mir.OpAnd, mir.OpOr:
				a, aok := known[inst.Src1]
				b, bok := known[inst.Src2]
				if !aok || !bok {
					delete(known, inst.Dest)
					continue
				}
				result, ok := foldBinary(inst.Op, a, b)
				if !ok {
					delete(known, inst.Dest)
					continue
				}
				block.Instructions[i] = mir.LoadImmediate(inst.Dest, result)
				known[inst.Dest] = result
				folded++

			case mir.OpNot:
				a, ok := known[inst.Src1]
				if !ok {
					delete(known, inst.Dest)
					continue
				}
				t, ok := a.Truthy()
				if !ok {
					delete(known, inst.Dest)
					continue
				}
				block.Instructions[i] = mir.LoadImmediate(inst.Dest, mir.Bool(!t))
				known[inst.Dest] = mir.Bool(!t)
				folded++

			case mir.OpMove:
				if v, ok := known[inst.Src1]; ok {
					known[inst.Dest] = v
				} else {
					delete(known, inst.Dest)
				}

			case mir.OpBranch:
				cond, ok := known[inst.Src1]
				if !ok {
					continue
				}
				t, ok := cond.Truthy()
				if !ok {
					continue
				}
				target := inst.ElseBlock
				if t {
					target = inst.ThenBlock
				}
				block.Instructions[i] = mir.Jump(target)
				folded++

			default:
				// ExecuteCommand, Jump, Return: ExecuteCommand's result isn't
				// knowable at compile time, and Jump/Return write no register.
				delete(known, inst.Dest)
			}
		}
	}
	return folded, nil
}

func foldBinary(op mir.Op, a, b mir.Value) (mir.Value, bool) {
	switch op {
	case mir.OpAdd, mir.OpSub, mir.OpMul, mir.OpDiv:
		return foldArith(op, a, b)
	case mir.OpEqual, mir.OpNotEqual, mir.OpLess, mir.OpGreater:
		return foldCompare(op, a, b)
	case mir.OpAnd, mir.OpOr:
		at, aok := a.Truthy()
		bt, bok := b.Truthy()
		if !aok || !bok {
			return mir.Value{}, false
		}
		if op == mir.OpAnd {
			return mir.Bool(at && bt), true
		}
		return mir.Bool(at || bt), true
	default:
		return mir.Value{}, false
	}
}

func foldArith(op mir.Op, a, b mir.Value) (mir.Value, bool) {
	if a.Kind == mir.KindString && b.Kind == mir.KindString && op == mir.OpAdd {
		return mir.Str(a.Str + b.Str), true
	}
	if a.Kind != mir.KindInteger && a.Kind != mir.KindFloat {
		return mir.Value{}, false
	}
	if b.Kind != mir.KindInteger && b.Kind != mir.KindFloat {
		return mir.Value{}, false
	}
	if a.Kind == mir.KindFloat || b.Kind == mir.KindFloat {
		x, y := toFloat(a), toFloat(b)
		switch op {
		case mir.OpAdd:
			return mir.Float(x + y), true
		case mir.OpSub:
			return mir.Float(x - y), true
		case mir.OpMul:
			return mir.Float(x * y), true
		case mir.OpDiv:
			if y == 0 {
				return mir.Value{}, false
			}
			return mir.Float(x / y), true
		}
	}
	switch op {
	case mir.OpAdd:
		return mir.Int(a.Int + b.Int), true
	case mir.OpSub:
		return mir.Int(a.Int - b.Int), true
	case mir.OpMul:
		return mir.Int(a.Int * b.Int), true
	case mir.OpDiv:
		if b.Int == 0 {
			return mir.Value{}, false
		}
		return mir.Int(a.Int / b.Int), true
	}
	return mir.Value{}, false
}

func foldCompare(op mir.Op, a, b mir.Value) (mir.Value, bool) {
	switch op {
	case mir.OpEqual:
		return mir.Bool(valuesEqual(a, b)), true
	case mir.OpNotEqual:
		return mir.Bool(!valuesEqual(a, b)), true
	case mir.OpLess:
		if !numeric(a) || !numeric(b) {
			return mir.Value{}, false
		}
		return mir.Bool(toFloat(a) < toFloat(b)), true
	case mir.OpGreater:
		if !numeric(a) || !numeric(b) {
			return mir.Value{}, false
		}
		return mir.Bool(toFloat(a) > toFloat(b)), true
	default:
		return mir.Value{}, false
	}
}

func numeric(v mir.Value) bool {
	return v.Kind == mir.KindInteger || v.Kind == mir.KindFloat
}

func toFloat(v mir.Value) float64 {
	switch v.Kind {
	case mir.KindFloat:
		return v.Flt
	case mir.KindInteger:
		return float64(v.Int)
	default:
		return 0
	}
}

func valuesEqual(a, b mir.Value) bool {
	if numeric(a) && numeric(b) {
		return toFloat(a) == toFloat(b)
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case mir.KindString:
		return a.Str == b.Str
	case mir.KindBoolean:
		return a.Bool == b.Bool
	case mir.KindUnit:
		return true
	default:
		return false
	}
}
