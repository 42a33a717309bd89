// Package mir defines the middle intermediate representation: registers,
// values, instructions, basic blocks, functions and programs that sit
// between a parsed syntax tree and the register VM in internal/mir/vm.
package mir

import "fmt"

// Register is an opaque identifier unique within one Function.
// Registers are allocated monotonically starting at 0.
type Register uint32

func (r Register) String() string {
	return fmt.Sprintf("r%d", uint32(r))
}

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindUnit Kind = iota
	KindInteger
	KindFloat
	KindString
	KindBoolean
	KindArray
	KindMap
	// KindRegister is used only during lowering, to mark an operand that
	// still needs to be resolved to a concrete register before the
	// instruction is emitted into a block.
	KindRegister
)

func (k Kind) String() string {
	switch k {
	case KindUnit:
		return "unit"
	case KindInteger:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBoolean:
		return "bool"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindRegister:
		return "register"
	default:
		return "unknown"
	}
}

// Value is a tagged variant that a Register can hold. Only the field
// matching Kind is meaningful; zero values of the others are ignored.
type Value struct {
	Kind Kind

	Int  int64
	Flt  float64
	Str  string
	Bool bool
	Arr  []Value
	Map  map[string]Value
	Reg  Register
}

func Unit() Value                   { return Value{Kind: KindUnit} }
func Int(v int64) Value             { return Value{Kind: KindInteger, Int: v} }
func Float(v float64) Value         { return Value{Kind: KindFloat, Flt: v} }
func Str(v string) Value            { return Value{Kind: KindString, Str: v} }
func Bool(v bool) Value             { return Value{Kind: KindBoolean, Bool: v} }
func Array(v []Value) Value         { return Value{Kind: KindArray, Arr: v} }
func Map(v map[string]Value) Value  { return Value{Kind: KindMap, Map: v} }
func RegisterRef(r Register) Value  { return Value{Kind: KindRegister, Reg: r} }

// Truthy implements the coercion rule a Branch terminator uses: Integer
// != 0, Boolean true, non-empty String/Array are truthy. Float and Map
// coerce analogously (non-zero / non-empty). Unit is always falsy.
func (v Value) Truthy() (bool, bool) {
	switch v.Kind {
	case KindInteger:
		return v.Int != 0, true
	case KindFloat:
		return v.Flt != 0, true
	case KindBoolean:
		return v.Bool, true
	case KindString:
		return v.Str != "", true
	case KindArray:
		return len(v.Arr) != 0, true
	case KindMap:
		return len(v.Map) != 0, true
	case KindUnit:
		return false, true
	default:
		return false, false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindUnit:
		return "()"
	case KindInteger:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Flt)
	case KindString:
		return fmt.Sprintf("%q", v.Str)
	case KindBoolean:
		return fmt.Sprintf("%t", v.Bool)
	case KindArray:
		return fmt.Sprintf("%v", v.Arr)
	case KindMap:
		return fmt.Sprintf("%v", v.Map)
	case KindRegister:
		return v.Reg.String()
	default:
		return "<invalid>"
	}
}
