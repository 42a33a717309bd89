package mir

import (
	"fmt"
	"sort"
	"strings"
)

// BasicBlock is a maximal straight-line instruction sequence. It must
// end with exactly one terminator; no instruction may follow it.
type BasicBlock struct {
	ID           BlockID
	Instructions []Instruction
}

// Append adds an instruction. It panics if the block already ends with
// a terminator, since that would violate the one-terminator invariant
// that every downstream consumer (optimizer, VM) relies on.
func (b *BasicBlock) Append(inst Instruction) {
	if n := len(b.Instructions); n > 0 && b.Instructions[n-1].Op.IsTerminator() {
		panic(fmt.Sprintf("mir: block %d: append after terminator", b.ID))
	}
	b.Instructions = append(b.Instructions, inst)
}

// Terminator returns the block's terminating instruction, if any.
func (b *BasicBlock) Terminator() (Instruction, bool) {
	if n := len(b.Instructions); n > 0 && b.Instructions[n-1].Op.IsTerminator() {
		return b.Instructions[n-1], true
	}
	return Instruction{}, false
}

// Function holds a register allocator and a block graph. Block 0 is the
// function's entry block.
type Function struct {
	Name       string
	Params     []string
	Blocks     map[BlockID]*BasicBlock
	nextReg    Register
	nextBlock  BlockID
	entryBlock BlockID
}

func NewFunction(name string, params []string) *Function {
	f := &Function{
		Name:   name,
		Params: params,
		Blocks: map[BlockID]*BasicBlock{},
	}
	f.entryBlock = f.NewBlock().ID
	return f
}

// NewBlock allocates and registers a fresh, empty BasicBlock.
func (f *Function) NewBlock() *BasicBlock {
	id := f.nextBlock
	f.nextBlock++
	b := &BasicBlock{ID: id}
	f.Blocks[id] = b
	return b
}

// NewRegister allocates a fresh register, monotonically, unique within
// this function.
func (f *Function) NewRegister() Register {
	r := f.nextReg
	f.nextReg++
	return r
}

func (f *Function) RegisterCount() int { return int(f.nextReg) }

func (f *Function) EntryBlock() BlockID { return f.entryBlock }

// Block looks up a block by id. Callers that expect it to exist should
// treat a missing block as an internal error: lowering never emits a
// Branch/Jump target that wasn't itself allocated via NewBlock.
func (f *Function) Block(id BlockID) (*BasicBlock, bool) {
	b, ok := f.Blocks[id]
	return b, ok
}

// SortedBlockIDs returns block ids in ascending order, for deterministic
// iteration (disassembly, dead-code elimination, tests).
func (f *Function) SortedBlockIDs() []BlockID {
	ids := make([]BlockID, 0, len(f.Blocks))
	for id := range f.Blocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Program maps function name to Function. "main" is the entry point.
type Program struct {
	Functions map[string]*Function
}

func NewProgram() *Program {
	return &Program{Functions: map[string]*Function{}}
}

func (p *Program) Main() (*Function, bool) {
	f, ok := p.Functions["main"]
	return f, ok
}

func (p *Program) AddFunction(f *Function) {
	p.Functions[f.Name] = f
}

// Format renders a disassembly-style dump of the program, used in tests
// and for debugging the lowerer/optimizer pipeline.
func (p *Program) Format() string {
	var sb strings.Builder
	names := make([]string, 0, len(p.Functions))
	for n := range p.Functions {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		f := p.Functions[name]
		fmt.Fprintf(&sb, "func %s(%s):\n", f.Name, strings.Join(f.Params, ", "))
		for _, id := range f.SortedBlockIDs() {
			b := f.Blocks[id]
			fmt.Fprintf(&sb, "  block%d:\n", b.ID)
			for _, inst := range b.Instructions {
				fmt.Fprintf(&sb, "    %s\n", formatInstruction(inst))
			}
		}
	}
	return sb.String()
}

func formatInstruction(inst Instruction) string {
	switch inst.Op {
	case OpLoadImmediate:
		return fmt.Sprintf("%s = load_immediate %s", inst.Dest, inst.Imm)
	case OpMove:
		return fmt.Sprintf("%s = move %s", inst.Dest, inst.Src1)
	case OpAdd, OpSub, OpMul, OpDiv, OpEqual, OpNotEqual, OpLess, OpGreater, OpAnd, OpOr:
		return fmt.Sprintf("%s = %s %s, %s", inst.Dest, inst.Op, inst.Src1, inst.Src2)
	case OpNot:
		return fmt.Sprintf("%s = not %s", inst.Dest, inst.Src1)
	case OpBranch:
		return fmt.Sprintf("branch %s, block%d, block%d", inst.Src1, inst.ThenBlock, inst.ElseBlock)
	case OpJump:
		return fmt.Sprintf("jump block%d", inst.ThenBlock)
	case OpExecuteCommand:
		args := make([]string, len(inst.Args))
		for i, a := range inst.Args {
			args[i] = a.String()
		}
		return fmt.Sprintf("%s = execute_command %q(%s)", inst.Dest, inst.Command, strings.Join(args, ", "))
	case OpReturn:
		if inst.HasValue {
			return fmt.Sprintf("return %s", inst.Src1)
		}
		return "return"
	default:
		return "<invalid instruction>"
	}
}
