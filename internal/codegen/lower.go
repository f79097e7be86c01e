package codegen

import (
	"fmt"
	"math"

	"github.com/dusk-phantom/sysyc/internal/codegen/rv64"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// Lower translates an optimized mid-IR program into machine IR, one
// MFunction per non-library function (spec.md §4.5). The returned program
// still uses virtual registers; run AllocFunction (register allocation plus
// frame finalization) on each function before emission.
func Lower(prog *ir.Program, name string) (*MProgram, error) {
	m := &MProgram{Name: name, Floats: NewFloatPool()}
	for _, g := range prog.Module.Globals {
		mg, err := lowerGlobal(g)
		if err != nil {
			return nil, err
		}
		m.Globals = append(m.Globals, mg)
	}
	for _, fn := range prog.Module.Functions {
		if fn.IsLibrary {
			continue
		}
		mf, err := lowerFunction(fn, m)
		if err != nil {
			return nil, fmt.Errorf("codegen: function %s: %w", fn.Name, err)
		}
		m.Functions = append(m.Functions, mf)
	}
	return m, nil
}

// lowerGlobal flattens a global's constant initializer into element bit
// patterns in index order (spec.md §6.2 "arrays are emitted in index
// order").
func lowerGlobal(g *ir.GlobalVariable) (*MGlobal, error) {
	elem := g.Type
	isArray := false
	for elem.IsArray() {
		isArray = true
		elem = elem.Elem()
	}
	mg := &MGlobal{
		Name:     g.Name,
		Mutable:  g.Mutable,
		IsFloat:  elem.IsFloat(),
		ElemSize: elem.Size(),
		IsArray:  isArray,
	}
	n := 1
	if isArray {
		n = g.Type.Size() / elem.Size()
	}
	mg.Values = make([]uint32, n)
	pos := 0
	if err := flattenConst(g.Init, mg.Values, &pos); err != nil {
		return nil, fmt.Errorf("codegen: global %s: %w", g.Name, err)
	}
	return mg, nil
}

func flattenConst(c ir.Constant, out []uint32, pos *int) error {
	switch c.Kind() {
	case ir.ConstArray:
		for _, e := range c.Elems() {
			if err := flattenConst(e, out, pos); err != nil {
				return err
			}
		}
		return nil
	case ir.ConstZero:
		t := c.ZeroType()
		n := 1
		for t.IsArray() {
			n *= t.ArraySize()
			t = t.Elem()
		}
		*pos += n
		return nil
	case ir.ConstInt:
		out[*pos] = uint32(c.Int())
	case ir.ConstFloat:
		out[*pos] = math.Float32bits(c.Float())
	case ir.ConstBool:
		if c.Bool() {
			out[*pos] = 1
		}
	case ir.ConstChar:
		out[*pos] = uint32(uint8(c.Char()))
	default:
		return fmt.Errorf("unsupported initializer constant")
	}
	*pos++
	return nil
}

// phiMove is one queued insert-back entry: before the owning block's
// terminator, dst receives src (spec.md §4.5 "φ resolution").
type phiMove struct {
	dst rv64.Reg
	src ir.Operand
}

type lowerer struct {
	m  *MProgram
	fn *ir.Function
	mf *MFunction

	gen  RegGenerator
	vmap map[*ir.Instruction]rv64.Reg
	pmap map[*ir.Parameter]rv64.Reg
	amap map[*ir.Instruction]rv64.StackSlot
	bmap map[*ir.BasicBlock]*Block

	cur *Block

	insertBack map[*Block][]phiMove
}

func lowerFunction(fn *ir.Function, m *MProgram) (*MFunction, error) {
	l := &lowerer{
		m:  m,
		fn: fn,
		mf: &MFunction{Name: fn.Name},

		vmap:       make(map[*ir.Instruction]rv64.Reg),
		pmap:       make(map[*ir.Parameter]rv64.Reg),
		amap:       make(map[*ir.Instruction]rv64.StackSlot),
		bmap:       make(map[*ir.BasicBlock]*Block),
		insertBack: make(map[*Block][]phiMove),
	}

	blocks := ir.ReversePostOrderBlocks(fn.Entry())
	for _, bb := range blocks {
		// Labels are renamed per function to avoid cross-function collisions
		// (spec.md §4.5 Br, §6.2 ".L<funcname>_<bbname>").
		l.bmap[bb] = l.mf.NewBlock(fn.Name + "_" + bb.Name())
	}
	for _, bb := range blocks {
		for _, s := range bb.Successors() {
			addEdge(l.bmap[bb], l.bmap[s])
		}
	}

	l.cur = l.mf.Entry
	l.receiveParams()

	for _, bb := range blocks {
		l.cur = l.bmap[bb]
		var err error
		bb.Instructions(func(instr *ir.Instruction) bool {
			err = l.lowerInst(instr)
			return err == nil
		})
		if err != nil {
			return nil, err
		}
		if l.cur.termIdx < 0 {
			return nil, fmt.Errorf("block %s has no terminator", bb.Name())
		}
	}

	l.applyInsertBack()
	return l.mf, nil
}

// receiveParams moves the incoming argument registers into fresh virtual
// registers, loading overflow arguments from above the frame (spec.md §6.3).
func (l *lowerer) receiveParams() {
	intIdx, floatIdx, overflow := 0, 0, int64(0)
	for _, p := range l.fn.Params {
		if p.Type.IsFloat() {
			v := l.gen.NewFloat()
			l.pmap[p] = v
			if floatIdx < len(rv64.FloatArgRegs) {
				l.cur.push(&rv64.Inst{Kind: rv64.KindMv, Rd: v, Rs1: rv64.PhysReg(rv64.FloatArgRegs[floatIdx])})
				floatIdx++
			} else {
				l.cur.push(&rv64.Inst{Kind: rv64.KindLoadArg, Rd: v, Imm: overflow})
				overflow += 8
			}
			continue
		}
		v := l.gen.NewInt()
		l.pmap[p] = v
		if intIdx < len(rv64.IntArgRegs) {
			l.cur.push(&rv64.Inst{Kind: rv64.KindMv, Rd: v, Rs1: rv64.PhysReg(rv64.IntArgRegs[intIdx])})
			intIdx++
		} else {
			l.cur.push(&rv64.Inst{Kind: rv64.KindLoadArg, Rd: v, Imm: overflow})
			overflow += 8
		}
	}
}

// valueReg returns the virtual register holding instr's value, allocating
// it on first reference so forward references from φ operands resolve.
func (l *lowerer) valueReg(instr *ir.Instruction) rv64.Reg {
	if r, ok := l.vmap[instr]; ok {
		return r
	}
	var r rv64.Reg
	if instr.Type.IsFloat() {
		r = l.gen.NewFloat()
	} else {
		r = l.gen.NewInt()
	}
	l.vmap[instr] = r
	return r
}

// materializeInt loads a constant integer into a fresh register, using the
// zero register directly for zero-valued operands where a plain register
// is acceptable.
func (l *lowerer) materializeInt(v int64) rv64.Reg {
	if v == 0 {
		return rv64.PhysReg(rv64.Zero)
	}
	r := l.gen.NewInt()
	l.cur.push(&rv64.Inst{Kind: rv64.KindLi, Rd: r, Imm: v})
	return r
}

// materializeFloat loads a float literal via the pool: lla of the pooled
// label, then flw (spec.md §4.5 "float arithmetic").
func (l *lowerer) materializeFloat(f float32) rv64.Reg {
	bits := math.Float32bits(f)
	label := l.m.Floats.Label(bits)
	addr := l.gen.NewInt()
	l.cur.push(&rv64.Inst{Kind: rv64.KindLla, Rd: addr, Sym: label})
	r := l.gen.NewFloat()
	l.cur.push(&rv64.Inst{Kind: rv64.KindFlw, Rd: r, Rs1: addr})
	return r
}

// constScalarValue extracts the integer value of a non-float scalar
// constant (bools are 0/1, chars sign-extended).
func constScalarValue(c ir.Constant) int64 {
	switch c.Kind() {
	case ir.ConstInt:
		return int64(c.Int())
	case ir.ConstBool:
		if c.Bool() {
			return 1
		}
		return 0
	case ir.ConstChar:
		return int64(c.Char())
	case ir.ConstZero:
		return 0
	}
	panic("BUG: non-scalar constant in register materialization")
}

// operandReg brings any operand into a register of its natural kind.
func (l *lowerer) operandReg(op ir.Operand) rv64.Reg {
	switch op.Kind() {
	case ir.OperandConstant:
		c := op.Constant()
		if c.Kind() == ir.ConstFloat {
			return l.materializeFloat(c.Float())
		}
		return l.materializeInt(constScalarValue(c))
	case ir.OperandGlobal:
		r := l.gen.NewInt()
		l.cur.push(&rv64.Inst{Kind: rv64.KindLla, Rd: r, Sym: op.Global().Name})
		return r
	case ir.OperandParameter:
		return l.pmap[op.Parameter()]
	case ir.OperandInstruction:
		instr := op.Instruction()
		if instr.Opcode == ir.OpAlloca {
			if r, ok := l.vmap[instr]; ok {
				return r
			}
			r := l.gen.NewInt()
			l.cur.push(&rv64.Inst{Kind: rv64.KindAddrStack, Rd: r, Slot: l.amap[instr]})
			return r
		}
		return l.valueReg(instr)
	}
	panic("BUG: unreachable operand kind")
}

// applyInsertBack materializes the queued φ moves immediately before each
// predecessor's terminator sequence (spec.md §4.5 "insert-back").
func (l *lowerer) applyInsertBack() {
	for _, b := range l.mf.Blocks {
		moves := l.insertBack[b]
		if len(moves) == 0 {
			continue
		}
		var insts []*rv64.Inst
		for _, mv := range moves {
			insts = append(insts, l.phiMoveInsts(mv)...)
		}
		b.insertAt(b.termIdx, insts...)
	}
}

// phiMoveInsts renders one φ move: mv for register sources, li for integer
// immediates, a pool load for float literals.
func (l *lowerer) phiMoveInsts(mv phiMove) []*rv64.Inst {
	switch mv.src.Kind() {
	case ir.OperandConstant:
		c := mv.src.Constant()
		if c.Kind() == ir.ConstFloat {
			addr := l.gen.NewInt()
			return []*rv64.Inst{
				{Kind: rv64.KindLla, Rd: addr, Sym: l.m.Floats.Label(math.Float32bits(c.Float()))},
				{Kind: rv64.KindFlw, Rd: mv.dst, Rs1: addr},
			}
		}
		v := constScalarValue(c)
		if v == 0 {
			return []*rv64.Inst{{Kind: rv64.KindMv, Rd: mv.dst, Rs1: rv64.PhysReg(rv64.Zero)}}
		}
		return []*rv64.Inst{{Kind: rv64.KindLi, Rd: mv.dst, Imm: v}}
	case ir.OperandParameter:
		return []*rv64.Inst{{Kind: rv64.KindMv, Rd: mv.dst, Rs1: l.pmap[mv.src.Parameter()]}}
	case ir.OperandInstruction:
		return []*rv64.Inst{{Kind: rv64.KindMv, Rd: mv.dst, Rs1: l.valueReg(mv.src.Instruction())}}
	}
	panic("BUG: unsupported phi operand kind")
}
