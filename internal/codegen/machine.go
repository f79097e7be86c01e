// Package codegen lowers the optimized mid-IR into RV64 machine IR:
// virtual-register three-address instructions grouped into labeled blocks,
// with φ nodes resolved by insert-back moves (spec.md §4.5). Register
// allocation (internal/regalloc) then rewrites the virtual registers in
// place, and the frame finalizer resolves stack pseudo-instructions.
package codegen

import (
	"fmt"
	"math"

	"github.com/dusk-phantom/sysyc/internal/codegen/rv64"
)

// MProgram is the whole lowered module: flat-initialized globals, the float
// literal pool, and one MFunction per non-library mid-IR function
// (spec.md §3.3).
type MProgram struct {
	Name      string
	Globals   []*MGlobal
	Floats    *FloatPool
	Functions []*MFunction
}

// MGlobal is a global scalar or flat-initialized array. Values holds the
// initializer as element bit patterns in index order; the emitter collapses
// zero runs into .zero fillers (spec.md §6.2). ElemSize is 4 for int/float
// elements and 1 for the byte-packed putf format strings.
type MGlobal struct {
	Name     string
	Mutable  bool
	IsFloat  bool
	ElemSize int
	Values   []uint32
	// Scalar globals emit as a single directive without array sizing.
	IsArray bool
}

// FloatPool interns float literals by bit pattern; each entry becomes a
// named read-only .float global (spec.md §3.3 Fmm, §6.2 `_fc_<hex>`).
type FloatPool struct {
	names map[uint32]string
	order []uint32
}

func NewFloatPool() *FloatPool {
	return &FloatPool{names: make(map[uint32]string)}
}

// Label returns the pool label for the given bit pattern, interning it on
// first use.
func (p *FloatPool) Label(bits uint32) string {
	if name, ok := p.names[bits]; ok {
		return name
	}
	name := fmt.Sprintf("_fc_%08x", bits)
	p.names[bits] = name
	p.order = append(p.order, bits)
	return name
}

// Entries returns (bits, label) pairs in interning order.
func (p *FloatPool) Entries() ([]uint32, []string) {
	labels := make([]string, len(p.order))
	for i, bits := range p.order {
		labels[i] = p.names[bits]
	}
	return p.order, labels
}

// Block is one machine basic block: a label and an ordered instruction
// list. termIdx marks where the lowered terminator sequence begins, which
// is where φ insert-back moves are spliced (spec.md §4.5).
type Block struct {
	Label   string
	Insts   []*rv64.Inst
	termIdx int

	preds []*Block
	succs []*Block
	entry bool
}

// Preds / Succs expose the machine CFG for liveness analysis.
func (b *Block) Preds() []*Block { return b.preds }
func (b *Block) Succs() []*Block { return b.succs }
func (b *Block) Entry() bool     { return b.entry }

func (b *Block) push(i *rv64.Inst) { b.Insts = append(b.Insts, i) }

// insertAt splices insts into the list at idx.
func (b *Block) insertAt(idx int, insts ...*rv64.Inst) {
	b.Insts = append(b.Insts[:idx], append(insts, b.Insts[idx:]...)...)
}

// MFunction is one lowered function (spec.md §3.3): entry plus other
// blocks in layout order, a frame allocator, and the bookkeeping register
// allocation and frame finalization fill in.
type MFunction struct {
	Name   string
	Entry  *Block
	Blocks []*Block

	Frame rv64.StackAllocator

	// OutgoingArgBytes is the size of the sp-relative area call overflow
	// arguments are stored to, the bottom of the final frame.
	OutgoingArgBytes int64

	// spillSlots maps a spilled virtual register id to its frame slot,
	// allocated lazily by the regalloc callbacks.
	spillSlots map[rv64.RegID]rv64.StackSlot

	// SavedRegs is the callee-saved registers this function must preserve,
	// computed after allocation.
	SavedRegs []rv64.RealReg

	// FrameBytes is the final rounded frame size, set by finalizeFrame.
	FrameBytes int64
}

// NewBlock appends a fresh labeled block.
func (f *MFunction) NewBlock(label string) *Block {
	b := &Block{Label: label, termIdx: -1}
	if f.Entry == nil {
		f.Entry = b
		b.entry = true
	}
	f.Blocks = append(f.Blocks, b)
	return b
}

func addEdge(from, to *Block) {
	from.succs = append(from.succs, to)
	to.preds = append(to.preds, from)
}

// RegGenerator hands out virtual registers, integer and float distinguished
// (spec.md §4.5).
type RegGenerator struct {
	next rv64.RegID
}

func (g *RegGenerator) NewInt() rv64.Reg {
	r := rv64.VirtualReg(g.next, rv64.RegKindInt)
	g.next++
	return r
}

func (g *RegGenerator) NewFloat() rv64.Reg {
	r := rv64.VirtualReg(g.next, rv64.RegKindFloat)
	g.next++
	return r
}

// sizedLoadKind returns the plain-register load opcode for a value of the
// given byte size and register kind.
func sizedLoadKind(size int64, k rv64.RegKind) rv64.Kind {
	if k == rv64.RegKindFloat {
		return rv64.KindFlw
	}
	switch size {
	case 1:
		return rv64.KindLb
	case 4:
		return rv64.KindLw
	default:
		return rv64.KindLd
	}
}

func sizedStoreKind(size int64, k rv64.RegKind) rv64.Kind {
	if k == rv64.RegKindFloat {
		return rv64.KindFsw
	}
	switch size {
	case 1:
		return rv64.KindSb
	case 4:
		return rv64.KindSw
	default:
		return rv64.KindSd
	}
}

// maxFrameBytes guards frame arithmetic against overflow from absurd array
// sizes; anything beyond this is an internal error upstream.
const maxFrameBytes = math.MaxInt32
