// Package emit formats lowered machine IR as RV64 assembly text
// (spec.md §6.2). Function bodies are rendered concurrently — after
// register allocation each MFunction holds only a shared immutable view of
// the globals, so emission of independent functions is embarrassingly
// parallel (spec.md §5) — and joined in module order so output stays
// deterministic.
package emit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/dusk-phantom/sysyc/internal/codegen"
)

// Version appears in the trailing .ident directive.
const Version = "0.1.0"

// Emit renders the whole program.
func Emit(m *codegen.MProgram) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\t.file\t%q\n", m.Name)
	b.WriteString("\t.option\tpic\n")
	b.WriteString("\t.attribute arch, \"rv64i2p1_m2p0_a2p1_f2p2_d2p2_c2p0\"\n")
	b.WriteString("\t.attribute unaligned_access, 0\n")
	b.WriteString("\t.attribute stack_align, 16\n")

	if len(m.Globals) > 0 {
		b.WriteString("\t.data\n")
		for _, g := range m.Globals {
			emitGlobal(&b, g)
		}
	}

	bits, labels := m.Floats.Entries()
	if len(bits) > 0 {
		b.WriteString("\t.section\t.rodata\n")
		for i, pattern := range bits {
			fmt.Fprintf(&b, "\t.align\t2\n%s:\n\t.float\t%s\n", labels[i], floatText(pattern))
		}
	}

	bodies := make([]string, len(m.Functions))
	var wg sync.WaitGroup
	for i, f := range m.Functions {
		wg.Add(1)
		go func(i int, f *codegen.MFunction) {
			defer wg.Done()
			bodies[i] = emitFunction(f)
		}(i, f)
	}
	wg.Wait()
	for _, body := range bodies {
		b.WriteString(body)
	}

	fmt.Fprintf(&b, "\t.ident\t\"compiler: (visionfive2) %s\"\n", Version)
	b.WriteString("\t.section\t.note.GNU-stack,\"\",@progbits\n")
	return b.String()
}

// emitGlobal writes one object: directives, then the initializer in index
// order with zero runs collapsed into .zero fillers (spec.md §6.2).
func emitGlobal(b *strings.Builder, g *codegen.MGlobal) {
	total := len(g.Values) * g.ElemSize
	fmt.Fprintf(b, "\t.globl\t%s\n", g.Name)
	b.WriteString("\t.align\t3\n")
	fmt.Fprintf(b, "\t.type\t%s, @object\n", g.Name)
	fmt.Fprintf(b, "\t.size\t%s, %d\n", g.Name, total)
	fmt.Fprintf(b, "%s:\n", g.Name)

	directive := ".word"
	switch {
	case g.ElemSize == 1:
		directive = ".byte"
	case g.IsFloat:
		directive = ".float"
	}

	zeroRun := 0
	flush := func() {
		if zeroRun > 0 {
			fmt.Fprintf(b, "\t.zero\t%d\n", zeroRun*g.ElemSize)
			zeroRun = 0
		}
	}
	for _, v := range g.Values {
		if v == 0 {
			zeroRun++
			continue
		}
		flush()
		if g.IsFloat {
			fmt.Fprintf(b, "\t%s\t%s\n", directive, floatText(v))
		} else {
			fmt.Fprintf(b, "\t%s\t%d\n", directive, int32(v))
		}
	}
	flush()
}

// floatText renders a float bit pattern so the assembler round-trips it to
// the identical single-precision value.
func floatText(bits uint32) string {
	f := math.Float32frombits(bits)
	if math.IsInf(float64(f), 0) || f != f {
		// Inf/NaN have no portable literal; fall back to the raw pattern.
		return fmt.Sprintf("0x%08x", bits)
	}
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func emitFunction(f *codegen.MFunction) string {
	var b strings.Builder
	b.WriteString("\t.text\n")
	b.WriteString("\t.align\t3\n")
	fmt.Fprintf(&b, "\t.globl\t%s\n", f.Name)
	fmt.Fprintf(&b, "\t.type\t%s, @function\n", f.Name)
	fmt.Fprintf(&b, "%s:\n", f.Name)
	for _, blk := range f.Blocks {
		fmt.Fprintf(&b, ".L%s:\n", blk.Label)
		for _, in := range blk.Insts {
			b.WriteString("\t")
			b.WriteString(in.String())
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "\t.size\t%s, .-%s\n", f.Name, f.Name)
	return b.String()
}
