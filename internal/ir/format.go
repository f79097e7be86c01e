package ir

import "strings"

// Format renders the whole function as readable IR text, in the spirit of
// the teacher's builder.Format (ssa/builder.go): one block header per
// block, one instruction per line.
func (f *Function) Format() string {
	var s strings.Builder
	s.WriteString(f.Signature())
	s.WriteString(" {\n")
	for _, bb := range ReachableBlocks(f.entry) {
		s.WriteString(bb.Name())
		s.WriteString(":\n")
		bb.Instructions(func(instr *Instruction) bool {
			s.WriteString("  ")
			s.WriteString(instr.Format())
			s.WriteByte('\n')
			return true
		})
	}
	s.WriteString("}\n")
	return s.String()
}

// Format renders the whole module: globals then functions.
func (m *Module) Format() string {
	var s strings.Builder
	for _, g := range m.Globals {
		s.WriteString("@")
		s.WriteString(g.Name)
		s.WriteString(" = ")
		if !g.Mutable {
			s.WriteString("const ")
		}
		s.WriteString(g.Type.String())
		s.WriteString(" ")
		s.WriteString(g.Init.String())
		s.WriteString("\n")
	}
	for _, fn := range m.Functions {
		if fn.IsLibrary {
			s.WriteString("declare ")
			s.WriteString(fn.Signature())
			s.WriteString("\n")
			continue
		}
		s.WriteString(fn.Format())
	}
	return s.String()
}
