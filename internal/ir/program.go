package ir

// Program owns a Module and the arena for every IR node allocated during
// the compilation (spec.md §3.1). Its lifetime is the entire compilation;
// removal of nodes is logical (unlinking) and never reclaims storage until
// the Program itself is dropped (spec.md §3.4).
type Program struct {
	Module *Module

	instrPool  pool[Instruction]
	nextInstID uint32
}

// NewProgram creates an empty Program ready for construction by irgen.
func NewProgram() *Program {
	return &Program{
		Module:    newModule(),
		instrPool: newPool[Instruction](),
	}
}

// NewFunction allocates and registers a function in the program's module.
func (p *Program) NewFunction(name string, ret ValueType, params []*Parameter, isLibrary bool) *Function {
	f := &Function{Name: name, ReturnType: ret, Params: params, IsLibrary: isLibrary, prog: p}
	p.Module.Functions = append(p.Module.Functions, f)
	p.Module.functionsByName[name] = f
	return f
}
