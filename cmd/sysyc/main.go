// Command sysyc compiles a SysY source file to RV64 assembly
// (spec.md §6.1): one input path, one output path, --opt to enable the
// optimization fixpoint. Exit code 0 on success, non-zero on any parse,
// semantic, or internal error.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dusk-phantom/sysyc/internal/codegen"
	"github.com/dusk-phantom/sysyc/internal/emit"
	"github.com/dusk-phantom/sysyc/internal/irgen"
	"github.com/dusk-phantom/sysyc/internal/parser"
	"github.com/dusk-phantom/sysyc/internal/transform"
)

func main() {
	opt := flag.Bool("opt", false, "enable the optimization fixpoint")
	out := flag.String("o", "out.s", "output assembly file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-opt] [-o out.s] input.sy\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(flag.Arg(0), *out, *opt); err != nil {
		fmt.Fprintf(os.Stderr, "sysyc: %v\n", err)
		os.Exit(1)
	}
}

func run(input, output string, opt bool) error {
	src, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	astProg, err := parser.Parse(string(src), filepath.Base(input))
	if err != nil {
		return err
	}
	prog, err := irgen.Generate(astProg)
	if err != nil {
		return err
	}

	if opt {
		for _, fn := range prog.Module.Functions {
			if !fn.IsLibrary {
				transform.RunPipeline(fn, prog, nil)
			}
		}
	}

	m, err := codegen.Lower(prog, filepath.Base(input))
	if err != nil {
		return err
	}
	for _, f := range m.Functions {
		if err := codegen.AllocFunction(f); err != nil {
			return err
		}
	}

	return os.WriteFile(output, []byte(emit.Emit(m)), 0o644)
}
