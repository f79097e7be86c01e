// Package irgen lowers a parsed AST (internal/ast) into the mid-IR
// (internal/ir), implementing spec.md §4.2. It is organized the way the
// original implementation split this stage: a ProgramKit for global scope
// and a FunctionKit for per-function generation, each owning an
// environment mapping names to Values.
package irgen

import (
	"fmt"

	"github.com/dusk-phantom/sysyc/internal/ir"
)

// Value is the result of evaluating an expression: either a plain operand
// (ReadOnly) or a pointer that may be assigned through (ReadWrite).
// Assignment requires ReadWrite; load converts any Value to an operand of
// a target type (spec.md §4.2 "Value vs. pointer"). Array initializers are
// lowered directly against their declared shape (see storeArrayTree in
// decl.go) rather than through an intermediate aggregate Value.
type Value struct {
	kind valueKind
	op   ir.Operand // ReadOnly
	ptr  ir.Operand // ReadWrite: pointer to the value
}

type valueKind byte

const (
	valueReadOnly valueKind = iota
	valueReadWrite
)

func ReadOnly(op ir.Operand) Value   { return Value{kind: valueReadOnly, op: op} }
func ReadWrite(ptr ir.Operand) Value { return Value{kind: valueReadWrite, ptr: ptr} }

func (v Value) IsReadWrite() bool { return v.kind == valueReadWrite }

// Type returns the ValueType of v. For ReadWrite it is the pointee type of
// the carried pointer, not the pointer type itself.
func (v Value) Type() ir.ValueType {
	switch v.kind {
	case valueReadOnly:
		return v.op.Type()
	case valueReadWrite:
		return v.ptr.Type().Elem()
	}
	panic("BUG: unreachable value kind")
}

// loadUncast returns the value as an operand without any type conversion,
// plus the ValueType it was loaded as. Loading an array value decays
// `[n x T]*` to `T*` via a two-zero-index GEP, so arrays are passed by
// reference (spec.md §4.2 "Pointers from arrays").
func (v Value) loadUncast(b *ir.Builder) (ir.Operand, ir.ValueType, error) {
	switch v.kind {
	case valueReadOnly:
		return v.op, v.op.Type(), nil
	case valueReadWrite:
		elemType := v.ptr.Type().Elem()
		if elemType.IsArray() {
			gep := b.GEP(v.ptr, elemType.Elem(), []ir.Operand{
				ir.OperandFromConstant(ir.ConstI(0)),
				ir.OperandFromConstant(ir.ConstI(0)),
			})
			return ir.OperandFromInstruction(gep), ir.PointerTo(elemType.Elem()), nil
		}
		load := b.Load(v.ptr)
		return ir.OperandFromInstruction(load), elemType, nil
	}
	panic("BUG: unreachable value kind")
}

// Load converts v to an operand of the target type, inserting the implicit
// conversions spec.md §4.2 names: int<->float, bool->int via zero-extend,
// int->bool and float->bool via comparison with zero (NaN compares true
// under the unordered != predicate, matching IEEE-754 "unordered" semantics
// for `if (f)` on a NaN float).
func (v Value) Load(target ir.ValueType, b *ir.Builder) (ir.Operand, error) {
	op, loaded, err := v.loadUncast(b)
	if err != nil {
		return ir.Operand{}, err
	}
	if loaded.Equal(target) {
		return op, nil
	}
	switch {
	case loaded.IsInt() && target.IsFloat():
		return ir.OperandFromInstruction(b.ItoFp(op)), nil
	case loaded.IsFloat() && target.IsInt():
		return ir.OperandFromInstruction(b.FpToI(op)), nil
	case loaded.IsBool() && target.IsInt():
		return ir.OperandFromInstruction(b.ZextTo(ir.Int, op)), nil
	case loaded.IsBool() && target.IsFloat():
		zext := b.ZextTo(ir.Int, op)
		return ir.OperandFromInstruction(b.ItoFp(ir.OperandFromInstruction(zext))), nil
	case loaded.IsInt() && target.IsBool():
		cmp := b.ICmp(ir.ICmpNE, op, ir.OperandFromConstant(ir.ConstI(0)))
		return ir.OperandFromInstruction(cmp), nil
	case loaded.IsFloat() && target.IsBool():
		cmp := b.FCmp(ir.FCmpUNE, op, ir.OperandFromConstant(ir.ConstF(0)))
		return ir.OperandFromInstruction(cmp), nil
	default:
		return ir.Operand{}, fmt.Errorf("irgen: cannot convert %s to %s", loaded, target)
	}
}

// GetElementPtr advances v by one index level, per spec.md §4.2 "Pointers
// from arrays". When v's pointee is itself a Pointer (a decayed array
// parameter), it is loaded first and the single index strides directly
// over its pointee. Otherwise v's pointee is a true Array and the index
// is addressed the standard two-operand way (`[0, idx]`) so the result
// is a pointer to the i-th element, matching how each nested IndexExpr
// issues its own single-level getelementptr call rather than collecting
// a multi-dimensional index list up front.
func (v Value) GetElementPtr(b *ir.Builder, idx ir.Operand) (Value, error) {
	if !v.IsReadWrite() {
		return Value{}, fmt.Errorf("irgen: cannot index a non-addressable value")
	}
	pointee := v.ptr.Type().Elem()
	if pointee.IsPointer() {
		loaded := b.Load(v.ptr)
		gep := b.GEP(ir.OperandFromInstruction(loaded), pointee.Elem(), []ir.Operand{idx})
		return ReadWrite(ir.OperandFromInstruction(gep)), nil
	}
	zero := ir.OperandFromConstant(ir.ConstI(0))
	gep := b.GEP(v.ptr, pointee.Elem(), []ir.Operand{zero, idx})
	return ReadWrite(ir.OperandFromInstruction(gep)), nil
}

// Assign stores val into v, converting to v's type first.
func (v Value) Assign(b *ir.Builder, val Value) error {
	if !v.IsReadWrite() {
		return fmt.Errorf("irgen: cannot assign to a non-addressable value")
	}
	target := v.Type()
	op, err := val.Load(target, b)
	if err != nil {
		return err
	}
	b.Store(op, v.ptr)
	return nil
}
