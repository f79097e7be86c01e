package ir

import (
	"fmt"
	"strings"
)

// Constant is the sum type `{Int, Float, Bool, SignedChar, Array, Zero}`
// described in spec.md §3.1.
type Constant struct {
	kind  constKind
	i     int32
	f     float32
	b     bool
	ch    int8
	elems []Constant
	zty   ValueType
}

type constKind byte

const (
	ConstInt constKind = iota
	ConstFloat
	ConstBool
	ConstChar
	ConstArray
	ConstZero
)

func ConstI(v int32) Constant         { return Constant{kind: ConstInt, i: v} }
func ConstF(v float32) Constant       { return Constant{kind: ConstFloat, f: v} }
func ConstB(v bool) Constant          { return Constant{kind: ConstBool, b: v} }
func ConstC(v int8) Constant          { return Constant{kind: ConstChar, ch: v} }
func ConstArr(es []Constant) Constant { return Constant{kind: ConstArray, elems: es} }
func ConstZ(t ValueType) Constant     { return Constant{kind: ConstZero, zty: t} }

func (c Constant) Kind() constKind     { return c.kind }
func (c Constant) Int() int32          { return c.i }
func (c Constant) Float() float32      { return c.f }
func (c Constant) Bool() bool          { return c.b }
func (c Constant) Char() int8          { return c.ch }
func (c Constant) Elems() []Constant   { return c.elems }
func (c Constant) ZeroType() ValueType { return c.zty }

// Type returns the ValueType this constant carries. Array/Zero constants
// must know their shape at construction time since the IR never infers it.
func (c Constant) Type(elemHint ValueType, size int) ValueType {
	switch c.kind {
	case ConstInt:
		return Int
	case ConstFloat:
		return Float
	case ConstBool:
		return Bool
	case ConstChar:
		return SignedChar
	case ConstZero:
		return c.zty
	case ConstArray:
		return ArrayOf(elemHint, size)
	}
	panic("BUG: unreachable constant kind")
}

// IsZeroValue reports whether this constant is the all-zero bit pattern,
// used by the load-elimination pass's memset-dominance rule (spec.md §4.4.3).
func (c Constant) IsZeroValue() bool {
	switch c.kind {
	case ConstInt:
		return c.i == 0
	case ConstFloat:
		return c.f == 0
	case ConstBool:
		return !c.b
	case ConstChar:
		return c.ch == 0
	case ConstZero:
		return true
	case ConstArray:
		for _, e := range c.elems {
			if !e.IsZeroValue() {
				return false
			}
		}
		return true
	}
	return false
}

func (c Constant) String() string {
	switch c.kind {
	case ConstInt:
		return fmt.Sprintf("%d", c.i)
	case ConstFloat:
		return fmt.Sprintf("%g", c.f)
	case ConstBool:
		return fmt.Sprintf("%t", c.b)
	case ConstChar:
		return fmt.Sprintf("%d", c.ch)
	case ConstZero:
		return "zeroinitializer"
	case ConstArray:
		parts := make([]string, len(c.elems))
		for i, e := range c.elems {
			parts[i] = e.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "?"
}

// Operand is the sum type `{Constant, Global, Parameter, Instruction}`
// from spec.md §3.1. It is what every Instruction's operand list holds.
type Operand struct {
	kind   operandKind
	cst    Constant
	global *GlobalVariable
	param  *Parameter
	instr  *Instruction
}

type operandKind byte

const (
	OperandConstant operandKind = iota
	OperandGlobal
	OperandParameter
	OperandInstruction
)

func OperandFromConstant(c Constant) Operand { return Operand{kind: OperandConstant, cst: c} }
func OperandFromGlobal(g *GlobalVariable) Operand {
	return Operand{kind: OperandGlobal, global: g}
}
func OperandFromParameter(p *Parameter) Operand { return Operand{kind: OperandParameter, param: p} }
func OperandFromInstruction(i *Instruction) Operand {
	return Operand{kind: OperandInstruction, instr: i}
}

func (o Operand) Kind() operandKind         { return o.kind }
func (o Operand) IsConstant() bool          { return o.kind == OperandConstant }
func (o Operand) IsInstruction() bool       { return o.kind == OperandInstruction }
func (o Operand) Constant() Constant        { return o.cst }
func (o Operand) Global() *GlobalVariable   { return o.global }
func (o Operand) Parameter() *Parameter     { return o.param }
func (o Operand) Instruction() *Instruction { return o.instr }

// Type returns the ValueType of whatever this operand refers to.
func (o Operand) Type() ValueType {
	switch o.kind {
	case OperandConstant:
		return o.cst.Type(Int, len(o.cst.elems))
	case OperandGlobal:
		return PointerTo(o.global.Type)
	case OperandParameter:
		return o.param.Type
	case OperandInstruction:
		return o.instr.Type
	}
	panic("BUG: unreachable operand kind")
}

func (o Operand) String() string {
	switch o.kind {
	case OperandConstant:
		return o.cst.String()
	case OperandGlobal:
		return "@" + o.global.Name
	case OperandParameter:
		return "%" + o.param.Name
	case OperandInstruction:
		return o.instr.Name()
	}
	return "?"
}

// Parameter is a function formal parameter; it participates in operand
// lists as OperandParameter and has no def-use chain of its own since it
// is never replaced in place.
type Parameter struct {
	Name  string
	Type  ValueType
	Index int
}
