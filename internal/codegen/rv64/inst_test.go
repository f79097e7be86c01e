package rv64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegPackingRoundTrip(t *testing.T) {
	v := VirtualReg(42, RegKindInt)
	require.True(t, v.IsVirtual())
	assert.Equal(t, RegID(42), v.ID())
	assert.Equal(t, RegKindInt, v.Kind())

	assigned := v.Assign(A3)
	require.True(t, assigned.IsPhys())
	assert.Equal(t, A3, assigned.Real())
	assert.Equal(t, RegID(42), assigned.ID())
	assert.Equal(t, RegKindInt, assigned.Kind())
}

func TestPhysRegKindFollowsFile(t *testing.T) {
	assert.Equal(t, RegKindInt, PhysReg(A0).Kind())
	assert.Equal(t, RegKindFloat, PhysReg(FA0).Kind())
	assert.Equal(t, "fa0", PhysReg(FA0).String())
	assert.Equal(t, "zero", PhysReg(Zero).String())
}

func TestFitsImm12(t *testing.T) {
	assert.True(t, FitsImm12(0))
	assert.True(t, FitsImm12(2047))
	assert.True(t, FitsImm12(-2048))
	assert.False(t, FitsImm12(2048))
	assert.False(t, FitsImm12(-2049))
}

func TestInstDefsUses(t *testing.T) {
	add := &Inst{Kind: KindAddw, Rd: VirtualReg(0, RegKindInt), Rs1: VirtualReg(1, RegKindInt), Rs2: VirtualReg(2, RegKindInt)}
	require.Len(t, add.Defs(), 1)
	require.Len(t, add.Uses(), 2)
	assert.Equal(t, RegID(0), add.Defs()[0].ID())

	st := &Inst{Kind: KindSw, Rs2: VirtualReg(3, RegKindInt), Rs1: VirtualReg(4, RegKindInt)}
	assert.Empty(t, st.Defs())
	require.Len(t, st.Uses(), 2)

	call := &Inst{Kind: KindCall, Sym: "getint", CallDefs: []Reg{PhysReg(A0)}}
	require.Len(t, call.Defs(), 1)
	assert.True(t, call.IsCall())
}

func TestDefsReturnRewritableReferences(t *testing.T) {
	in := &Inst{Kind: KindMv, Rd: VirtualReg(7, RegKindInt), Rs1: PhysReg(A0)}
	*in.Defs()[0] = in.Rd.Assign(T4)
	assert.True(t, in.Rd.IsPhys())
	assert.Equal(t, T4, in.Rd.Real())
}

func TestInstString(t *testing.T) {
	cases := []struct {
		in   *Inst
		want string
	}{
		{&Inst{Kind: KindAddw, Rd: PhysReg(A0), Rs1: PhysReg(A1), Rs2: PhysReg(A2)}, "addw a0, a1, a2"},
		{&Inst{Kind: KindAddiw, Rd: PhysReg(A0), Rs1: PhysReg(A0), Imm: -5}, "addiw a0, a0, -5"},
		{&Inst{Kind: KindLi, Rd: PhysReg(A0), Imm: 3}, "li a0, 3"},
		{&Inst{Kind: KindLw, Rd: PhysReg(A0), Rs1: PhysReg(SP), Imm: 16}, "lw a0, 16(sp)"},
		{&Inst{Kind: KindSd, Rs2: PhysReg(A1), Rs1: PhysReg(SP), Imm: 8}, "sd a1, 8(sp)"},
		{&Inst{Kind: KindBeq, Rs1: PhysReg(A0), Rs2: PhysReg(Zero), Sym: "main_alt1"}, "beq a0, zero, .Lmain_alt1"},
		{&Inst{Kind: KindJ, Sym: "main_final1"}, "j .Lmain_final1"},
		{&Inst{Kind: KindMv, Rd: PhysReg(FA0), Rs1: PhysReg(F3)}, "fmv.s fa0, ft3"},
		{&Inst{Kind: KindFcvtWS, Rd: PhysReg(A0), Rs1: PhysReg(FA0)}, "fcvt.w.s a0, fa0, rtz"},
		{&Inst{Kind: KindCall, Sym: "putint"}, "call putint"},
		{&Inst{Kind: KindRet}, "ret"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.in.String())
	}
}

func TestStackAllocatorGranularity(t *testing.T) {
	var a StackAllocator
	s1 := a.Alloc(4)
	s2 := a.Alloc(36)
	assert.Equal(t, int64(0), s1.Offset)
	assert.Equal(t, int64(8), s1.Size)
	assert.Equal(t, int64(8), s2.Offset)
	assert.Equal(t, int64(40), s2.Size)
	assert.Equal(t, int64(48), a.Size())
}
