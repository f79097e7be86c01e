package rv64

// StackSlot is one region of a function's frame: an offset relative to the
// start of the locals area plus a size (spec.md §3.3). The final sp-relative
// offset is resolved after register allocation, once the outgoing-argument
// area and the saved-register block are known.
type StackSlot struct {
	Offset int64
	Size   int64
}

// Valid reports whether the slot was actually allocated.
func (s StackSlot) Valid() bool { return s.Size != 0 }

// StackAllocator hands out per-function stack slots. Allocation is always
// 8-byte granular, so scalar slots never break the 16-byte stack alignment
// the ABI demands (spec.md §4.5 Alloca).
type StackAllocator struct {
	size int64
}

// Alloc reserves size bytes and returns the slot. Requests are rounded up
// to 8 bytes.
func (a *StackAllocator) Alloc(size int64) StackSlot {
	if size < 8 {
		size = 8
	}
	size = (size + 7) &^ 7
	s := StackSlot{Offset: a.size, Size: size}
	a.size += size
	return s
}

// Size returns the total bytes allocated so far.
func (a *StackAllocator) Size() int64 { return a.size }
