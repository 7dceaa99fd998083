package vm

import "mpos/defs"

// Memory simulates the byte-addressable physical RAM that page directory
// and page table frames live in. A real x86 kernel reaches this content
// through the recursive self-map (the last directory entry pointing back
// at the directory itself, letting code already running under paging
// address any PDE/PTE through fixed virtual addresses); this Go
// simulation has no MMU to recurse through; it gives PageTable the same
// frame-indexed access the recursive map exists to provide, directly.
type Memory struct {
	frames [][defs.EntriesPerPage]uint32
}

// NewMemory allocates simulated RAM wide enough to address frame numbers
// up to maxFrame (exclusive).
func NewMemory(maxFrame uint32) *Memory {
	return &Memory{frames: make([][defs.EntriesPerPage]uint32, maxFrame)}
}

// Frame returns the 1024-entry directory/table page backed by frame n.
func (m *Memory) Frame(n uint32) *[defs.EntriesPerPage]uint32 {
	return &m.frames[n]
}
