package mem

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"mpos/defs"
)

// vmRegion is one outstanding allocation: [Start, Start+Size).
type vmRegion struct {
	Start, Size uint32
}

// VMPool tracks the regions of virtual address space a process has
// legitimately allocated, independent of which physical frames eventually
// back them. PageTable.HandleFault consults IsLegitimate to tell a real
// page fault (grow an allocated but not-yet-backed region) from an
// out-of-bounds access.
//
// Grounded on biscuit's Vm_t region bookkeeping, generalized to the
// spec's VMPool.Allocate/Release/IsLegitimate surface and
// ground-truthed against original_source/mp4/vm_pool.C.
type VMPool struct {
	mu sync.Mutex

	Base, Size uint32
	frames     *FramePool // stored by NewVMPool; no VMPool method allocates from it

	regions []vmRegion
	log     *log.Logger
}

// NewVMPool creates a pool managing [base, base+size). frames may be nil;
// region bookkeeping is held in a Go slice, not in frames from the pool.
func NewVMPool(base, size uint32, frames *FramePool, logger *log.Logger) *VMPool {
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	return &VMPool{Base: base, Size: size, frames: frames, log: logger}
}

// Allocate reserves size bytes of address space and returns the start
// address of the new region. Spec §9 resolves the original's
// off-by-`size` bug, where Allocate returned start+size instead of
// start; here the start address is returned directly.
func (p *VMPool) Allocate(size uint32) (uint32, defs.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sorted := append([]vmRegion(nil), p.regions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	cursor := p.Base
	for _, r := range sorted {
		if r.Start > cursor && r.Start-cursor >= size {
			break
		}
		if end := r.Start + r.Size; end > cursor {
			cursor = end
		}
	}
	if cursor+size > p.Base+p.Size {
		p.log.Printf("vm: vmpool allocate(%d): exhausted", size)
		return 0, defs.VMPoolExhausted
	}

	p.regions = append(p.regions, vmRegion{Start: cursor, Size: size})
	p.log.Printf("vm: vmpool allocate(%d) -> %#x", size, cursor)
	return cursor, defs.OK
}

// Release removes the region starting at start. Returns
// defs.UnmappedRelease if start is not a region's start address -- the
// spec's equivalent of FramePool's head-of-sequence check, but reported
// rather than panicked since a stray virtual address is caller-supplied
// user input, not necessarily a programming error. Release only drops the
// region record; it does not unmap or free any pages that back the region.
func (p *VMPool) Release(start uint32) defs.Err_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, r := range p.regions {
		if r.Start == start {
			p.regions = append(p.regions[:i], p.regions[i+1:]...)
			p.log.Printf("vm: vmpool release(%#x)", start)
			return defs.OK
		}
	}
	return defs.UnmappedRelease
}

// IsLegitimate reports whether addr falls within some currently allocated
// region. HandleFault treats false as a protection fault.
func (p *VMPool) IsLegitimate(addr uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.regions {
		if addr >= r.Start && addr < r.Start+r.Size {
			return true
		}
	}
	return false
}

func (p *VMPool) String() string {
	return fmt.Sprintf("VMPool[%#x,%#x) regions=%d", p.Base, p.Base+p.Size, len(p.regions))
}
