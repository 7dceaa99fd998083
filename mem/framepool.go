// Package mem implements the physical frame allocator: FramePool, its
// 2-bit-per-frame bitmap encoding, and the cross-pool Registry that
// services pool-agnostic release.
//
// Grounded on biscuit's Physmem_t (biscuit/src/mem/mem.go) for the shape
// of a mutex-guarded, package-level physical allocator, adapted from its
// refcounted single-frame free list to the spec's HeadOfSequence bitmap
// model, which is ground-truthed against original_source/mp3/cont_frame_pool.C.
package mem

import (
	"fmt"
	"log"
	"os"
	"sync"

	"mpos/defs"
)

// FrameState is the 2-bit encoded state of a single frame.
type FrameState uint8

const (
	FrameFree FrameState = iota
	FrameUsed
	FrameHeadOfSequence
)

func (s FrameState) String() string {
	switch s {
	case FrameFree:
		return "free"
	case FrameUsed:
		return "used"
	case FrameHeadOfSequence:
		return "head-of-sequence"
	default:
		return "invalid"
	}
}

// Frame states pack 2 bits each, canonically: 00=free, 11=used,
// 10=head-of-sequence (matching cont_frame_pool.C's bit_11/bit_10 masks).
const (
	bitFree  = 0x0
	bitUsed  = 0x3
	bitHead  = 0x2
	perByte  = 4 // frames per bitmap byte
	capShift = 2 // 2 bits per frame
)

// infoFrameCapacity is how many frames' worth of state a single info
// frame's bitmap can hold: 4 frames per byte, PageSize bytes per frame.
const infoFrameCapacity = 4 * defs.PageSize

// NeededInfoFrames returns ceil(n / (4*PageSize)): the number of frames
// required to hold the 2-bit-per-frame bitmap for n frames. Resolves the
// spec §9 bug in the original's n/8 + n%8 > 0 formula.
func NeededInfoFrames(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	return (n + infoFrameCapacity - 1) / infoFrameCapacity
}

// BadReleaseErr is panicked by Registry.Release (and FramePool.release)
// when asked to release a frame that is not the head of a sequence; spec
// §7 treats this as a programming error, not a recoverable condition.
type BadReleaseErr struct {
	Frame uint32
}

func (e *BadReleaseErr) Error() string {
	return fmt.Sprintf("release_frames: frame %d is not head-of-sequence", e.Frame)
}

// FramePool owns a contiguous range of physical frames [Base, Base+Count)
// and allocates/releases variable-length runs via an in-band bitmap.
type FramePool struct {
	mu sync.Mutex

	Base      uint32
	Count     uint32
	FreeCount uint32
	InfoFrame uint32 // 0 means the bitmap lives in frame Base

	bitmap []byte
	log    *log.Logger
}

// NewFramePool constructs a pool over [base, base+count) and registers it
// with reg. If infoFrame==0 the bitmap is considered to live in frame
// base, which is pre-marked Used (spec §4.1); otherwise the bitmap is
// considered to live in infoFrame, outside the managed range, and every
// frame in the pool starts Free. logger may be nil, in which case pool
// construction and allocation are silent.
func NewFramePool(reg *Registry, base, count, infoFrame uint32, logger *log.Logger) (*FramePool, defs.Err_t) {
	if count == 0 || NeededInfoFrames(count) > 1 {
		return nil, defs.OutOfFrames
	}
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	fp := &FramePool{
		Base:      base,
		Count:     count,
		FreeCount: count,
		InfoFrame: infoFrame,
		bitmap:    make([]byte, (count+perByte-1)/perByte),
		log:       logger,
	}
	if infoFrame == 0 {
		fp.setState(base, FrameUsed)
		fp.FreeCount--
	}
	if reg != nil {
		reg.add(fp)
	}
	fp.log.Printf("mem: frame pool [%d,%d) constructed, %d free", base, base+count, fp.FreeCount)
	return fp, defs.OK
}

func (fp *FramePool) index(frame uint32) uint32 { return frame - fp.Base }

func (fp *FramePool) getState(frame uint32) FrameState {
	idx := fp.index(frame)
	shift := capShift * (idx % perByte)
	bits := (fp.bitmap[idx/perByte] >> shift) & 0x3
	switch bits {
	case bitFree:
		return FrameFree
	case bitHead:
		return FrameHeadOfSequence
	case bitUsed:
		return FrameUsed
	default:
		return FrameFree
	}
}

func (fp *FramePool) setState(frame uint32, s FrameState) {
	idx := fp.index(frame)
	shift := capShift * (idx % perByte)
	clear := ^(byte(0x3) << shift)
	var bits byte
	switch s {
	case FrameFree:
		bits = bitFree
	case FrameUsed:
		bits = bitUsed
	case FrameHeadOfSequence:
		bits = bitHead
	}
	fp.bitmap[idx/perByte] = fp.bitmap[idx/perByte]&clear | bits<<shift
}

// contains reports whether frame falls within this pool's managed range.
func (fp *FramePool) contains(frame uint32) bool {
	return frame >= fp.Base && frame < fp.Base+fp.Count
}

// GetFrames locates the lowest-indexed run of at least n Free frames,
// first-fit, marks it HeadOfSequence+Used(n-1), and returns the first
// frame number. Returns (0, defs.OutOfFrames) if no such run exists.
func (fp *FramePool) GetFrames(n uint32) (uint32, defs.Err_t) {
	if n == 0 {
		return 0, defs.OutOfFrames
	}
	fp.mu.Lock()
	defer fp.mu.Unlock()

	runStart := fp.Base
	runLen := uint32(0)
	for f := fp.Base; f < fp.Base+fp.Count; f++ {
		if fp.getState(f) == FrameFree {
			if runLen == 0 {
				runStart = f
			}
			runLen++
			if runLen == n {
				fp.setState(runStart, FrameHeadOfSequence)
				for i := uint32(1); i < n; i++ {
					fp.setState(runStart+i, FrameUsed)
				}
				fp.FreeCount -= n
				fp.log.Printf("mem: get_frames(%d) -> %d", n, runStart)
				return runStart, defs.OK
			}
		} else {
			runLen = 0
		}
	}
	fp.log.Printf("mem: get_frames(%d): out of frames", n)
	return 0, defs.OutOfFrames
}

// MarkInaccessible performs the same HeadOfSequence+Used marking as
// GetFrames, but over a caller-chosen range rather than a search. Used
// during boot to reserve regions (spec §4.1). Panics if any of the n
// frames is not currently Free -- a boot-time programming error.
func (fp *FramePool) MarkInaccessible(base, n uint32) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	for f := base; f < base+n; f++ {
		if fp.getState(f) != FrameFree {
			panic(fmt.Sprintf("mem: mark_inaccessible: frame %d not free", f))
		}
	}
	fp.setState(base, FrameHeadOfSequence)
	for i := uint32(1); i < n; i++ {
		fp.setState(base+i, FrameUsed)
	}
	fp.FreeCount -= n
	fp.log.Printf("mem: marked [%d,%d) inaccessible", base, base+n)
}

// release is the pool-local half of release_frames: first must already be
// known (by the Registry) to fall within this pool.
func (fp *FramePool) release(first uint32) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if fp.getState(first) != FrameHeadOfSequence {
		panic(&BadReleaseErr{Frame: first})
	}
	fp.setState(first, FrameFree)
	fp.FreeCount++
	for f := first + 1; f < fp.Base+fp.Count && fp.getState(f) == FrameUsed; f++ {
		fp.setState(f, FrameFree)
		fp.FreeCount++
	}
	fp.log.Printf("mem: released sequence at %d", first)
}
