package mem

import (
	"sync"

	"mpos/defs"
)

// Registry is the process-wide list of FramePools, consulted by Release
// to find the pool owning a frame without the caller needing to know
// which pool it came from (spec §4.1, §9: "replace [the static global
// linked list] with an explicit registry object passed into
// constructors"). Where the original made release_frames a static method
// reaching into a package-global linked list, here it is an ordinary
// method on an explicit value the caller constructs and threads through.
type Registry struct {
	mu    sync.Mutex
	pools []*FramePool
}

// NewRegistry returns an empty pool registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) add(fp *FramePool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools = append(r.pools, fp)
}

// Release finds the unique pool covering first and releases the sequence
// headed there. Returns defs.UnmappedRelease if no registered pool covers
// the frame, and panics with *BadReleaseErr if the frame is not a
// sequence head (spec §7: a programming error, not recoverable).
func (r *Registry) Release(first uint32) defs.Err_t {
	r.mu.Lock()
	var owner *FramePool
	for _, p := range r.pools {
		if p.contains(first) {
			owner = p
			break
		}
	}
	r.mu.Unlock()

	if owner == nil {
		return defs.UnmappedRelease
	}
	owner.release(first)
	return defs.OK
}
