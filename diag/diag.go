// Package diag dumps allocator state as pprof profiles, so frame and
// virtual-memory exhaustion can be inspected with `go tool pprof` the same
// way a heap profile would be, per SPEC_FULL.md's DOMAIN STACK.
//
// Grounded on biscuit's reliance on github.com/google/pprof/profile for
// its own profiling hooks; biscuit samples goroutine/heap profiles
// in-process, adapted here to sample FramePool/VMPool occupancy instead.
package diag

import (
	"fmt"
	"io"

	"github.com/google/pprof/profile"

	"mpos/mem"
)

// DumpFramePoolProfile writes a pprof sample profile of fp's occupancy
// to w: two samples sharing one pseudo call-stack location, one valued
// at the used frame count and labeled state=used, one valued at the free
// frame count and labeled state=free.
func DumpFramePoolProfile(fp *mem.FramePool, w io.Writer) error {
	fn := &profile.Function{ID: 1, Name: "mem.FramePool.GetFrames"}
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "frames", Unit: "count"}},
		Function:   []*profile.Function{fn},
		Location:   []*profile.Location{{ID: 1, Line: []profile.Line{{Function: fn}}}},
	}

	free := fp.FreeCount
	used := fp.Count - free
	p.Sample = append(p.Sample,
		&profile.Sample{Value: []int64{int64(used)}, Location: p.Location, Label: map[string][]string{"state": {"used"}}},
		&profile.Sample{Value: []int64{int64(free)}, Location: p.Location, Label: map[string][]string{"state": {"free"}}},
	)
	if err := p.CheckValid(); err != nil {
		return fmt.Errorf("diag: invalid frame pool profile: %w", err)
	}
	return p.Write(w)
}

// DumpVMPoolProfile writes a pprof profile with a single sample of value
// 1 to w, labeled pool=p.String() (the pool's bounds and region count).
func DumpVMPoolProfile(p *mem.VMPool, w io.Writer) error {
	fn := &profile.Function{ID: 1, Name: "mem.VMPool.Allocate"}
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "regions", Unit: "count"}},
		Function:   []*profile.Function{fn},
		Location:   []*profile.Location{{ID: 1, Line: []profile.Line{{Function: fn}}}},
	}
	prof.Sample = append(prof.Sample, &profile.Sample{
		Value:    []int64{1},
		Location: prof.Location,
		Label:    map[string][]string{"pool": {p.String()}},
	})
	if err := prof.CheckValid(); err != nil {
		return fmt.Errorf("diag: invalid vm pool profile: %w", err)
	}
	return prof.Write(w)
}
