package mem

import (
	"testing"

	"golang.org/x/sync/errgroup"

	"mpos/defs"
)

func mustPool(t *testing.T, reg *Registry, base, count, info uint32) *FramePool {
	t.Helper()
	fp, err := NewFramePool(reg, base, count, info, nil)
	if err != defs.OK {
		t.Fatalf("NewFramePool: %v", err)
	}
	return fp
}

// Scenario 1 from spec §8: contiguous allocation after fragmentation.
func TestFramePoolFragmentationScenario(t *testing.T) {
	reg := NewRegistry()
	fp := mustPool(t, reg, 0, 16, 1) // info frame external: all 16 start Free

	f, err := fp.GetFrames(3)
	if err != defs.OK || f != 0 {
		t.Fatalf("get_frames(3) = %d, %v; want 0, OK", f, err)
	}
	if fp.getState(0) != FrameHeadOfSequence || fp.getState(1) != FrameUsed || fp.getState(2) != FrameUsed {
		t.Fatalf("unexpected states after get_frames(3)")
	}

	f, err = fp.GetFrames(2)
	if err != defs.OK || f != 3 {
		t.Fatalf("get_frames(2) = %d, %v; want 3, OK", f, err)
	}

	if err := reg.Release(0); err != defs.OK {
		t.Fatalf("release(0): %v", err)
	}
	if fp.getState(0) != FrameFree || fp.getState(1) != FrameFree || fp.getState(2) != FrameFree {
		t.Fatalf("frames 0..2 not freed")
	}

	f, err = fp.GetFrames(4)
	if err != defs.OK || f != 0 {
		t.Fatalf("get_frames(4) = %d, %v; want 0, OK", f, err)
	}
}

// Scenario 2: release of a non-head frame is a BadRelease.
func TestFramePoolBadRelease(t *testing.T) {
	reg := NewRegistry()
	fp := mustPool(t, reg, 0, 16, 1)
	if _, err := fp.GetFrames(3); err != defs.OK {
		t.Fatalf("setup get_frames: %v", err)
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic releasing non-head frame")
		}
		if _, ok := r.(*BadReleaseErr); !ok {
			t.Fatalf("expected *BadReleaseErr, got %T", r)
		}
	}()
	reg.Release(1)
}

func TestFramePoolRoundTrip(t *testing.T) {
	reg := NewRegistry()
	fp := mustPool(t, reg, 0, 64, 1)
	before := fp.FreeCount

	f, err := fp.GetFrames(5)
	if err != defs.OK {
		t.Fatalf("get_frames: %v", err)
	}
	if err := reg.Release(f); err != defs.OK {
		t.Fatalf("release: %v", err)
	}
	if fp.FreeCount != before {
		t.Fatalf("free count %d != %d after round trip", fp.FreeCount, before)
	}
	for i := uint32(0); i < fp.Count; i++ {
		if fp.getState(fp.Base+i) != FrameFree {
			t.Fatalf("frame %d not free after round trip", i)
		}
	}
}

func TestFramePoolDisjointAllocations(t *testing.T) {
	reg := NewRegistry()
	fp := mustPool(t, reg, 0, 32, 1)
	a, err := fp.GetFrames(4)
	if err != defs.OK {
		t.Fatalf("first get_frames: %v", err)
	}
	b, err := fp.GetFrames(4)
	if err != defs.OK {
		t.Fatalf("second get_frames: %v", err)
	}
	if a == b {
		t.Fatalf("expected disjoint ranges, both started at %d", a)
	}
	if b < a+4 {
		t.Fatalf("ranges overlap: a=%d b=%d", a, b)
	}
}

func TestBitmapRoundTrip(t *testing.T) {
	reg := NewRegistry()
	fp := mustPool(t, reg, 0, 16, 1)
	states := []FrameState{FrameFree, FrameUsed, FrameHeadOfSequence}
	for _, s := range states {
		fp.setState(5, s)
		if got := fp.getState(5); got != s {
			t.Fatalf("set_state(5,%v); get_state=%v", s, got)
		}
		if fp.getState(6) != FrameFree {
			t.Fatalf("unrelated index 6 disturbed by setting index 5")
		}
	}
}

func TestNeededInfoFrames(t *testing.T) {
	cases := []struct {
		n    uint32
		want uint32
	}{
		{0, 0},
		{1, 1},
		{infoFrameCapacity, 1},
		{infoFrameCapacity + 1, 2},
	}
	for _, c := range cases {
		if got := NeededInfoFrames(c.n); got != c.want {
			t.Errorf("NeededInfoFrames(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

// Concurrency stress: many goroutines hammering the shared registry with
// interleaved get/release must never corrupt free-count bookkeeping or
// hand out overlapping ranges. Grounded on the DOMAIN STACK's rationale
// for golang.org/x/sync/errgroup (SPEC_FULL.md).
func TestRegistryConcurrentStress(t *testing.T) {
	reg := NewRegistry()
	fp := mustPool(t, reg, 0, 4096, 1)

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			for j := 0; j < 200; j++ {
				f, err := fp.GetFrames(2)
				if err != defs.OK {
					continue
				}
				if rerr := reg.Release(f); rerr != defs.OK {
					return rerr
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent stress: %v", err)
	}
	if fp.FreeCount != fp.Count {
		t.Fatalf("free count %d after stress, want %d", fp.FreeCount, fp.Count)
	}
}
