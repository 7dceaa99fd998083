package mem

import "testing"

import "mpos/defs"

func TestVMPoolAllocateReturnsStart(t *testing.T) {
	p := NewVMPool(0x1000, 0x10000, nil, nil)
	start, err := p.Allocate(0x100)
	if err != defs.OK {
		t.Fatalf("Allocate: %v", err)
	}
	if start != 0x1000 {
		t.Fatalf("Allocate returned %#x, want start address %#x (spec §9 fixes the start+size bug)", start, 0x1000)
	}
}

func TestVMPoolDisjointAllocations(t *testing.T) {
	p := NewVMPool(0, 0x10000, nil, nil)
	a, _ := p.Allocate(0x1000)
	b, _ := p.Allocate(0x1000)
	if a == b || b < a+0x1000 {
		t.Fatalf("overlapping allocations: a=%#x b=%#x", a, b)
	}
}

func TestVMPoolExhaustion(t *testing.T) {
	p := NewVMPool(0, 0x1000, nil, nil)
	if _, err := p.Allocate(0x800); err != defs.OK {
		t.Fatalf("first allocate: %v", err)
	}
	if _, err := p.Allocate(0x900); err != defs.VMPoolExhausted {
		t.Fatalf("second allocate = %v, want VMPoolExhausted", err)
	}
}

func TestVMPoolReleaseAndReuse(t *testing.T) {
	p := NewVMPool(0, 0x2000, nil, nil)
	a, _ := p.Allocate(0x1000)
	if err := p.Release(a); err != defs.OK {
		t.Fatalf("Release: %v", err)
	}
	if p.IsLegitimate(a) {
		t.Fatalf("address still legitimate after release")
	}
	if err := p.Release(a); err != defs.UnmappedRelease {
		t.Fatalf("double release = %v, want UnmappedRelease", err)
	}
	b, err := p.Allocate(0x1000)
	if err != defs.OK || b != a {
		t.Fatalf("allocate after release = %#x, %v; want reuse of %#x", b, err, a)
	}
}

func TestVMPoolIsLegitimate(t *testing.T) {
	p := NewVMPool(0x10000, 0x1000, nil, nil)
	start, _ := p.Allocate(0x100)
	if !p.IsLegitimate(start) || !p.IsLegitimate(start+0x50) {
		t.Fatalf("addresses within allocated region should be legitimate")
	}
	if p.IsLegitimate(start + 0x200) {
		t.Fatalf("address beyond allocated region should not be legitimate")
	}
}
