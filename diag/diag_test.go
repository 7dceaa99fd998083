package diag

import (
	"bytes"
	"testing"

	"mpos/defs"
	"mpos/mem"
)

func TestDumpFramePoolProfile(t *testing.T) {
	reg := mem.NewRegistry()
	fp, err := mem.NewFramePool(reg, 0, 16, 1, nil)
	if err != defs.OK {
		t.Fatalf("NewFramePool: %v", err)
	}
	fp.GetFrames(4)

	var buf bytes.Buffer
	if err := DumpFramePoolProfile(fp, &buf); err != nil {
		t.Fatalf("DumpFramePoolProfile: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected non-empty profile output")
	}
}

func TestDumpVMPoolProfile(t *testing.T) {
	p := mem.NewVMPool(0, 0x10000, nil, nil)
	p.Allocate(0x100)

	var buf bytes.Buffer
	if err := DumpVMPoolProfile(p, &buf); err != nil {
		t.Fatalf("DumpVMPoolProfile: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected non-empty profile output")
	}
}
