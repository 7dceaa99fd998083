package fs

import (
	"testing"

	"mpos/defs"
)

// memDisk is an in-memory BlockDevice for filesystem tests.
type memDisk struct {
	blocks [][defs.BlockSize]byte
}

func newMemDisk(size int) *memDisk {
	return &memDisk{blocks: make([][defs.BlockSize]byte, size)}
}

func (d *memDisk) Read(block int, buf []byte) defs.Err_t {
	if block < 0 || block >= len(d.blocks) {
		return defs.DiskNotReady
	}
	copy(buf, d.blocks[block][:])
	return defs.OK
}

func (d *memDisk) Write(block int, buf []byte) defs.Err_t {
	if block < 0 || block >= len(d.blocks) {
		return defs.DiskNotReady
	}
	copy(d.blocks[block][:], buf)
	return defs.OK
}

func mustMount(t *testing.T, d *memDisk, size int) *FileSystem {
	t.Helper()
	if err := Format(d, size); err != defs.OK {
		t.Fatalf("Format: %v", err)
	}
	fsys, err := Mount(d, size, nil)
	if err != defs.OK {
		t.Fatalf("Mount: %v", err)
	}
	return fsys
}

// Scenario 6 from spec §8: create, write, close, reopen, read back.
func TestFileLifecycleRoundTrip(t *testing.T) {
	d := newMemDisk(16)
	fsys := mustMount(t, d, 16)

	if err := fsys.CreateFile(42); err != defs.OK {
		t.Fatalf("CreateFile: %v", err)
	}

	f, err := Open(fsys, 42)
	if err != defs.OK {
		t.Fatalf("Open: %v", err)
	}
	payload := []byte("hello, teaching os")
	n := f.Write(payload)
	if n != len(payload) {
		t.Fatalf("Write = %d, want %d", n, len(payload))
	}
	if err := f.Close(); err != defs.OK {
		t.Fatalf("Close: %v", err)
	}

	f2, err := Open(fsys, 42)
	if err != defs.OK {
		t.Fatalf("reopen: %v", err)
	}
	if f2.EoF() {
		// cursor starts at 0, file_size > 0, so EoF should be false.
		t.Fatalf("EoF() true immediately after open, want false")
	}
	buf := make([]byte, len(payload))
	got := f2.Read(buf)
	if got != len(payload) || string(buf) != string(payload) {
		t.Fatalf("Read = %q (%d bytes), want %q", buf[:got], got, payload)
	}
	if !f2.EoF() {
		t.Fatalf("EoF() false after reading entire file")
	}
	f2.Reset()
	if f2.EoF() {
		t.Fatalf("EoF() true after Reset on a non-empty file")
	}
	f2.Close()
}

func TestCreateFileDuplicateRejected(t *testing.T) {
	d := newMemDisk(8)
	fsys := mustMount(t, d, 8)
	if err := fsys.CreateFile(1); err != defs.OK {
		t.Fatalf("first create: %v", err)
	}
	if err := fsys.CreateFile(1); err != defs.FileAlreadyExists {
		t.Fatalf("duplicate create = %v, want FileAlreadyExists", err)
	}
}

func TestCreateFileBlocksExhausted(t *testing.T) {
	d := newMemDisk(firstData + 2)
	fsys := mustMount(t, d, firstData+2)
	if err := fsys.CreateFile(1); err != defs.OK {
		t.Fatalf("create 1: %v", err)
	}
	if err := fsys.CreateFile(2); err != defs.OK {
		t.Fatalf("create 2: %v", err)
	}
	if err := fsys.CreateFile(3); err != defs.BlocksExhausted {
		t.Fatalf("create 3 = %v, want BlocksExhausted", err)
	}
}

func TestLookupFileNotFound(t *testing.T) {
	d := newMemDisk(8)
	fsys := mustMount(t, d, 8)
	if _, err := fsys.LookupFile(99); err != defs.FileNotFound {
		t.Fatalf("LookupFile(missing) = %v, want FileNotFound", err)
	}
}

func TestDeleteFileFreesBlockForReuse(t *testing.T) {
	d := newMemDisk(firstData + 1)
	fsys := mustMount(t, d, firstData+1)
	if err := fsys.CreateFile(1); err != defs.OK {
		t.Fatalf("create: %v", err)
	}
	if err := fsys.DeleteFile(1); err != defs.OK {
		t.Fatalf("delete: %v", err)
	}
	if err := fsys.CreateFile(2); err != defs.OK {
		t.Fatalf("create after delete should reuse freed block: %v", err)
	}
}

func TestWriteNeverExceedsBlockSize(t *testing.T) {
	d := newMemDisk(firstData + 1)
	fsys := mustMount(t, d, firstData+1)
	fsys.CreateFile(1)
	f, _ := Open(fsys, 1)
	big := make([]byte, defs.BlockSize+100)
	n := f.Write(big)
	if n != defs.BlockSize {
		t.Fatalf("Write clamped to %d, want %d", n, defs.BlockSize)
	}
	f.Close()
}

func TestMountPersistsAcrossRemount(t *testing.T) {
	d := newMemDisk(16)
	fsys := mustMount(t, d, 16)
	fsys.CreateFile(7)
	f, _ := Open(fsys, 7)
	f.Write([]byte("persisted"))
	f.Close()
	if err := fsys.Unmount(); err != defs.OK {
		t.Fatalf("Unmount: %v", err)
	}

	fsys2, err := Mount(d, 16, nil)
	if err != defs.OK {
		t.Fatalf("remount: %v", err)
	}
	if _, err := fsys2.LookupFile(7); err != defs.OK {
		t.Fatalf("file lost across remount: %v", err)
	}
	f2, _ := Open(fsys2, 7)
	buf := make([]byte, len("persisted"))
	f2.Read(buf)
	if string(buf) != "persisted" {
		t.Fatalf("content lost across remount: %q", buf)
	}
}
