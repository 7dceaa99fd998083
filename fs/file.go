package fs

import (
	"mpos/defs"
)

// File is an open handle on one file: its data block is read into an
// in-memory cache on open and flushed back to disk on close, with a
// cursor tracking the next Read/Write position, per spec §4.6.
type File struct {
	fsys     *FileSystem
	id       int32
	slot     int
	blockNo  int32
	fileSize int32
	cursor   int32

	cache [defs.BlockSize]byte
	dirty bool
}

// Open finds the inode for id, caches its data block, and starts the
// cursor at 0.
func Open(fsys *FileSystem, id int32) (*File, defs.Err_t) {
	n, slot, err := fsys.inodeSnapshot(id)
	if err != defs.OK {
		return nil, err
	}
	f := &File{fsys: fsys, id: id, slot: slot, blockNo: n.BlockNo, fileSize: n.FileSize}
	if err := fsys.disk.Read(int(n.BlockNo), f.cache[:]); err != defs.OK {
		return nil, err
	}
	return f, defs.OK
}

// Close, if the handle was written to, flushes the cached block and the
// inode table back to disk; an unmodified handle writes nothing.
func (f *File) Close() defs.Err_t {
	if f.dirty {
		if err := f.fsys.disk.Write(int(f.blockNo), f.cache[:]); err != defs.OK {
			return err
		}
		f.fsys.writeInodeSize(f.slot, f.fileSize)
		if err := f.fsys.flushInodes(); err != defs.OK {
			return err
		}
	}
	return defs.OK
}

// Read copies min(len(buf), file_size-cursor) bytes from the cache
// starting at the cursor, advances the cursor, and returns the count.
func (f *File) Read(buf []byte) int {
	remaining := f.fileSize - f.cursor
	if remaining <= 0 {
		return 0
	}
	n := int32(len(buf))
	if n > remaining {
		n = remaining
	}
	copy(buf[:n], f.cache[f.cursor:f.cursor+n])
	f.cursor += n
	return int(n)
}

// Write copies len(buf) bytes into the cache at the cursor, extends
// file_size but never past BlockSize, and advances the cursor. Returns
// the number of bytes actually written (truncated at BlockSize).
func (f *File) Write(buf []byte) int {
	n := int32(len(buf))
	if f.cursor+n > defs.BlockSize {
		n = defs.BlockSize - f.cursor
	}
	if n <= 0 {
		return 0
	}
	copy(f.cache[f.cursor:f.cursor+n], buf[:n])
	f.cursor += n
	if f.cursor > f.fileSize {
		f.fileSize = f.cursor
	}
	f.dirty = true
	return int(n)
}

// Reset rewinds the cursor to the start of the file.
func (f *File) Reset() { f.cursor = 0 }

// EoF reports whether the cursor has reached file_size.
func (f *File) EoF() bool { return f.cursor >= f.fileSize }

// flushInodes is the inode-table-only flush File.Close needs without
// re-flushing the bitmap on every close; FileSystem.Unmount still does a
// full flush (bitmap+inodes) at mount teardown.
func (fsys *FileSystem) flushInodes() defs.Err_t {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	inodeTbl := make([]byte, defs.BlockSize)
	for i, n := range fsys.inodes {
		copy(inodeTbl[i*inodeRecordSize:], encodeInode(&n))
	}
	return fsys.disk.Write(inodeBlock, inodeTbl)
}
