// Package fs implements the flat single-directory filesystem from spec
// §4.6: block 0 is a free-block bitmap, block 1 an inode table, and
// blocks 2..N hold one file each in a single data block.
//
// Grounded on biscuit's Ufs_t (biscuit/src/ufs/ufs.go) for the
// wraps-a-disk-with-Boot/Shutdown-lifecycle shape, and its
// Superblock_t field-packed-over-a-raw-page idiom (biscuit/src/fs/super.go)
// for the inode table's block-backed encoding; the inode/bitmap/data
// layout itself is ground-truthed against original_source/mp3/file_system.C
// and original_source/mp3/inode.C.
package fs

import (
	"fmt"
	"log"
	"os"
	"sync"

	"mpos/defs"
)

// MaxInodes is the implementation-defined inode table capacity that fits
// in a single BlockSize-byte block (spec §6): each inode record packs
// into 16 bytes (id, block_no, file_size, free, all as int32/bool-as-byte
// plus padding), so 512/16 = 32 inodes fit in one block.
const MaxInodes = defs.BlockSize / 16

const (
	bitmapBlock = 0
	inodeBlock  = 1
	firstData   = 2
)

type inode struct {
	ID       int32
	BlockNo  int32
	FileSize int32
	Free     bool
}

const inodeRecordSize = 16

func encodeInode(n *inode) []byte {
	b := make([]byte, inodeRecordSize)
	putInt32(b[0:4], n.ID)
	putInt32(b[4:8], n.BlockNo)
	putInt32(b[8:12], n.FileSize)
	if n.Free {
		b[12] = 1
	}
	return b
}

func decodeInode(b []byte) inode {
	return inode{
		ID:       getInt32(b[0:4]),
		BlockNo:  getInt32(b[4:8]),
		FileSize: getInt32(b[8:12]),
		Free:     b[12] != 0,
	}
}

func putInt32(b []byte, v int32) {
	u := uint32(v)
	b[0] = byte(u)
	b[1] = byte(u >> 8)
	b[2] = byte(u >> 16)
	b[3] = byte(u >> 24)
}

func getInt32(b []byte) int32 {
	return int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

// BlockDevice is the minimal disk surface FileSystem needs: whatever
// disk.BlockingDisk (or disk.FileDisk directly, for tests that don't need
// the scheduler-integrated path) provides.
type BlockDevice interface {
	Read(block int, buf []byte) defs.Err_t
	Write(block int, buf []byte) defs.Err_t
}

// FileSystem is a mounted instance of the on-disk layout described in
// spec §4.6, held entirely in memory for the lifetime of the mount.
type FileSystem struct {
	mu sync.Mutex

	disk      BlockDevice
	size      int // total blocks on the device, including blocks 0 and 1
	bitmap    []byte
	inodes    []inode
	usedCount int

	log *log.Logger
}

// Format writes a fresh bitmap (blocks 0 and 1 used, the rest free) and a
// zeroed (all-free) inode table to disk. size is the device's total block
// count.
func Format(d BlockDevice, size int) defs.Err_t {
	if size < firstData {
		return defs.DiskNotReady
	}
	bitmap := make([]byte, defs.BlockSize)
	for i := range bitmap {
		bitmap[i] = 'f'
	}
	for i := 0; i < size && i < len(bitmap); i++ {
		if i < firstData {
			bitmap[i] = 'u'
		}
	}
	for i := size; i < len(bitmap); i++ {
		bitmap[i] = 'u' // blocks beyond the device are never allocatable
	}
	if err := d.Write(bitmapBlock, bitmap); err != defs.OK {
		return err
	}

	inodeTbl := make([]byte, defs.BlockSize)
	for i := 0; i < MaxInodes; i++ {
		rec := encodeInode(&inode{Free: true})
		copy(inodeTbl[i*inodeRecordSize:], rec)
	}
	return d.Write(inodeBlock, inodeTbl)
}

// Mount reads the bitmap and inode table into memory and counts used
// inodes, matching spec §4.6.
func Mount(d BlockDevice, size int, logger *log.Logger) (*FileSystem, defs.Err_t) {
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	bitmap := make([]byte, defs.BlockSize)
	if err := d.Read(bitmapBlock, bitmap); err != defs.OK {
		return nil, err
	}
	inodeTbl := make([]byte, defs.BlockSize)
	if err := d.Read(inodeBlock, inodeTbl); err != defs.OK {
		return nil, err
	}

	fsys := &FileSystem{disk: d, size: size, bitmap: bitmap, log: logger}
	fsys.inodes = make([]inode, MaxInodes)
	for i := 0; i < MaxInodes; i++ {
		n := decodeInode(inodeTbl[i*inodeRecordSize:])
		fsys.inodes[i] = n
		if !n.Free {
			fsys.usedCount++
		}
	}
	fsys.log.Printf("fs: mounted, %d/%d inodes in use", fsys.usedCount, MaxInodes)
	return fsys, defs.OK
}

// Unmount flushes the bitmap and inode table to disk; callers should not
// use fsys afterward.
func (fsys *FileSystem) Unmount() defs.Err_t {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.flushLocked()
}

func (fsys *FileSystem) flushLocked() defs.Err_t {
	if err := fsys.disk.Write(bitmapBlock, fsys.bitmap); err != defs.OK {
		return err
	}
	inodeTbl := make([]byte, defs.BlockSize)
	for i, n := range fsys.inodes {
		copy(inodeTbl[i*inodeRecordSize:], encodeInode(&n))
	}
	return fsys.disk.Write(inodeBlock, inodeTbl)
}

// LookupFile returns the index of the inode with matching id, and
// defs.FileNotFound if no inode matches -- spec §7/§9: exhaustion is a
// normal miss, not a loop bug, so the scan always runs the full table.
func (fsys *FileSystem) LookupFile(id int32) (int, defs.Err_t) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.lookupLocked(id)
}

func (fsys *FileSystem) lookupLocked(id int32) (int, defs.Err_t) {
	for i := 0; i < MaxInodes; i++ {
		if !fsys.inodes[i].Free && fsys.inodes[i].ID == id {
			return i, defs.OK
		}
	}
	return -1, defs.FileNotFound
}

// CreateFile rejects an id that already exists, then finds the first free
// inode slot and first free data block, marks both used, and initializes
// the inode, per spec §4.6.
func (fsys *FileSystem) CreateFile(id int32) defs.Err_t {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	if _, err := fsys.lookupLocked(id); err == defs.OK {
		return defs.FileAlreadyExists
	}

	slot := -1
	for i := 0; i < MaxInodes; i++ {
		if fsys.inodes[i].Free {
			slot = i
			break
		}
	}
	if slot == -1 {
		return defs.InodeExhausted
	}

	block := -1
	for b := firstData; b < fsys.size; b++ {
		if fsys.bitmap[b] == 'f' {
			block = b
			break
		}
	}
	if block == -1 {
		return defs.BlocksExhausted
	}

	fsys.bitmap[block] = 'u'
	fsys.inodes[slot] = inode{ID: id, BlockNo: int32(block), FileSize: 0, Free: false}
	fsys.usedCount++
	fsys.log.Printf("fs: created file id=%d inode=%d block=%d", id, slot, block)
	return defs.OK
}

// DeleteFile locates the inode for id, frees its data block in the
// bitmap, and marks the inode free.
func (fsys *FileSystem) DeleteFile(id int32) defs.Err_t {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	slot, err := fsys.lookupLocked(id)
	if err != defs.OK {
		return err
	}
	n := fsys.inodes[slot]
	fsys.bitmap[n.BlockNo] = 'f'
	fsys.inodes[slot] = inode{Free: true}
	fsys.usedCount--
	fsys.log.Printf("fs: deleted file id=%d", id)
	return defs.OK
}

// inodeSnapshot exposes the read-only view File.Open needs without copying
// FileSystem internals into the fs package's exported surface.
func (fsys *FileSystem) inodeSnapshot(id int32) (inode, int, defs.Err_t) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	slot, err := fsys.lookupLocked(id)
	if err != defs.OK {
		return inode{}, -1, err
	}
	return fsys.inodes[slot], slot, defs.OK
}

func (fsys *FileSystem) writeInodeSize(slot int, size int32) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	fsys.inodes[slot].FileSize = size
}

// String reports basic mount statistics, grounded on Ufs_t.Statistics.
func (fsys *FileSystem) String() string {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fmt.Sprintf("fs: %d/%d inodes in use", fsys.usedCount, MaxInodes)
}
