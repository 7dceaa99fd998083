// Package disk implements the polled ATA device abstraction (SimpleDisk),
// a file-backed simulation of it (FileDisk), and the scheduler-integrated
// blocking wrapper (BlockingDisk) from spec §4.5.
//
// Grounded on biscuit's ahci_disk_t (biscuit/src/ufs/driver.go), which
// simulates a disk as a seek+read/write file under a mutex; adapted from
// its Bdev_req_t/Bytepg_t block-device-request queue down to the spec's
// synchronous read(block,buf)/write(block,buf) contract, and the
// single-owner exclusive-lock semantics of a real ATA controller modeled
// with golang.org/x/sys/unix.Flock, per SPEC_FULL.md's DOMAIN STACK.
package disk

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"mpos/defs"
	"mpos/sched"
)

// SimpleDisk is the raw polled-PIO contract spec §4.5 assumes
// BlockingDisk wraps: readiness plus synchronous transfers that assume
// readiness.
type SimpleDisk interface {
	IsReady() bool
	Read(block int, buf []byte) defs.Err_t
	Write(block int, buf []byte) defs.Err_t
}

// FileDisk simulates a disk backed by a regular file: Read/Write seek
// then transfer defs.BlockSize bytes. It always reports ready -- the
// simulation has no seek-time or queueing delay -- so a BlockingDisk
// wrapping it returns from WaitUntilReady at once and never parks a caller.
type FileDisk struct {
	mu sync.Mutex
	f  *os.File
}

// OpenFileDisk opens (creating if needed) the backing file at path and
// takes an exclusive advisory lock on it, modeling that only one
// "controller" may drive a disk image at a time.
func OpenFileDisk(path string) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: %s is locked by another controller: %w", path, err)
	}
	return &FileDisk{f: f}, nil
}

// IsReady always reports true: a file has no seek latency to simulate.
func (d *FileDisk) IsReady() bool { return true }

func (d *FileDisk) Read(block int, buf []byte) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(buf) != defs.BlockSize {
		return defs.DiskNotReady
	}
	if _, err := d.f.Seek(int64(block)*defs.BlockSize, 0); err != nil {
		return defs.DiskNotReady
	}
	if _, err := d.f.Read(buf); err != nil {
		return defs.DiskNotReady
	}
	return defs.OK
}

func (d *FileDisk) Write(block int, buf []byte) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(buf) != defs.BlockSize {
		return defs.DiskNotReady
	}
	if _, err := d.f.Seek(int64(block)*defs.BlockSize, 0); err != nil {
		return defs.DiskNotReady
	}
	if _, err := d.f.Write(buf); err != nil {
		return defs.DiskNotReady
	}
	return defs.OK
}

// Close releases the file lock and closes the backing file.
func (d *FileDisk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	unix.Flock(int(d.f.Fd()), unix.LOCK_UN)
	return d.f.Close()
}

// waiterThread adapts a blocked goroutine into sched.Thread: Dispatch
// closes a channel the blocked caller is waiting on, resuming it exactly
// where it called wait_until_ready.
type waiterThread struct {
	id int
	ch chan struct{}
}

func (w *waiterThread) ID() int   { return w.id }
func (w *waiterThread) Dispatch() { close(w.ch) }

// BlockingDisk wraps a SimpleDisk so that reads/writes park the calling
// thread on the scheduler's disk-waiters queue instead of spinning,
// per spec §4.5.
type BlockingDisk struct {
	disk SimpleDisk
	sc   *sched.Scheduler

	mu     sync.Mutex
	nextID int
}

// NewBlockingDisk wraps d and registers with sc as the disk the scheduler
// should prioritize when idle (sc.UpdateDisk).
func NewBlockingDisk(d SimpleDisk, sc *sched.Scheduler) *BlockingDisk {
	sc.UpdateDisk(d)
	return &BlockingDisk{disk: d, sc: sc}
}

// WaitUntilReady parks the caller on the disk-waiters queue and yields if
// the controller is not ready; it returns once the scheduler has
// dispatched this waiter again, at which point the controller is assumed
// ready per spec §4.5.
func (bd *BlockingDisk) WaitUntilReady() {
	if bd.disk.IsReady() {
		return
	}
	bd.mu.Lock()
	bd.nextID++
	id := bd.nextID
	bd.mu.Unlock()

	w := &waiterThread{id: id, ch: make(chan struct{})}
	bd.sc.EnqueueDiskWaiter(w)
	bd.sc.Yield()
	<-w.ch
}

// Read waits for readiness, then performs the synchronous transfer.
func (bd *BlockingDisk) Read(block int, buf []byte) defs.Err_t {
	bd.WaitUntilReady()
	return bd.disk.Read(block, buf)
}

// Write waits for readiness, then performs the synchronous transfer.
func (bd *BlockingDisk) Write(block int, buf []byte) defs.Err_t {
	bd.WaitUntilReady()
	return bd.disk.Write(block, buf)
}
