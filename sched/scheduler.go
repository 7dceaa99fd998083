// Package sched implements the single-CPU cooperative scheduler: a FIFO
// ready queue plus a FIFO disk-waiters queue that takes dispatch priority
// whenever the disk is idle, per spec §4.4/§5.
//
// Grounded on biscuit's interrupt-disable-around-mutation idiom seen
// throughout its scheduling path (biscuit has no single Scheduler_t file;
// the shape here follows the mutex-guarded, logger-carrying struct
// convention used by mem.FramePool/mem.Registry in this module), and
// ground-truthed against original_source/mp3/thread.C and
// original_source/mp3/scheduler.C for the ready-queue/disk-priority
// contract itself.
package sched

import (
	"container/list"
	"log"
	"os"
	"sync"
)

// Thread is the minimum a schedulable unit must provide: a way to be
// dispatched into (Dispatch) and an identity for logging/dedup.
type Thread interface {
	Dispatch()
	ID() int
}

// DiskReady is satisfied by the disk this scheduler is wired to, letting
// yield's priority rule check readiness without an import cycle back to
// package disk.
type DiskReady interface {
	IsReady() bool
}

// Scheduler is the process-wide dispatcher. Holding mu stands in for
// running with interrupts disabled: every ready-queue and disk-queue
// mutation happens with mu held, and releasing it plays the part of
// restoring the prior interrupt state.
type Scheduler struct {
	mu sync.Mutex

	ready       *list.List // of Thread
	diskWaiters *list.List // of Thread
	disk        DiskReady
	current     Thread

	log *log.Logger
}

// NewScheduler returns an empty scheduler. logger may be nil.
func NewScheduler(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	return &Scheduler{
		ready:       list.New(),
		diskWaiters: list.New(),
		log:         logger,
	}
}

// UpdateDisk wires the disk that Yield consults for its priority rule.
func (s *Scheduler) UpdateDisk(d DiskReady) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disk = d
}

// Add enqueues t at the tail of the ready queue. Alias for Resume per
// spec §4.4.
func (s *Scheduler) Add(t Thread) { s.Resume(t) }

// Resume enqueues t at the tail of the ready queue, interrupts disabled
// across the mutation.
func (s *Scheduler) Resume(t Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready.PushBack(t)
	s.log.Printf("sched: resume thread %d", t.ID())
}

// enqueueDiskWaiter is called by BlockingDisk.WaitUntilReady (via the
// disk package holding a *Scheduler) to park the calling thread.
func (s *Scheduler) enqueueDiskWaiter(t Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diskWaiters.PushBack(t)
}

// EnqueueDiskWaiter is the exported form disk.BlockingDisk calls.
func (s *Scheduler) EnqueueDiskWaiter(t Thread) { s.enqueueDiskWaiter(t) }

// Yield dispatches the next runnable thread. If the disk-waiters queue is
// non-empty and the wired disk reports ready, the disk queue's head takes
// priority over the ordinary FIFO head (spec §4.4); otherwise the ready
// queue's head is dispatched. If both queues are empty, Yield returns to
// the caller, which continues running (there is nothing else to run).
func (s *Scheduler) Yield() {
	s.mu.Lock()
	var next Thread
	if s.diskWaiters.Len() > 0 && s.disk != nil && s.disk.IsReady() {
		e := s.diskWaiters.Front()
		next = e.Value.(Thread)
		s.diskWaiters.Remove(e)
	} else if s.ready.Len() > 0 {
		e := s.ready.Front()
		next = e.Value.(Thread)
		s.ready.Remove(e)
	}
	s.current = next
	s.mu.Unlock()

	if next == nil {
		return
	}
	s.log.Printf("sched: dispatch thread %d", next.ID())
	next.Dispatch()
}

// Terminate removes t from scheduling. If t is the current thread it
// calls Yield -- the dispatcher is expected never to return to a
// terminated context. Otherwise it unlinks t from the ready queue,
// advancing the cursor before unlinking so the walk never dereferences a
// freed node (spec §9 fix for the original's use-after-unlink bug).
func (s *Scheduler) Terminate(t Thread) {
	s.mu.Lock()
	if s.current == t {
		s.mu.Unlock()
		s.Yield()
		return
	}
	for e := s.ready.Front(); e != nil; {
		next := e.Next()
		if e.Value.(Thread) == t {
			s.ready.Remove(e)
		}
		e = next
	}
	for e := s.diskWaiters.Front(); e != nil; {
		next := e.Next()
		if e.Value.(Thread) == t {
			s.diskWaiters.Remove(e)
		}
		e = next
	}
	s.mu.Unlock()
	s.log.Printf("sched: terminated thread %d", t.ID())
}

// ReadyLen and DiskWaitersLen expose queue depth for tests without
// reaching into scheduler internals.
func (s *Scheduler) ReadyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready.Len()
}

func (s *Scheduler) DiskWaitersLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diskWaiters.Len()
}
