package vm

import (
	"fmt"
	"runtime"
	"sync"
)

// faultTrace de-duplicates repeated protection-fault logging by call
// site, so a tight loop that keeps touching the same illegal address
// logs once with a stack trace instead of flooding the console.
//
// Adapted from biscuit's Distinct_caller_t (biscuit/src/caller/caller.go):
// same poor-man's-hash-of-return-addresses trick, renamed and trimmed to
// the one thing handle_fault's protection-fault path needs.
type faultTrace struct {
	mu      sync.Mutex
	seen    map[uintptr]bool
	Enabled bool
}

func (ft *faultTrace) pchash(pcs []uintptr) uintptr {
	var ret uintptr
	for _, pc := range pcs {
		pc = pc*1103515245 + 12345
		ret ^= pc
	}
	return ret
}

// Once reports whether the current call chain (as seen from skip frames
// up) is being seen for the first time, i.e. has not been logged before;
// on the first sighting it also returns a formatted stack trace. It
// always reports true when tracing is disabled.
func (ft *faultTrace) Once(skip int) (bool, string) {
	if !ft.Enabled {
		return true, ""
	}
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.seen == nil {
		ft.seen = make(map[uintptr]bool)
	}

	pcs := make([]uintptr, 30)
	got := runtime.Callers(skip, pcs)
	if got == 0 {
		return true, ""
	}
	pcs = pcs[:got]
	h := ft.pchash(pcs)
	if ft.seen[h] {
		return false, ""
	}
	ft.seen[h] = true

	frames := runtime.CallersFrames(pcs)
	s := ""
	for {
		fr, more := frames.Next()
		if s == "" {
			s = fmt.Sprintf("%s (%s:%d)\n", fr.Function, fr.File, fr.Line)
		} else {
			s += fmt.Sprintf("\t%s (%s:%d)\n", fr.Function, fr.File, fr.Line)
		}
		if !more || fr.Function == "runtime.goexit" {
			break
		}
	}
	return true, s
}
