package vm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// defaultFaultTrace deduplicates protection-fault stack traces process-wide;
// a package-level default mirrors the original's single fault handler.
var defaultFaultTrace = &faultTrace{Enabled: true}

// CodeFetcher supplies the bytes at a faulting instruction pointer so
// HandleFault's protection-fault log can include a disassembly, the way a
// real kernel's page-fault handler prints the faulting %eip's instruction.
// Tests and callers without real code bytes may leave this nil.
var CodeFetcher func(eip uint32) []byte

func disassembleFault(eip uint32) string {
	if CodeFetcher == nil {
		return ""
	}
	code := CodeFetcher(eip)
	if len(code) == 0 {
		return ""
	}
	inst, err := x86asm.Decode(code, 32)
	if err != nil {
		return fmt.Sprintf(" [undecodable instruction at %#x: %v]", eip, err)
	}
	return fmt.Sprintf(" [faulting instruction: %s]", x86asm.GNUSyntax(inst, uint64(eip), nil))
}
