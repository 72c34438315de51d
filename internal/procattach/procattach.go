// Package procattach owns the "Opened Process Handle" of spec.md §3: an
// opaque OS handle plus process id, name, and bitness, borrowed by the
// scanner for the lifetime of a scan. The ptrace plumbing is grounded on
// golang-debug's program/server/ptrace.go, generalized from a breakpoint
// debugger's peek/poke to this engine's bulk memory reader/writer.
package procattach

import (
	"fmt"

	"github.com/memscan/engine/internal/arch"
)

// Handle is the opaque per-process handle the rest of the engine borrows.
// Platform backends (procattach_linux.go) hold one of these and add their
// own ptrace/ptrace-thread state.
type Handle struct {
	Pid     int
	Name    string
	Bitness arch.Bitness
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s[pid=%d,%dbit]", h.Name, h.Pid, h.Bitness)
}

// Attacher opens and closes a handle to a target process. The Linux
// implementation additionally performs PTRACE_ATTACH so writes can bypass
// page write-protection (see memio_linux.go).
type Attacher interface {
	Attach(pid int) (ProcessHandle, error)
}

// ProcessHandle is the capability surface the rest of the engine needs from
// an attached process: identity plus read/write.
type ProcessHandle interface {
	Info() *Handle
	Detach() error
}
