//go:build linux

package procattach

import (
	"debug/elf"
	"fmt"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/memscan/engine/internal/arch"
)

// LinuxHandle pins all ptrace calls for one attached process to a single
// OS thread, mirroring golang-debug's ptraceRun: "runs all the closures
// from fc on a dedicated OS thread... to ensure that the resultant error
// is sent back to the same goroutine that sent the closure."
type LinuxHandle struct {
	handle Handle
	fc     chan func() error
	ec     chan error
	done   chan struct{}
}

// Attach opens a handle to pid: resolves the name from /proc/<pid>/comm
// ("pid-N" if unreadable) and the bitness from the ELF class of
// /proc/<pid>/exe (64-bit if unreadable), then PTRACE_ATTACHes on a
// dedicated thread so subsequent peek/poke calls are valid. Only the
// attach (or the wait after it) can make Attach fail.
func Attach(pid int) (*LinuxHandle, error) {
	name, err := processName(pid)
	if err != nil {
		return nil, errors.Wrapf(err, "procattach: resolving process name for pid %d", pid)
	}
	bitness, err := processBitness(pid)
	if err != nil {
		bitness = arch.Bitness64
	}

	h := &LinuxHandle{
		handle: Handle{Pid: pid, Name: name, Bitness: bitness},
		fc:     make(chan func() error),
		ec:     make(chan error),
		done:   make(chan struct{}),
	}
	go h.run()

	if err := h.call(func() error { return unix.PtraceAttach(pid) }); err != nil {
		close(h.done)
		return nil, errors.Wrapf(err, "procattach: PTRACE_ATTACH pid %d", pid)
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		close(h.done)
		return nil, errors.Wrapf(err, "procattach: wait4 after attach pid %d", pid)
	}
	return h, nil
}

// run is the dedicated OS thread that issues every ptrace syscall for this
// handle; unbuffered channels guarantee the error returns to the same
// goroutine that submitted the closure.
func (h *LinuxHandle) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for {
		select {
		case f := <-h.fc:
			h.ec <- f()
		case <-h.done:
			return
		}
	}
}

func (h *LinuxHandle) call(f func() error) error {
	select {
	case h.fc <- f:
		return <-h.ec
	case <-h.done:
		return fmt.Errorf("procattach: handle for pid %d is detached", h.handle.Pid)
	}
}

func (h *LinuxHandle) Info() *Handle { return &h.handle }

func (h *LinuxHandle) Detach() error {
	select {
	case <-h.done:
		return nil
	default:
	}
	err := h.call(func() error { return unix.PtraceDetach(h.handle.Pid) })
	close(h.done)
	return err
}

func processName(pid int) (string, error) {
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return fmt.Sprintf("pid-%d", pid), nil
	}
	name := string(b)
	if n := len(name); n > 0 && name[n-1] == '\n' {
		name = name[:n-1]
	}
	return name, nil
}

func processBitness(pid int) (arch.Bitness, error) {
	f, err := elf.Open(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if f.Class == elf.ELFCLASS32 {
		return arch.Bitness32, nil
	}
	return arch.Bitness64, nil
}
