//go:build linux

package memquery

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/memscan/engine/internal/arch"
)

// LinuxQueryer implements Queryer by parsing /proc/<pid>/maps, the Linux
// analogue of the page-table walk golang-debug's core package does over a
// core file's PT_LOAD segments (see core/mapping.go).
type LinuxQueryer struct {
	Pid     int
	Bitness arch.Bitness
	Log     *logrus.Entry
}

func NewLinuxQueryer(pid int, bitness arch.Bitness, log *logrus.Entry) *LinuxQueryer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LinuxQueryer{Pid: pid, Bitness: bitness, Log: log}
}

func (q *LinuxQueryer) mapsPath() string {
	return fmt.Sprintf("/proc/%d/maps", q.Pid)
}

// readDescriptors parses /proc/<pid>/maps. Fail-soft per spec.md §4.1: any
// error here is logged and an empty slice returned, never propagated.
func (q *LinuxQueryer) readDescriptors() []Descriptor {
	f, err := os.Open(q.mapsPath())
	if err != nil {
		q.Log.WithError(err).WithField("pid", q.Pid).Debug("memquery: failed to open /proc/pid/maps")
		return nil
	}
	defer f.Close()

	var out []Descriptor
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		d, ok := parseMapsLine(scanner.Text())
		if !ok {
			continue
		}
		out = append(out, d)
	}
	if err := scanner.Err(); err != nil {
		q.Log.WithError(errors.Wrap(err, "memquery: reading maps")).Debug("memquery: scan error")
	}
	return out
}

// parseMapsLine parses one line of /proc/pid/maps:
//
//	00400000-00452000 r-xp 00000000 08:02 173521 /usr/bin/dbus-daemon
func parseMapsLine(line string) (Descriptor, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Descriptor{}, false
	}
	addrs := strings.SplitN(fields[0], "-", 2)
	if len(addrs) != 2 {
		return Descriptor{}, false
	}
	base, err := strconv.ParseUint(addrs[0], 16, 64)
	if err != nil {
		return Descriptor{}, false
	}
	end, err := strconv.ParseUint(addrs[1], 16, 64)
	if err != nil || end <= base {
		return Descriptor{}, false
	}

	perms := fields[1]
	var prot Protection
	if strings.Contains(perms, "r") {
		prot |= Read
	}
	if strings.Contains(perms, "w") {
		prot |= Write
	}
	if strings.Contains(perms, "x") {
		prot |= Execute
	}
	private := strings.Contains(perms, "p")

	pathName := ""
	if len(fields) >= 6 {
		pathName = strings.Join(fields[5:], " ")
	}

	allocType := TypeMapped
	switch {
	case pathName == "":
		allocType = TypePrivate
	case strings.HasPrefix(pathName, "[") :
		allocType = TypePrivate
	case private && isExecutableImage(pathName):
		allocType = TypeImage
	case private:
		allocType = TypePrivate
	}
	if private {
		prot |= CopyOnWrite
	}

	region, err := NewRegion(base, end-base)
	if err != nil {
		return Descriptor{}, false
	}
	return Descriptor{Region: region, Protection: prot, Type: allocType, PathName: pathName}, true
}

func isExecutableImage(path string) bool {
	return strings.HasSuffix(path, ".so") || strings.Contains(path, ".so.") || isMainExecutablePath(path)
}

// isMainExecutablePath is a narrow heuristic: a path whose final component
// contains no '.' (or a path with no '/' at all) is treated as the main
// module image, in any directory.
func isMainExecutablePath(path string) bool {
	if strings.Contains(path, "/") {
		base := path[strings.LastIndex(path, "/")+1:]
		return !strings.Contains(base, ".")
	}
	return true
}

func (q *LinuxQueryer) VirtualPages(required, excluded Protection, allowed AllocationType, start, end uint64, bounds BoundsHandling) []Descriptor {
	return filterDescriptors(q.readDescriptors(), required, excluded, allowed, start, end, bounds)
}

func (q *LinuxQueryer) Modules() []Module {
	descriptors := q.readDescriptors()
	byPath := make(map[string]*Module)
	var order []string
	for _, d := range descriptors {
		if d.PathName == "" || strings.HasPrefix(d.PathName, "[") {
			continue
		}
		if m, ok := byPath[d.PathName]; ok {
			if d.Base < m.Base {
				m.Size += m.Base - d.Base
				m.Base = d.Base
			}
			if d.End() > m.End() {
				m.Size = d.End() - m.Base
			}
			continue
		}
		name := d.PathName
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		m := &Module{Region: d.Region, Name: name}
		byPath[d.PathName] = m
		order = append(order, d.PathName)
	}
	modules := make([]Module, 0, len(order))
	for _, p := range order {
		modules = append(modules, *byPath[p])
	}
	return modules
}

func (q *LinuxQueryer) MinUsermodeAddress() uint64 {
	return 0x10000
}

func (q *LinuxQueryer) MaxUsermodeAddress() uint64 {
	if q.Bitness == arch.Bitness32 {
		return 0xFFFFFFFF
	}
	// Linux x86-64 canonical usermode ceiling (below the non-canonical gap).
	return 0x00007FFFFFFFFFFF
}
