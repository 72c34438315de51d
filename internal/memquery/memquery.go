// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memquery enumerates and filters a target process's virtual
// address space: readable regions and loaded modules. It never reads
// memory contents; see internal/memio for that.
package memquery

import "fmt"

// Protection is a bitset of page protection flags, generalized from
// core/mapping.go's Perm to also track copy-on-write, which the memory
// settings cascade (see Retrieval) needs to distinguish private pages.
type Protection uint8

const (
	Read Protection = 1 << iota
	Write
	Execute
	CopyOnWrite
	NoCache
	WriteCombine
)

func (p Protection) Contains(flags Protection) bool { return p&flags == flags }
func (p Protection) Intersects(flags Protection) bool { return p&flags != 0 }

func (p Protection) String() string {
	var s string
	for _, f := range []struct {
		bit  Protection
		name string
	}{
		{Read, "R"}, {Write, "W"}, {Execute, "X"}, {CopyOnWrite, "C"},
		{NoCache, "N"}, {WriteCombine, "B"},
	} {
		if p&f.bit != 0 {
			s += f.name
		} else {
			s += "-"
		}
	}
	return s
}

// AllocationType classifies the backing of a mapping, mirroring the
// memory_type_{none,private,image,mapped} settings in spec.md §6.
type AllocationType uint8

const (
	TypeNone AllocationType = 1 << iota
	TypePrivate
	TypeImage
	TypeMapped
)

const AllTypes = TypeNone | TypePrivate | TypeImage | TypeMapped

// Region is the normalized (base, size) memory region of spec.md §3.
// Invariant: Size > 0 and Base+Size does not overflow uint64.
type Region struct {
	Base uint64
	Size uint64
}

func NewRegion(base, size uint64) (Region, error) {
	if size == 0 {
		return Region{}, fmt.Errorf("memquery: zero-size region at %#x", base)
	}
	if base+size < base {
		return Region{}, fmt.Errorf("memquery: region at %#x size %#x overflows address space", base, size)
	}
	return Region{Base: base, Size: size}, nil
}

func (r Region) End() uint64 { return r.Base + r.Size }

func (r Region) Contains(addr uint64) bool { return addr >= r.Base && addr < r.End() }

// Overlaps reports whether r and o share any address.
func (r Region) Overlaps(o Region) bool { return r.Base < o.End() && o.Base < r.End() }

// Descriptor is a single OS-reported virtual memory mapping, the raw
// material GetVirtualPages filters and normalizes into Region values.
type Descriptor struct {
	Region
	Protection Protection
	Type       AllocationType
	PathName   string // backing file, "" for anonymous
}

// Module is a named region, used for address-to-module resolution.
type Module struct {
	Region
	Name string
}

// BoundsHandling controls how a descriptor straddling [start, end) is
// treated.
type BoundsHandling int

const (
	BoundsExclude BoundsHandling = iota
	BoundsResize
)

// Queryer enumerates virtual memory for one attached process. A Linux
// implementation is provided in memquery_linux.go; callers depend only on
// this interface so the rest of the scan pipeline is platform-agnostic.
type Queryer interface {
	// VirtualPages iterates OS virtual memory descriptors starting at
	// start and stopping at end (exclusive), returning those whose
	// protection contains all of required, none of excluded, and whose
	// allocation type is in allowed. Never fails hard: an OS error
	// yields a nil/empty slice, logged by the implementation.
	VirtualPages(required, excluded Protection, allowed AllocationType, start, end uint64, bounds BoundsHandling) []Descriptor

	// Modules enumerates loaded modules with base/size/name.
	Modules() []Module

	// MinUsermodeAddress and MaxUsermodeAddress report the per-bitness
	// usermode address bounds for this process.
	MinUsermodeAddress() uint64
	MaxUsermodeAddress() uint64
}

// AddressToModule resolves addr against modules, returning the owning
// module's name and the offset of addr within it.
func AddressToModule(addr uint64, modules []Module) (name string, offset uint64, ok bool) {
	for _, m := range modules {
		if m.Contains(addr) {
			return m.Name, addr - m.Base, true
		}
	}
	return "", 0, false
}

func admits(d Descriptor, required, excluded Protection, allowed AllocationType, start, end uint64, bounds BoundsHandling) (Descriptor, bool) {
	if !d.Protection.Contains(required) {
		return d, false
	}
	if d.Protection.Intersects(excluded) {
		return d, false
	}
	if d.Type&allowed == 0 {
		return d, false
	}
	if d.End() <= start || d.Base >= end {
		return d, false
	}
	if d.Base < start || d.End() > end {
		switch bounds {
		case BoundsExclude:
			return d, false
		case BoundsResize:
			newBase := d.Base
			newEnd := d.End()
			if newBase < start {
				newBase = start
			}
			if newEnd > end {
				newEnd = end
			}
			if newEnd <= newBase {
				return d, false
			}
			d.Region = Region{Base: newBase, Size: newEnd - newBase}
		}
	}
	return d, true
}

// filterDescriptors applies admits across a raw descriptor list; shared by
// every platform backend so the admission policy stays in one place.
func filterDescriptors(raw []Descriptor, required, excluded Protection, allowed AllocationType, start, end uint64, bounds BoundsHandling) []Descriptor {
	out := make([]Descriptor, 0, len(raw))
	for _, d := range raw {
		if filtered, ok := admits(d, required, excluded, allowed, start, end, bounds); ok {
			out = append(out, filtered)
		}
	}
	return out
}
