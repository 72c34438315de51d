// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arch describes the bitness-dependent properties of a target
// process: pointer width and byte order. Bitness selects the usermode
// address ceiling in internal/memquery; the pointer scan takes its stride
// from the requested pointer data type, not from Info.
package arch

import "encoding/binary"

// Bitness identifies a process's pointer width.
type Bitness int

const (
	Bitness32 Bitness = 32
	Bitness64 Bitness = 64
)

// Info carries the architecture-specific constants needed by the data type
// and pointer scanner layers.
type Info struct {
	PointerSize int // 4 or 8
	ByteOrder   binary.ByteOrder
	Bitness     Bitness
}

func (i Info) Uintptr(buf []byte) uint64 {
	switch i.PointerSize {
	case 4:
		return uint64(i.ByteOrder.Uint32(buf[:4]))
	case 8:
		return i.ByteOrder.Uint64(buf[:8])
	}
	panic("arch: bad pointer size")
}

func (i Info) PutUintptr(buf []byte, v uint64) {
	switch i.PointerSize {
	case 4:
		i.ByteOrder.PutUint32(buf[:4], uint32(v))
	case 8:
		i.ByteOrder.PutUint64(buf[:8], v)
	default:
		panic("arch: bad pointer size")
	}
}

var AMD64 = Info{
	PointerSize: 8,
	ByteOrder:   binary.LittleEndian,
	Bitness:     Bitness64,
}

var I386 = Info{
	PointerSize: 4,
	ByteOrder:   binary.LittleEndian,
	Bitness:     Bitness32,
}

// ForBitness returns the canonical Info for the given bitness, assuming the
// little-endian x86/amd64 byte order that the rest of this package targets.
func ForBitness(b Bitness) Info {
	if b == Bitness32 {
		return I386
	}
	return AMD64
}
