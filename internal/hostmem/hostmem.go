// Package hostmem maps the host process's exported guest-RAM segment and
// translates guest addresses into it. The host owns the segment's layout
// and lifetime; this package only maps, reads, writes and unmaps.
//
// Platform-specific mapping lives in platform_linux.go / platform_windows.go.
package hostmem

import (
	"errors"
	"fmt"
)

// MapType selects how a region is backed.
type MapType int

const (
	// MapTypeDevShmFile backs the region with a file path (typically under
	// /dev/shm on Linux).
	MapTypeDevShmFile MapType = iota
	// MapTypeMemFd backs the region with an anonymous memfd (Linux only).
	MapTypeMemFd
)

var (
	// ErrAddressNotMapped is returned when a guest address range falls
	// outside the mapped window.
	ErrAddressNotMapped = errors.New("guest address not mapped")
	// ErrUnaligned is returned by atomic accessors for addresses that are
	// not 4-byte aligned relative to the guest base.
	ErrUnaligned = errors.New("guest address not 4-byte aligned")
)

// MapOptions describes a segment to map or create.
type MapOptions struct {
	// Path of the segment file. Ignored for MapTypeMemFd when MemFd is set.
	Path string
	// MemFd is an already-created memfd to map. Only used with MapTypeMemFd.
	MemFd int
	// Size in bytes. Required when creating; when mapping an existing file,
	// zero means "whole file".
	Size int
	// Type of backing.
	Type MapType
}

// Region is one mapped segment of host memory.
type Region struct {
	Data []byte
	Path string
	Type MapType

	fd     int
	handle uintptr
}

// Memory translates guest addresses into a mapped (or in tests, heap)
// byte window starting at guest address base.
type Memory struct {
	base uint32
	data []byte
}

// NewMemory wraps data as the guest address window [base, base+len(data)).
func NewMemory(base uint32, data []byte) *Memory {
	return &Memory{base: base, data: data}
}

// Base returns the guest address of the window's first byte.
func (m *Memory) Base() uint32 { return m.base }

// Size returns the window length in bytes.
func (m *Memory) Size() int { return len(m.data) }

func (m *Memory) slice(addr uint32, n int) ([]byte, error) {
	if addr < m.base {
		return nil, fmt.Errorf("%w: 0x%08X", ErrAddressNotMapped, addr)
	}
	off := int(addr - m.base)
	if off+n > len(m.data) || off+n < off {
		return nil, fmt.Errorf("%w: 0x%08X+%d", ErrAddressNotMapped, addr, n)
	}
	return m.data[off : off+n], nil
}

// ReadAt copies len(buf) bytes at guest address addr into buf.
func (m *Memory) ReadAt(addr uint32, buf []byte) error {
	src, err := m.slice(addr, len(buf))
	if err != nil {
		return err
	}
	copy(buf, src)
	return nil
}

// WriteAt copies buf into the window at guest address addr.
func (m *Memory) WriteAt(addr uint32, buf []byte) error {
	dst, err := m.slice(addr, len(buf))
	if err != nil {
		return err
	}
	copy(dst, buf)
	return nil
}

// ByteAt returns the single byte at guest address addr.
func (m *Memory) ByteAt(addr uint32) (byte, error) {
	b, err := m.slice(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// SetByteAt stores v at guest address addr.
func (m *Memory) SetByteAt(addr uint32, v byte) error {
	b, err := m.slice(addr, 1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}
