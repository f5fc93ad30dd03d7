package hostmem

import (
	"sync/atomic"
	"unsafe"
)

// The atomic accessors operate on the raw in-memory byte representation, so
// they stay correct whatever byte order the guest uses. Callers decode and
// re-encode around the CAS. mmap returns page-aligned memory and the guest
// base must be 4-byte aligned, so an aligned guest address is aligned in
// the window too.

// Load4 atomically loads the 4 bytes at guest address addr.
func (m *Memory) Load4(addr uint32) ([4]byte, error) {
	p, err := m.word(addr)
	if err != nil {
		return [4]byte{}, err
	}
	raw := atomic.LoadUint32(p)
	return *(*[4]byte)(unsafe.Pointer(&raw)), nil
}

// CompareAndSwap4 atomically replaces the 4 bytes at guest address addr
// with new if they currently equal old.
func (m *Memory) CompareAndSwap4(addr uint32, old, new [4]byte) (bool, error) {
	p, err := m.word(addr)
	if err != nil {
		return false, err
	}
	return atomic.CompareAndSwapUint32(p,
		*(*uint32)(unsafe.Pointer(&old)),
		*(*uint32)(unsafe.Pointer(&new))), nil
}

// CompareAndSwapByte atomically replaces the byte at guest address addr
// with new if it currently equals old. Implemented as a CAS loop on the
// containing 4-byte word.
func (m *Memory) CompareAndSwapByte(addr uint32, old, new byte) (bool, error) {
	wordAddr := addr &^ 3
	shift := int(addr & 3)
	for {
		cur, err := m.Load4(wordAddr)
		if err != nil {
			return false, err
		}
		if cur[shift] != old {
			return false, nil
		}
		next := cur
		next[shift] = new
		ok, err := m.CompareAndSwap4(wordAddr, cur, next)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
}

func (m *Memory) word(addr uint32) (*uint32, error) {
	if (addr-m.base)&3 != 0 {
		return nil, ErrUnaligned
	}
	b, err := m.slice(addr, 4)
	if err != nil {
		return nil, err
	}
	return (*uint32)(unsafe.Pointer(&b[0])), nil
}
