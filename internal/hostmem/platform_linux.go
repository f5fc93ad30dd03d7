//go:build linux

package hostmem

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// MemfdCreate creates an anonymous memory file descriptor.
func MemfdCreate(name string, flags int) (int, error) {
	fd, err := unix.MemfdCreate(name, flags)
	if err != nil {
		return -1, fmt.Errorf("memfd_create %s: %w", name, err)
	}
	return fd, nil
}

// CreateRegion creates and maps a fresh zeroed segment. Intended for the
// mock-host side; a real host publishes its own segment.
func CreateRegion(opts MapOptions) (*Region, error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("create region: invalid size %d", opts.Size)
	}
	if opts.Type == MapTypeMemFd {
		fd := opts.MemFd
		if fd == 0 {
			var err error
			fd, err = MemfdCreate(opts.Path, 0)
			if err != nil {
				return nil, err
			}
		}
		if err := unix.Ftruncate(fd, int64(opts.Size)); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("create region: truncate: %w", err)
		}
		return mapFd(fd, opts.Size, opts)
	}

	_ = os.MkdirAll(filepath.Dir(opts.Path), os.ModePerm)
	f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_RDWR, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("create region: %w", err)
	}
	defer f.Close()
	if err := f.Truncate(int64(opts.Size)); err != nil {
		return nil, fmt.Errorf("create region: truncate: %w", err)
	}
	return mapFd(int(f.Fd()), opts.Size, opts)
}

// MapRegion maps an existing segment published by the host.
func MapRegion(opts MapOptions) (*Region, error) {
	if opts.Type == MapTypeMemFd {
		size := opts.Size
		if size == 0 {
			var st unix.Stat_t
			if err := unix.Fstat(opts.MemFd, &st); err != nil {
				return nil, fmt.Errorf("map region: fstat: %w", err)
			}
			size = int(st.Size)
		}
		return mapFd(opts.MemFd, size, opts)
	}

	f, err := os.OpenFile(opts.Path, os.O_RDWR, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("map region: %w", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("map region: stat: %w", err)
	}
	size := opts.Size
	if size == 0 {
		size = int(fi.Size())
	} else if int64(size) > fi.Size() {
		// Mapping past EOF faults on access, fail early instead.
		return nil, fmt.Errorf("map region: %s is %d bytes, need %d", opts.Path, fi.Size(), size)
	}
	return mapFd(int(f.Fd()), size, opts)
}

func mapFd(fd, size int, opts MapOptions) (*Region, error) {
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		if opts.Type == MapTypeMemFd {
			_ = unix.Close(fd)
		}
		return nil, fmt.Errorf("map region: mmap: %w", err)
	}
	r := &Region{
		Data: data,
		Path: opts.Path,
		Type: opts.Type,
		fd:   -1,
	}
	if opts.Type == MapTypeMemFd {
		r.fd = fd
	}
	return r, nil
}

// Unmap releases the mapping. For memfd-backed regions the fd is closed;
// file-backed segment files are left in place for the host to reclaim.
func (r *Region) Unmap() error {
	if r == nil || r.Data == nil {
		return nil
	}
	if err := unix.Munmap(r.Data); err != nil {
		return fmt.Errorf("unmap region: %w", err)
	}
	r.Data = nil
	if r.fd >= 0 {
		if err := unix.Close(r.fd); err != nil {
			return fmt.Errorf("unmap region: close memfd: %w", err)
		}
		r.fd = -1
	}
	return nil
}

// Remove unmaps and deletes a file-backed segment. Only the segment's
// creator (the mock host) should call it.
func (r *Region) Remove() error {
	path := r.Path
	typ := r.Type
	if err := r.Unmap(); err != nil {
		return err
	}
	if typ == MapTypeDevShmFile && path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove region: %w", err)
		}
	}
	return nil
}
