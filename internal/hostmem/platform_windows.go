//go:build windows

package hostmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// MemfdCreate is Linux-only.
func MemfdCreate(name string, flags int) (int, error) {
	return -1, fmt.Errorf("memfd_create unsupported on windows")
}

// CreateRegion creates and maps a fresh zeroed named file mapping.
func CreateRegion(opts MapOptions) (*Region, error) {
	if opts.Type == MapTypeMemFd {
		return nil, fmt.Errorf("create region: memfd unsupported on windows")
	}
	if opts.Size <= 0 {
		return nil, fmt.Errorf("create region: invalid size %d", opts.Size)
	}
	namep, err := windows.UTF16PtrFromString(mappingName(opts.Path))
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil,
		windows.PAGE_READWRITE, uint32(uint64(opts.Size)>>32), uint32(opts.Size), namep)
	if err != nil {
		return nil, fmt.Errorf("create region: CreateFileMapping: %w", err)
	}
	return mapHandle(h, opts)
}

// MapRegion opens and maps an existing named file mapping published by the
// host.
func MapRegion(opts MapOptions) (*Region, error) {
	if opts.Type == MapTypeMemFd {
		return nil, fmt.Errorf("map region: memfd unsupported on windows")
	}
	namep, err := windows.UTF16PtrFromString(mappingName(opts.Path))
	if err != nil {
		return nil, err
	}
	h, err := windows.OpenFileMapping(windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, namep)
	if err != nil {
		return nil, fmt.Errorf("map region: OpenFileMapping: %w", err)
	}
	return mapHandle(h, opts)
}

func mapHandle(h windows.Handle, opts MapOptions) (*Region, error) {
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(opts.Size))
	if err != nil {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("map region: MapViewOfFile: %w", err)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), opts.Size)
	return &Region{
		Data:   data,
		Path:   opts.Path,
		Type:   opts.Type,
		fd:     -1,
		handle: uintptr(h),
	}, nil
}

// Unmap releases the view and closes the mapping handle.
func (r *Region) Unmap() error {
	if r == nil || r.Data == nil {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&r.Data[0]))
	r.Data = nil
	if err := windows.UnmapViewOfFile(addr); err != nil {
		return fmt.Errorf("unmap region: %w", err)
	}
	if r.handle != 0 {
		if err := windows.CloseHandle(windows.Handle(r.handle)); err != nil {
			return fmt.Errorf("unmap region: close handle: %w", err)
		}
		r.handle = 0
	}
	return nil
}

// Remove unmaps the region. Named mappings vanish with their last handle,
// so there is no file to delete.
func (r *Region) Remove() error {
	return r.Unmap()
}

// mappingName turns a segment path into a Windows mapping object name.
func mappingName(path string) string {
	name := path
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' || name[i] == '\\' {
			name = name[i+1:]
			break
		}
	}
	return "Local\\" + name
}
