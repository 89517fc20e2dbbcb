// Package guardpage manages the three safepoint guard pages as a single
// mmap'd region and toggles their protection between PROT_READ and
// PROT_NONE. It isolates the golang.org/x/sys/unix surface that the rest
// of the safepoint package needs.
package guardpage

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NumSlots is the number of guard-page slots: sigint page, master GC page,
// worker GC page.
const NumSlots = 3

// Region owns NumSlots page-sized mmap'd slots.
type Region struct {
	base     []byte
	pageSize int
}

// New mmaps NumSlots pages, all initially PROT_READ.
func New() (*Region, error) {
	pageSize := unix.Getpagesize()
	b, err := unix.Mmap(-1, 0, pageSize*NumSlots, unix.PROT_READ, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("guardpage: could not allocate GC synchronization pages: %w", err)
	}
	return &Region{base: b, pageSize: pageSize}, nil
}

// PageSize returns the OS page size used for each slot.
func (r *Region) PageSize() int { return r.pageSize }

// Addr returns the base address of slot idx.
func (r *Region) Addr(idx int) uintptr {
	return uintptr(unsafe.Pointer(&r.base[idx*r.pageSize]))
}

// SlotFor returns the byte slice backing slot idx, useful for computing
// the per-thread poll address (base + word offset for slot 2).
func (r *Region) SlotFor(idx int) []byte {
	start := idx * r.pageSize
	return r.base[start : start+r.pageSize]
}

// Contains reports whether addr lies in [base, base+NumSlots*pageSize).
func (r *Region) Contains(addr uintptr) bool {
	start := uintptr(unsafe.Pointer(&r.base[0]))
	end := start + uintptr(len(r.base))
	return addr >= start && addr < end
}

// Protect sets PROT_NONE (inaccessible) on slot idx.
func (r *Region) Protect(idx int) error {
	return unix.Mprotect(r.SlotFor(idx), unix.PROT_NONE)
}

// Unprotect sets PROT_READ (readable) on slot idx.
func (r *Region) Unprotect(idx int) error {
	return unix.Mprotect(r.SlotFor(idx), unix.PROT_READ)
}

// Close unmaps the region. Used by tests; the production lifetime of a
// Region is the process lifetime per spec.md §3 ("Lifecycle").
func (r *Region) Close() error {
	return unix.Munmap(r.base)
}
