// Package arena manages a page-aligned region of executable memory for the
// JIT. The region moves through three states over its lifetime: Writable
// (freshly mapped or grown, RW), Sealed (finalised, RX), and Released
// (unmapped). It is never RW and RX at the same time.
package arena

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultNumPages is the number of pages the arena starts with, matching the
// reference JIT's initial allocation before any growth.
const DefaultNumPages = 2

type state int

const (
	stateWritable state = iota
	stateSealed
	stateReleased
)

// Arena is a growable buffer of executable memory. It is not safe for
// concurrent use; the translator that owns one runs single-threaded per the
// engine's sequential execution model.
type Arena struct {
	mem   []byte // the current mmap'd mapping, length == capacity
	used  int    // bytes written so far
	state state
}

// New maps DefaultNumPages worth of RW memory and returns an arena ready to
// receive emitted instructions.
func New() (*Arena, error) {
	size := DefaultNumPages * unix.Getpagesize()
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("arena: mmap %d bytes: %w", size, err)
	}
	return &Arena{mem: mem}, nil
}

// CurrentOffset returns the offset the next Emit call will write at.
func (a *Arena) CurrentOffset() int {
	return a.used
}

// BaseAddr returns the arena's current base address, valid whether or not
// the arena has been sealed yet. Relocations that need the arena's absolute
// position (there are none in the current call strategy, since host calls
// are register-indirect rather than call rel32) would read this before
// Finalise, since growth can move the mapping.
func (a *Arena) BaseAddr() uintptr {
	return uintptr(unsafe.Pointer(&a.mem[0]))
}

// Emit appends code to the arena, growing it first if necessary, and
// returns the offset the bytes were written at.
func (a *Arena) Emit(code []byte) (int, error) {
	if a.state != stateWritable {
		panic("arena: emit on a non-writable arena")
	}
	if err := a.growIfNeeded(len(code)); err != nil {
		return 0, err
	}
	off := a.used
	copy(a.mem[off:], code)
	a.used += len(code)
	return off, nil
}

// WriteAt overwrites already-emitted bytes in place, used by the relocator
// to patch placeholder displacements. It never grows the arena.
func (a *Arena) WriteAt(offset int, code []byte) error {
	if a.state != stateWritable {
		panic("arena: write-at on a non-writable arena")
	}
	if offset < 0 || offset+len(code) > a.used {
		return fmt.Errorf("arena: write-at [%d:%d] out of bounds (used=%d)", offset, offset+len(code), a.used)
	}
	copy(a.mem[offset:], code)
	return nil
}

// growIfNeeded doubles the mapping until it can hold n more bytes, copying
// the existing contents across and releasing the old mapping, mirroring the
// reference JIT's expand_buffer (mmap new, memcpy, unmap old).
func (a *Arena) growIfNeeded(n int) error {
	needed := a.used + n
	if needed <= len(a.mem) {
		return nil
	}
	newSize := len(a.mem)
	if newSize == 0 {
		newSize = DefaultNumPages * unix.Getpagesize()
	}
	for newSize < needed {
		newSize *= 2
	}
	newMem, err := unix.Mmap(-1, 0, newSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return fmt.Errorf("arena: grow mmap %d bytes: %w", newSize, err)
	}
	copy(newMem, a.mem[:a.used])
	if err := unix.Munmap(a.mem); err != nil {
		return fmt.Errorf("arena: unmap old buffer during grow: %w", err)
	}
	a.mem = newMem
	return nil
}

// Finalise flips the mapping from RW to RX and returns the entry address:
// the base of the arena, to be called as the program's entry point. No
// further Emit or WriteAt call is legal afterwards.
func (a *Arena) Finalise() (uintptr, error) {
	if a.state != stateWritable {
		panic("arena: finalise called more than once")
	}
	if err := unix.Mprotect(a.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return 0, fmt.Errorf("arena: mprotect RX: %w", err)
	}
	a.state = stateSealed
	return uintptr(unsafe.Pointer(&a.mem[0])), nil
}

// Close unmaps the arena. Safe to call once after Finalise, or instead of
// Finalise if translation failed before sealing.
func (a *Arena) Close() error {
	if a.state == stateReleased {
		return nil
	}
	if err := unix.Munmap(a.mem); err != nil {
		return fmt.Errorf("arena: munmap: %w", err)
	}
	a.state = stateReleased
	a.mem = nil
	return nil
}
