package jit

/*
#include <stdint.h>

static void rainfuck_call(uintptr_t entry, unsigned char *tape) {
	((void (*)(unsigned char *))entry)(tape);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"rainfuck/internal/arena"
	"rainfuck/internal/lang"
)

// Program is a compiled, sealed unit of machine code ready to run against a
// tape. It owns the arena it was built in.
type Program struct {
	arena *arena.Arena
	entry uintptr
}

// Run invokes the compiled code against tape, which must be exactly
// lang.TapeSize bytes long, matching the fixed tape the translator assumed
// when choosing its addressing mode. The generated entry point has the
// signature void entry(uint8_t* tape_base); it runs synchronously and
// returns only once the program has finished.
func (p *Program) Run(tape []byte) error {
	if len(tape) != lang.TapeSize {
		return fmt.Errorf("jit: tape must be exactly %d bytes, got %d", lang.TapeSize, len(tape))
	}
	call(p.entry, &tape[0])
	return nil
}

// Close releases the program's executable memory. The Program must not be
// used again afterwards.
func (p *Program) Close() error {
	return p.arena.Close()
}

// call invokes the raw machine code at entry through a C trampoline, so the
// tape base arrives in Rdi under the System V calling convention the
// generated prologue reads it from, and the code's calls to libc and to the
// exported read_one_char run from a regular cgo call.
func call(entry uintptr, tapeBase *byte) {
	C.rainfuck_call(C.uintptr_t(entry), (*C.uchar)(unsafe.Pointer(tapeBase)))
}
