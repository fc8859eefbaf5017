package jit

// The engine's Host ABI requires the generated machine code to call the
// real C library putchar and fflush, plus a host-supplied read_one_char,
// by absolute address — not through Go's own calling convention. cgo is the
// only way to obtain genuine, callable addresses for libc symbols from a Go
// binary; the exported read_one_char mirrors the original implementation's
// own extern "C" FFI boundary the same way.

/*
#include <stdio.h>

static void *rainfuck_putchar_addr(void) { return (void*)putchar; }
static void *rainfuck_fflush_addr(void)  { return (void*)fflush; }

extern int read_one_char(void);
static void *rainfuck_read_one_char_addr(void) { return (void*)read_one_char; }
*/
import "C"

import (
	"bufio"
	"os"
)

// PutcharAddr returns the absolute address of libc's putchar.
func PutcharAddr() uintptr {
	return uintptr(C.rainfuck_putchar_addr())
}

// FflushAddr returns the absolute address of libc's fflush.
func FflushAddr() uintptr {
	return uintptr(C.rainfuck_fflush_addr())
}

// ReadOneCharAddr returns the absolute address of the exported read_one_char
// callback below, as seen from C.
func ReadOneCharAddr() uintptr {
	return uintptr(C.rainfuck_read_one_char_addr())
}

var stdin = bufio.NewReader(os.Stdin)

// read_one_char implements the ',' host callback: it reads a full line from
// standard input and returns the first byte of that line, or 0 if the line
// was empty (including immediate EOF). Exported with C linkage so generated
// machine code can call it directly by address.
//
//export read_one_char
func read_one_char() C.int {
	line, _ := stdin.ReadString('\n')
	if len(line) == 0 {
		return 0
	}
	return C.int(line[0])
}
