package jit

import (
	"io"
	"os"
	"syscall"
	"testing"

	"rainfuck/internal/lang"
)

func TestCompileRejectsUnmatchedBrackets(t *testing.T) {
	if _, err := Compile([]byte("[++")); err == nil {
		t.Fatalf("expected unmatched '[' to be rejected")
	}
	if _, err := Compile([]byte("++]")); err == nil {
		t.Fatalf("expected unmatched ']' to be rejected")
	}
}

func TestCompileAcceptsCommentOnlyProgram(t *testing.T) {
	prog, err := Compile([]byte("this is a comment"))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer prog.Close()

	tape := make([]byte, lang.TapeSize)
	if err := prog.Run(tape); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, b := range tape {
		if b != 0 {
			t.Fatalf("comment-only program mutated tape at %d: %d", i, b)
		}
	}
}

func TestCompileRejectsWrongTapeLength(t *testing.T) {
	prog, err := Compile([]byte("+"))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer prog.Close()

	if err := prog.Run(make([]byte, 1)); err == nil {
		t.Fatalf("expected error running against a wrong-size tape")
	}
}

// redirectFD duplicates newFD onto oldFD and returns a function that
// restores oldFD's original target, so a test can make fd 1 (or fd 0) point
// somewhere else — the only way to intercept real libc putchar/fflush
// output, since they write directly to the process's file descriptors
// rather than through Go's os.Stdout value.
func redirectFD(t *testing.T, oldFD, newFD int) func() {
	t.Helper()
	saved, err := syscall.Dup(oldFD)
	if err != nil {
		t.Fatalf("dup fd %d: %v", oldFD, err)
	}
	if err := syscall.Dup2(newFD, oldFD); err != nil {
		t.Fatalf("dup2 %d -> %d: %v", newFD, oldFD, err)
	}
	return func() {
		syscall.Dup2(saved, oldFD)
		syscall.Close(saved)
	}
}

// runJITCaptured compiles and runs src, capturing everything written to
// real fd 1 (where the JIT's generated putchar/fflush calls actually write,
// bypassing Go's os.Stdout entirely).
func runJITCaptured(t *testing.T, src string) string {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	restore := redirectFD(t, 1, int(w.Fd()))

	prog, err := Compile([]byte(src))
	if err != nil {
		restore()
		t.Fatalf("Compile: %v", err)
	}
	tape := make([]byte, lang.TapeSize)
	runErr := prog.Run(tape)
	prog.Close()

	w.Close()
	restore()
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}

	out, _ := io.ReadAll(r)
	return string(out)
}

func TestJITCounterToThreeNoLoop(t *testing.T) {
	out := runJITCaptured(t, "+++.")
	if out != "\x03" {
		t.Fatalf("got %q, want %q", out, "\x03")
	}
}

// TestJITCounterToThreeViaLoop is the spec's actual Counter-to-3 scenario:
// build the count in one cell, then move it to another via the loop
// construct ('[' / ']'), rather than accumulating it in place. This is the
// simplest program that exercises a single '[' ... ']' pair end to end,
// unlike the no-bracket variant above.
func TestJITCounterToThreeViaLoop(t *testing.T) {
	out := runJITCaptured(t, "+++[>+<-]>.")
	if out != "\x03" {
		t.Fatalf("got %q, want %q", out, "\x03")
	}
}

func TestJITNestedLoopsClearCell(t *testing.T) {
	out := runJITCaptured(t, "+++++[-].")
	if out != "\x00" {
		t.Fatalf("got %q, want %q", out, "\x00")
	}
}

func TestJITHelloWorld(t *testing.T) {
	const hello = "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."
	out := runJITCaptured(t, hello)
	if out != "Hello World!\n" {
		t.Fatalf("got %q, want %q", out, "Hello World!\n")
	}
}
