package interp

import (
	"bytes"
	"strings"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func run(t *testing.T, prog string, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	i := New(WithOutput(&out), WithInput(strings.NewReader(input)))
	err := i.Run([]byte(prog))
	return out.String(), err
}

func TestHelloWorld(t *testing.T) {
	const hello = "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."
	out, err := run(t, hello, "")
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, out == "Hello World!\n", "got %q", out)
}

func TestCatOneChar(t *testing.T) {
	out, err := run(t, ",.", "A")
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, out == "A", "got %q", out)
}

func TestCounterToThree(t *testing.T) {
	out, err := run(t, "+++.", "")
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, out == "\x03", "got %q", out)
}

func TestEchoTwice(t *testing.T) {
	out, err := run(t, ",..", "Z")
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, out == "ZZ", "got %q", out)
}

func TestNestedLoopsClearCell(t *testing.T) {
	out, err := run(t, "+++++[-].", "")
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, out == "\x00", "got %q", out)
}

func TestWraparound(t *testing.T) {
	prog := strings.Repeat("+", 256) + "."
	out, err := run(t, prog, "")
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, out == "\x00", "wraparound 256x '+' should leave cell at 0, got %q", out)
}

func TestUnmatchedBracketIsRejected(t *testing.T) {
	_, err := run(t, "[++", "")
	assert(t, err != nil, "expected unmatched bracket error")

	_, err = run(t, "++]", "")
	assert(t, err != nil, "expected unmatched bracket error")
}

func TestCommentOnlyProgramIsNoOp(t *testing.T) {
	out, err := run(t, "this is a comment", "")
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, out == "", "comment-only program should produce no output, got %q", out)
}

func TestEmptyInputYieldsZero(t *testing.T) {
	out, err := run(t, ",.", "")
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, out == "\x00", "got %q", out)
}
