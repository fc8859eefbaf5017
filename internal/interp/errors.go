package interp

import "fmt"

// RuntimeError reports a failure that can only be detected while a program
// is executing, as opposed to a BracketError caught by the scanner before
// the first instruction runs.
type RuntimeError struct {
	Op     byte
	Offset int
	Reason string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at offset %d (%q): %s", e.Offset, string(e.Op), e.Reason)
}
