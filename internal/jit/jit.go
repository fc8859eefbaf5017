// Package jit is the core of the engine: it translates a program directly
// into x86-64 machine code in a single pass, with no intermediate
// representation, and returns a Program that can be invoked against a tape.
//
// Forward jump targets ('[' doesn't know where its matching ']' is until
// the translator reaches it) are resolved with a bracket stack: each '['
// pushes the offset of its test block and the offset of its not-yet-known
// forward displacement; the matching ']' pops both, emits the back edge,
// and hands the forward displacement to the relocator.
package jit

import (
	"rainfuck/internal/arena"
	"rainfuck/internal/lang"
	"rainfuck/internal/reloc"
	"rainfuck/pkg/amd64"
)

// bracketEntry is one live '[' awaiting its matching ']'.
type bracketEntry struct {
	headerOffset int // offset of the loop's zero test, the back-edge target
	patchOffset  int // offset of the forward je's placeholder displacement
	progIndex    int // index into prog, for unmatched-bracket diagnostics
}

// Compile translates prog into executable machine code and returns a
// Program ready to run. The arena is released by the caller via
// Program.Close.
func Compile(prog []byte) (*Program, error) {
	a, err := arena.New()
	if err != nil {
		return nil, err
	}

	var tbl reloc.Table
	var stack []bracketEntry
	pos := lang.Positions(prog)

	emit := func(code []byte) error {
		_, err := a.Emit(code)
		return err
	}

	if err := emitPrologue(emit); err != nil {
		a.Close()
		return nil, err
	}

	for idx, b := range prog {
		var err error
		switch b {
		case '>':
			err = emit(amd64.IncReg(amd64.Rbx))
		case '<':
			err = emit(amd64.DecReg(amd64.Rbx))
		case '+':
			err = emitCellOp(emit, amd64.IncReg(amd64.Rcx))
		case '-':
			err = emitCellOp(emit, amd64.DecReg(amd64.Rcx))
		case '.':
			err = emitOut(emit)
		case ',':
			err = emitIn(emit)
		case '[':
			headerOffset := a.CurrentOffset()
			if err = emit(amd64.MovImmReg(amd64.Rcx, 0)); err != nil {
				break
			}
			if err = emit(amd64.LoadByteMem(amd64.Rdx, amd64.Rbx)); err != nil {
				break
			}
			if err = emit(amd64.TestClCl()); err != nil {
				break
			}
			patchOffset, emitErr := amd64.EmitJmpWithPatchback(a, amd64.JumpIfZero)
			if emitErr != nil {
				err = emitErr
				break
			}
			stack = append(stack, bracketEntry{headerOffset, patchOffset, idx})
		case ']':
			if len(stack) == 0 {
				a.Close()
				return nil, &lang.BracketError{Unmatched: ']', Pos: pos[idx]}
			}
			entry := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			jmpOffset, emitErr := amd64.EmitJmpWithPatchback(a, amd64.JumpAlways)
			if emitErr != nil {
				err = emitErr
				break
			}
			tbl.AddPatchback(jmpOffset, entry.headerOffset)
			tbl.AddPatchback(entry.patchOffset, a.CurrentOffset())
		default:
			// comment byte, no code generated
		}
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	if len(stack) > 0 {
		unmatched := stack[len(stack)-1]
		a.Close()
		return nil, &lang.BracketError{Unmatched: '[', Pos: pos[unmatched.progIndex]}
	}

	if err := emitEpilogue(emit); err != nil {
		a.Close()
		return nil, err
	}

	if err := tbl.Resolve(a, a.BaseAddr()); err != nil {
		a.Close()
		return nil, err
	}

	entry, err := a.Finalise()
	if err != nil {
		a.Close()
		return nil, err
	}

	return &Program{arena: a, entry: entry}, nil
}

// emitPrologue sets up the System V stack frame and loads the static
// register allocation: Rbx is the data pointer, Rdx is the tape base,
// passed in as the entry point's sole argument (Rdi).
func emitPrologue(emit func([]byte) error) error {
	for _, code := range [][]byte{
		amd64.PushReg(amd64.Rbp),
		amd64.MovRegReg(amd64.Rbp, amd64.Rsp),
		amd64.PushReg(amd64.Rbx),
		amd64.PushReg(amd64.Rdx),
		amd64.MovImmReg(amd64.Rbx, 0),
		amd64.MovRegReg(amd64.Rdx, amd64.Rdi),
	} {
		if err := emit(code); err != nil {
			return err
		}
	}
	return nil
}

func emitEpilogue(emit func([]byte) error) error {
	for _, code := range [][]byte{
		amd64.PopReg(amd64.Rdx),
		amd64.PopReg(amd64.Rbx),
		amd64.MovRegReg(amd64.Rsp, amd64.Rbp),
		amd64.PopReg(amd64.Rbp),
		amd64.Ret(),
	} {
		if err := emit(code); err != nil {
			return err
		}
	}
	return nil
}

// emitCellOp implements '+' and '-': zero Rcx, load the current cell into
// Cl, apply incOrDec (a pre-encoded 64-bit inc/dec on Rcx — only Cl is
// observed when it's stored back), then store Cl.
func emitCellOp(emit func([]byte) error, incOrDec []byte) error {
	for _, code := range [][]byte{
		amd64.MovImmReg(amd64.Rcx, 0),
		amd64.LoadByteMem(amd64.Rdx, amd64.Rbx),
		incOrDec,
		amd64.StoreByteClMem(amd64.Rdx, amd64.Rbx),
	} {
		if err := emit(code); err != nil {
			return err
		}
	}
	return nil
}

// emitOut implements '.': putchar(cell) followed by fflush(NULL), both
// called by absolute address materialised into Rcx. Rbx and Rdx are saved
// across the calls since they are not guaranteed to survive a call to
// arbitrary external code under the System V ABI in the way Rbx normally
// would as a callee-saved register — Rdx in particular is caller-saved.
func emitOut(emit func([]byte) error) error {
	steps := [][]byte{
		amd64.PushReg(amd64.Rbx),
		amd64.PushReg(amd64.Rdx),
		amd64.MovImmReg(amd64.Rcx, 0),
		amd64.LoadByteMem(amd64.Rdx, amd64.Rbx),
		amd64.MovRegReg(amd64.Rdi, amd64.Rcx),
		amd64.MovImmReg(amd64.Rcx, uint64(PutcharAddr())),
		amd64.CallReg(amd64.Rcx),
		amd64.MovImmReg(amd64.Rdi, 0),
		amd64.MovImmReg(amd64.Rcx, uint64(FflushAddr())),
		amd64.CallReg(amd64.Rcx),
		amd64.PopReg(amd64.Rdx),
		amd64.PopReg(amd64.Rbx),
	}
	for _, code := range steps {
		if err := emit(code); err != nil {
			return err
		}
	}
	return nil
}

// emitIn implements ',': read_one_char() returns its result in Eax/Al,
// which is stored directly into the current cell.
func emitIn(emit func([]byte) error) error {
	steps := [][]byte{
		amd64.PushReg(amd64.Rbx),
		amd64.PushReg(amd64.Rdx),
		amd64.MovImmReg(amd64.Rcx, uint64(ReadOneCharAddr())),
		amd64.CallReg(amd64.Rcx),
		amd64.PopReg(amd64.Rdx),
		amd64.PopReg(amd64.Rbx),
		amd64.StoreByteAlMem(amd64.Rdx, amd64.Rbx),
	}
	for _, code := range steps {
		if err := emit(code); err != nil {
			return err
		}
	}
	return nil
}

