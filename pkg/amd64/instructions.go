// Package amd64 provides x86_64 (AMD64) machine code encoding utilities.
// This package has no dependencies on compiler internals and can be used
// standalone for generating x86_64 machine code.
//
// It covers the small, fixed repertoire the translator needs: register
// push/pop, register-to-register and immediate moves, increment/decrement,
// indirect and relative calls, relative jumps, and byte loads/stores
// through a two-register addressing mode ([base+index], no scale, no
// displacement).
//
// For details on x86-64 instruction encoding (REX prefixes, ModRM, SIB
// bytes), see: https://wiki.osdev.org/X86-64_Instruction_Encoding
//
// Every combination here except CallRel32 is one the translator actually
// emits; there is no general-purpose assembler underneath. An unsupported register in any of
// these functions panics rather than emitting the wrong bytes.
package amd64

import "encoding/binary"

// writeLE32 writes a 32-bit value in little-endian order.
func writeLE32(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf, v)
}

// writeLE64 writes a 64-bit value in little-endian order.
func writeLE64(buf []byte, v uint64) {
	binary.LittleEndian.PutUint64(buf, v)
}

// PushReg encodes: push %reg (50+r)
func PushReg(r Reg) []byte {
	return []byte{0x50 + regBits(r)}
}

// PopReg encodes: pop %reg (58+r)
func PopReg(r Reg) []byte {
	return []byte{0x58 + regBits(r)}
}

// MovRegReg encodes: mov %src, %dst (REX.W 89 /r)
// dst is the r/m operand, src is the reg operand; the parameters follow
// Intel's destination-first operand order.
func MovRegReg(dst, src Reg) []byte {
	return []byte{0x48, 0x89, 0xC0 | regBits(src)<<3 | regBits(dst)}
}

// MovImmReg encodes a 64-bit load of imm into reg.
// Values that fit in a sign-extended 32-bit immediate use the shorter
// "mov r/m64, imm32" form (REX.W C7 /0 id); larger values (e.g. absolute
// host function addresses) use the 10-byte movabs form (REX.W B8+r io).
func MovImmReg(r Reg, imm uint64) []byte {
	if imm <= 0x7FFFFFFF {
		buf := make([]byte, 7)
		buf[0] = 0x48
		buf[1] = 0xC7
		buf[2] = 0xC0 | regBits(r)
		writeLE32(buf[3:], uint32(imm))
		return buf
	}
	buf := make([]byte, 10)
	buf[0] = 0x48
	buf[1] = 0xB8 + regBits(r)
	writeLE64(buf[2:], imm)
	return buf
}

// IncReg encodes: inc %reg (REX.W FF /0)
func IncReg(r Reg) []byte {
	return []byte{0x48, 0xFF, 0xC0 | regBits(r)}
}

// DecReg encodes: dec %reg (REX.W FF /1)
func DecReg(r Reg) []byte {
	return []byte{0x48, 0xFF, 0xC8 | regBits(r)}
}

// CallReg encodes: call *%reg (FF /2), a register-indirect call.
// Used for every host call: the absolute target address is materialised
// into reg first via MovImmReg, then called, instead of relying on a
// call rel32 relocation.
func CallReg(r Reg) []byte {
	return []byte{0xFF, 0xD0 | regBits(r)}
}

// CallRel32 encodes: call rel32 (E8 id), placeholder displacement.
// Kept as a directly testable encoder primitive for the relocation table
// (a call via a relocated rel32 rather than a materialised absolute
// address) even though the translator's host calls currently go through
// CallReg instead.
func CallRel32(rel32 int32) []byte {
	buf := make([]byte, 5)
	buf[0] = 0xE8
	writeLE32(buf[1:], uint32(rel32))
	return buf
}

// Ret encodes: ret (C3)
func Ret() []byte {
	return []byte{0xC3}
}

// TestClCl encodes: test %cl, %cl (84 C9)
// Sets ZF from the current tape cell, loaded into Cl beforehand.
func TestClCl() []byte {
	return []byte{0x84, 0xC9}
}

// LoadByteMem encodes: mov (%base,%index,1), %cl (8A 0C <SIB>)
// Loads the byte at [base+index] into Cl. base and index must each be one
// of Rdx or Rbx; this is the only addressing mode the translator uses.
func LoadByteMem(base, index Reg) []byte {
	return []byte{0x8A, 0x0C, sib(base, index)}
}

// StoreByteClMem encodes: mov %cl, (%base,%index,1) (88 0C <SIB>)
func StoreByteClMem(base, index Reg) []byte {
	return []byte{0x88, 0x0C, sib(base, index)}
}

// StoreByteAlMem encodes: mov %al, (%base,%index,1) (88 04 <SIB>)
func StoreByteAlMem(base, index Reg) []byte {
	return []byte{0x88, 0x04, sib(base, index)}
}

// sib builds a scale=1, no-displacement SIB byte for [base+index] addressing.
func sib(base, index Reg) byte {
	return regBits(index)<<3 | regBits(base)
}

// JumpKind selects the opcode EmitJmpWithPatchback emits before its
// placeholder displacement.
type JumpKind int

const (
	// JumpAlways encodes an unconditional jmp rel32 (E9).
	JumpAlways JumpKind = iota
	// JumpIfZero encodes a je rel32 (0F 84), branching on ZF set.
	JumpIfZero
)

// Emitter is the minimal arena capability EmitJmpWithPatchback needs: append
// bytes and report the offset they landed at.
type Emitter interface {
	Emit(code []byte) (int, error)
}

// EmitJmpWithPatchback emits a jump's opcode bytes and its 4-byte
// placeholder displacement as two separate writes, and returns the offset
// of the placeholder itself — not the opcode — since that is the offset a
// patchback entry must overwrite. Emitting them as one combined instruction
// and returning the offset Emit reports for the whole instruction would
// return the opcode's offset instead, corrupting the opcode bytes once the
// relocator patches in the real displacement.
func EmitJmpWithPatchback(e Emitter, kind JumpKind) (int, error) {
	var opcode []byte
	switch kind {
	case JumpAlways:
		opcode = []byte{0xE9}
	case JumpIfZero:
		opcode = []byte{0x0F, 0x84}
	default:
		panic("amd64: unsupported jump kind")
	}
	if _, err := e.Emit(opcode); err != nil {
		return 0, err
	}
	return e.Emit([]byte{0, 0, 0, 0})
}
