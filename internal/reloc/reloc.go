// Package reloc resolves the deferred 32-bit PC-relative displacements left
// behind by the translator: patchback entries for intra-arena jumps, and
// relocation entries for calls to absolute external addresses. Both tables
// are filled in during translation and resolved in two independent passes
// immediately before the arena is sealed.
package reloc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// patchback maps an arena offset holding a placeholder displacement to the
// arena-local offset it must end up pointing at.
type patchback struct {
	siteOffset   int
	targetOffset int
}

// relocation maps an arena offset holding a placeholder displacement to the
// absolute address it must end up pointing at.
type relocation struct {
	siteOffset int
	target     uintptr
}

// Writer is the subset of *arena.Arena the relocator needs: overwriting
// already-emitted bytes in place.
type Writer interface {
	WriteAt(offset int, code []byte) error
}

// Table accumulates patchback and relocation entries during translation and
// applies them once translation is complete.
type Table struct {
	patches     []patchback
	relocations []relocation
}

// AddPatchback records that the 4 placeholder bytes at siteOffset must be
// rewritten, once resolved, to the rel32 displacement from siteOffset+4 to
// targetOffset, both arena-local.
func (t *Table) AddPatchback(siteOffset, targetOffset int) {
	t.patches = append(t.patches, patchback{siteOffset, targetOffset})
}

// AddRelocation records that the 4 placeholder bytes at siteOffset must be
// rewritten, once resolved, to the rel32 displacement from the arena base +
// siteOffset + 4 to the absolute address target.
func (t *Table) AddRelocation(siteOffset int, target uintptr) {
	t.relocations = append(t.relocations, relocation{siteOffset, target})
}

// Resolve applies every recorded patchback and relocation entry against w,
// given the arena's base address (needed only for relocations). It must run
// after the last Emit and before the arena transitions to executable.
func (t *Table) Resolve(w Writer, arenaBase uintptr) error {
	for _, p := range t.patches {
		disp := int64(p.targetOffset) - int64(p.siteOffset) - 4
		if err := writeRel32(w, p.siteOffset, disp, "patchback"); err != nil {
			return err
		}
	}
	for _, r := range t.relocations {
		disp := int64(r.target) - int64(arenaBase) - int64(r.siteOffset) - 4
		if err := writeRel32(w, r.siteOffset, disp, "relocation"); err != nil {
			return err
		}
	}
	return nil
}

func writeRel32(w Writer, offset int, disp int64, kind string) error {
	if disp < math.MinInt32 || disp > math.MaxInt32 {
		return fmt.Errorf("reloc: %s displacement %d at offset %d out of ±2^31 range", kind, disp, offset)
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(int32(disp)))
	return w.WriteAt(offset, buf)
}
