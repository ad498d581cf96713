// Package sv32 implements the Sv32 two-level page-table walk: 4 KiB
// pages, optional 4 MiB superpages, no TLB — every call repeats the
// full walk, per the spec's explicit non-goal of TLB caching.
//
// Grounded on the teacher's emu/cpu.go transAddr (segment/page table
// walk, protection checks, translation-fault propagation), with the
// TLB fast path removed and the S/370 segment+page scheme replaced by
// Sv32's fixed two-level layout.
package sv32

import (
	"errors"
	"fmt"

	"github.com/rv32ima-sim/core/internal/bitfield"
	"github.com/rv32ima-sim/core/internal/memmap"
)

// Access is the kind of reference being translated.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
	AccessExecute
)

// ErrPageFault is returned for any of the recoverable Sv32 walk
// failures in spec §4.3: invalid/misconfigured PTE, permission
// mismatch, or a misaligned superpage. The caller (the hart executor)
// turns this into the appropriate page-fault exception for the access
// kind that was being attempted.
var ErrPageFault = errors.New("sv32: page fault")

// PhysicalOverflowError is a fatal emulator error: the composed
// physical address set bits beyond the 32-bit backing memory, which
// the modeled profile cannot represent.
type PhysicalOverflowError struct {
	Addr uint64
}

func (e *PhysicalOverflowError) Error() string {
	return fmt.Sprintf("sv32: translated address %#010x exceeds 32 bits", e.Addr)
}

// PTE bit positions.
const (
	pteV   = 0
	pteR   = 1
	pteW   = 2
	pteX   = 3
	pteU   = 4
	pteG   = 5
	pteA   = 6
	pteD   = 7
	pteHi  = 31
	pteLo  = 10 // PPN0 low bit within the PTE word (bits 19:10)
	pteMid = 20 // PPN1 low bit within the PTE word (bits 31:20)
)

type pte struct {
	raw  uint32
	ppn0 uint32 // bits 19:10
	ppn1 uint32 // bits 31:20
}

func decodePTE(raw uint32) pte {
	return pte{
		raw:  raw,
		ppn0: bitfield.Get32(raw, 19, 10),
		ppn1: bitfield.Get32(raw, 31, 20),
	}
}

func (p pte) bit(n uint) bool { return bitfield.Bit(p.raw, n) == 1 }

// Translate resolves vaddr under the given satp value and mode flags.
// If satp's mode bit is clear, translation is the identity. mem is used
// to read page-table entries; a read failure there (no registered
// handler) is a fatal emulator error and is returned unwrapped.
func Translate(vaddr uint32, access Access, satp uint32, userMode, sum, mxr bool, mem *memmap.Map) (uint32, error) {
	if bitfield.Bit(satp, 31) == 0 {
		return vaddr, nil
	}

	ppn := bitfield.Get32(satp, 21, 0)
	base := uint64(ppn) * 4096

	vpn := [2]uint32{
		bitfield.Get32(vaddr, 21, 12), // vpn0
		bitfield.Get32(vaddr, 31, 22), // vpn1
	}

	for i := 1; i >= 0; i-- {
		pteAddr := base + uint64(vpn[i])*4
		if pteAddr > 0xFFFFFFFF {
			return 0, &PhysicalOverflowError{Addr: pteAddr}
		}
		raw, err := mem.ReadWord(uint32(pteAddr))
		if err != nil {
			return 0, err
		}
		p := decodePTE(raw)

		if !p.bit(pteV) || (!p.bit(pteR) && p.bit(pteW)) {
			return 0, ErrPageFault
		}

		if p.bit(pteR) || p.bit(pteX) {
			// Leaf PTE.
			if userMode && !p.bit(pteU) {
				return 0, ErrPageFault
			}
			if access == AccessWrite && !p.bit(pteW) {
				return 0, ErrPageFault
			}
			if access == AccessExecute && !p.bit(pteX) {
				return 0, ErrPageFault
			}
			if access == AccessRead && !(p.bit(pteR) || (mxr && p.bit(pteX))) {
				return 0, ErrPageFault
			}
			if !userMode && p.bit(pteU) {
				if access == AccessExecute {
					return 0, ErrPageFault
				}
				if !sum {
					return 0, ErrPageFault
				}
			}
			if i == 1 && p.ppn0 != 0 {
				return 0, ErrPageFault // misaligned superpage
			}
			if !p.bit(pteA) {
				return 0, ErrPageFault
			}
			if access == AccessWrite && !p.bit(pteD) {
				return 0, ErrPageFault
			}

			offset := uint64(bitfield.Get32(vaddr, 11, 0))
			var ppn0, ppn1 uint64
			if i == 1 {
				ppn0 = uint64(vpn[0])
			} else {
				ppn0 = uint64(p.ppn0)
			}
			ppn1 = uint64(p.ppn1)
			phys := (ppn1 << 22) | (ppn0 << 12) | offset
			if phys > 0xFFFFFFFF {
				return 0, &PhysicalOverflowError{Addr: phys}
			}
			return uint32(phys), nil
		}

		// Non-leaf: descend.
		base = (uint64(p.ppn1)<<10 | uint64(p.ppn0)) * 4096
	}

	return 0, ErrPageFault
}
