// Package csr holds the control/status register file: the 12-bit
// address space, the compile-time access class per recognized address,
// and the bit-field layout of each register.
//
// Grounded on the teacher's cpuState flat-field CSR-adjacent state
// (emu/cpu/cpudefs.go) and the dense address-keyed dispatch in
// config/configparser's getModel/RegisterModel pair, generalized into
// an access-class table plus a flat struct of plain uint32/uint64
// fields per the spec's design note: keep CSRs as plain integers, no
// aliasing unions.
package csr

import "fmt"

// Addr is a 12-bit CSR address.
type Addr = uint32

// Recognized CSR addresses.
const (
	Cycle    Addr = 0xC00
	CycleH   Addr = 0xC80
	Time     Addr = 0xC01
	TimeH    Addr = 0xC81
	Instret  Addr = 0xC02
	InstretH Addr = 0xC82

	SStatus    Addr = 0x100
	SIE        Addr = 0x104
	STvec      Addr = 0x105
	SCounterEn Addr = 0x106
	SScratch   Addr = 0x140
	SEPC       Addr = 0x141
	SCause     Addr = 0x142
	STval      Addr = 0x143
	SIP        Addr = 0x144
	SATP       Addr = 0x180
)

// sstatus bit positions.
const (
	SStatusSIEBit  = 1
	SStatusSPIEBit = 5
	SStatusSPPBit  = 8
	SStatusSUMBit  = 18
	SStatusMXRBit  = 19
	SStatusSDBit   = 31
)

// sie/sip bit positions.
const (
	SSIEBit = 1
	STIEBit = 5
	SEIEBit = 9
)

// stvec bit layout.
const (
	STvecModeLo = 0
	STvecModeHi = 1
	STvecBaseLo = 2
	STvecBaseHi = 31
)

// scounteren bit positions.
const (
	SCounterEnCYBit = 0
	SCounterEnTMBit = 1
	SCounterEnIRBit = 2
)

// satp bit layout.
const (
	SATPModeBit = 31
)

// Class is the access taxonomy of a CSR address.
type Class int

const (
	ClassUnknown Class = iota
	ClassURO           // user-read-only
	ClassURW           // user-read-write (unused by any recognized address)
	ClassSRW           // supervisor-read-write
)

// AccessClass returns the access class of addr, or ClassUnknown if addr
// is not a recognized CSR.
func AccessClass(addr Addr) Class {
	switch addr {
	case Cycle, CycleH, Time, TimeH, Instret, InstretH:
		return ClassURO
	case SStatus, SIE, STvec, SCounterEn, SScratch, SEPC, SCause, STval, SIP, SATP:
		return ClassSRW
	default:
		return ClassUnknown
	}
}

// IsCounter reports whether addr is one of the cycle/time/instret
// (or -h) counter CSRs, and which scounteren bit gates User access to
// it.
func IsCounter(addr Addr) (gateBit int, ok bool) {
	switch addr {
	case Cycle, CycleH:
		return SCounterEnCYBit, true
	case Time, TimeH:
		return SCounterEnTMBit, true
	case Instret, InstretH:
		return SCounterEnIRBit, true
	default:
		return 0, false
	}
}

// File holds all recognized control/status registers. Fields are plain
// integers; callers apply bit-field views via the constants above
// rather than through aliasing structs.
type File struct {
	Cycle   uint64
	Time    uint64
	Instret uint64

	SStatus    uint32
	SIE        uint32
	STvec      uint32
	SCounterEn uint32
	SScratch   uint32
	SEPC       uint32
	SCause     uint32
	STval      uint32
	SIP        uint32
	SATP       uint32
}

// UnknownCSRError is returned by Get/Set for an address AccessClass
// does not recognize, and by Set for the read-only counter addresses.
type UnknownCSRError struct {
	Addr Addr
}

func (e *UnknownCSRError) Error() string {
	return fmt.Sprintf("csr: unrecognized address %#03x", e.Addr)
}

// Get reads the raw 32-bit value of addr.
func (f *File) Get(addr Addr) (uint32, error) {
	switch addr {
	case Cycle:
		return uint32(f.Cycle), nil
	case CycleH:
		return uint32(f.Cycle >> 32), nil
	case Time:
		return uint32(f.Time), nil
	case TimeH:
		return uint32(f.Time >> 32), nil
	case Instret:
		return uint32(f.Instret), nil
	case InstretH:
		return uint32(f.Instret >> 32), nil
	case SStatus:
		return f.SStatus, nil
	case SIE:
		return f.SIE, nil
	case STvec:
		return f.STvec, nil
	case SCounterEn:
		return f.SCounterEn, nil
	case SScratch:
		return f.SScratch, nil
	case SEPC:
		return f.SEPC, nil
	case SCause:
		return f.SCause, nil
	case STval:
		return f.STval, nil
	case SIP:
		return f.SIP, nil
	case SATP:
		return f.SATP, nil
	default:
		return 0, &UnknownCSRError{Addr: addr}
	}
}

// Set writes the raw 32-bit value of addr. Callers are responsible for
// rejecting writes to URO addresses before calling Set; Set itself
// returns an UnknownCSRError both for unknown addresses and for the
// URO counter addresses.
func (f *File) Set(addr Addr, value uint32) error {
	switch addr {
	case SStatus:
		f.SStatus = value
	case SIE:
		f.SIE = value
	case STvec:
		f.STvec = value
	case SCounterEn:
		f.SCounterEn = value
	case SScratch:
		f.SScratch = value
	case SEPC:
		f.SEPC = value
	case SCause:
		f.SCause = value
	case STval:
		f.STval = value
	case SIP:
		f.SIP = value
	case SATP:
		f.SATP = value
	case Cycle, CycleH, Time, TimeH, Instret, InstretH:
		return &UnknownCSRError{Addr: addr} // URO — caller should never reach here
	default:
		return &UnknownCSRError{Addr: addr}
	}
	return nil
}
