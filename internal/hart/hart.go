// Package hart implements the single RV32IMA execution context: the
// register file, CSR file, privilege state, and the Step method that
// retires at most one instruction per call.
//
// Grounded on the teacher's emu/cpu package: a flat cpuState struct
// mutated in place by dense per-format switches, with trap delivery
// (teacher: PSW-swap on interrupt/program-check) and a device call-gate
// (teacher: SIO/TIO channel instructions) replaced by the RISC-V
// trap/SBI model this spec defines. The fetch/decode/execute/trap
// phase split mirrors the teacher's cpu.go run loop structure.
package hart

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rv32ima-sim/core/internal/bitfield"
	"github.com/rv32ima-sim/core/internal/csr"
	"github.com/rv32ima-sim/core/internal/decode"
	"github.com/rv32ima-sim/core/internal/memmap"
	"github.com/rv32ima-sim/core/internal/sv32"
)

// Privilege is one of the two modeled privilege levels.
type Privilege int

const (
	PrivSupervisor Privilege = iota
	PrivUser
)

func (p Privilege) String() string {
	if p == PrivUser {
		return "U"
	}
	return "S"
}

// Exception/interrupt cause codes, per the scause.code field.
const (
	CauseInstrMisaligned     = 0
	CauseInstrAccessFault    = 1
	CauseIllegalInstruction  = 2
	CauseBreakpoint          = 3
	CauseLoadMisaligned      = 4
	CauseLoadAccessFault     = 5
	CauseStoreAMOMisaligned  = 6
	CauseStoreAMOAccessFault = 7
	CauseUserECall           = 8
	CauseSupervisorECall     = 9
	CauseInstrPageFault      = 12
	CauseLoadPageFault       = 13
	CauseStoreAMOPageFault   = 15
)

// SBI call selectors (register a7).
const (
	sbiSetTimer       = 0
	sbiConsolePutchar = 1
	sbiConsoleGetchar = 2
	sbiShutdown       = 8
)

// Fatal-error categories named directly after the spec's error-handling
// design, so callers can errors.As on the specific failure by one of
// these five names regardless of which package actually defines the
// underlying type. Three alias errors the lower packages already raise;
// the other two alias the types defined just below, which model
// concepts (an unrecognized SBI selector, a double trap fault) no lower
// package has a home for.
type (
	ErrUnmappedAccess   = memmap.UnmappedAccessError
	ErrDecodeFailure    = decode.Error
	ErrPhysicalOverflow = sv32.PhysicalOverflowError
	ErrUnknownSBICall   = UnknownSBICallError
	ErrDoubleTrapFault  = DoubleTrapFaultError
)

// UnknownSBICallError is a fatal emulator error: a Supervisor ECALL
// named a selector this runtime does not implement.
type UnknownSBICallError struct {
	Selector uint32
}

func (e *UnknownSBICallError) Error() string {
	return fmt.Sprintf("hart: unknown SBI call %d", e.Selector)
}

// DoubleTrapFaultError is a fatal emulator error: the instruction page
// fault handler's own entry point is itself unfetchable.
type DoubleTrapFaultError struct {
	PC uint32
}

func (e *DoubleTrapFaultError) Error() string {
	return fmt.Sprintf("hart: page fault re-raised fetching trap entry at %#08x", e.PC)
}

// Callbacks are the three host collaborators a hart borrows for its
// lifetime. GetChar must not block; it returns -1 when no byte is
// available.
type Callbacks struct {
	PutChar  func(b byte)
	GetChar  func() int8
	Shutdown func()
}

// Boot addresses per the external interface contract.
const (
	BootPC  = 0x80400000
	BootDTB = 0x87000000
)

// Hart is one RV32IMA execution context.
type Hart struct {
	PC   uint32
	X    [32]uint32
	CSR  csr.File
	Priv Privilege

	ReservationValid bool

	Mem *memmap.Map
	cb  Callbacks

	timeCompare    uint64
	timebasePeriod uint64 // nanoseconds per time-CSR tick
	lastTime       time.Time
}

// New constructs a hart at the architectural reset state: pc at the
// kernel entry point, Supervisor privilege, a1 holding the device-tree
// pointer per the Linux RISC-V boot protocol, and every other register
// and CSR zero.
func New(mem *memmap.Map, cb Callbacks, timebaseHz uint64) *Hart {
	h := &Hart{
		PC:             BootPC,
		Priv:           PrivSupervisor,
		Mem:            mem,
		cb:             cb,
		timebasePeriod: 1_000_000_000 / timebaseHz,
		lastTime:       time.Now(),
	}
	h.X[11] = BootDTB
	return h
}

func (h *Hart) regGet(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	return h.X[n]
}

func (h *Hart) regSet(n, v uint32) {
	if n == 0 {
		return
	}
	h.X[n] = v
}

// Step retires at most one instruction. A non-nil error is always a
// fatal emulator error; guest-recoverable conditions are delivered as
// traps internally and never surface here.
func (h *Hart) Step() error {
	suppressed := false

	switch {
	case h.PC&0b11 != 0:
		h.trap(CauseInstrMisaligned, false, h.PC)
		suppressed = true

	default:
		if code, ok := h.pendingInterrupt(); ok {
			h.trap(code, true, 0)
			suppressed = true
			break
		}

		word, ferr := h.fetch(h.PC)
		switch {
		case errors.Is(ferr, sv32.ErrPageFault):
			h.trap(CauseInstrPageFault, false, h.PC)
			if _, err2 := h.translate(h.PC, sv32.AccessExecute); err2 != nil {
				if errors.Is(err2, sv32.ErrPageFault) {
					return &DoubleTrapFaultError{PC: h.PC}
				}
				return err2
			}
			suppressed = true
		case ferr != nil:
			return ferr
		default:
			d, derr := decode.Decode(word)
			if derr != nil {
				h.trap(CauseIllegalInstruction, false, 0)
				suppressed = true
				break
			}
			sup, err := h.dispatch(d)
			if err != nil {
				return err
			}
			suppressed = sup
		}
	}

	if !suppressed {
		h.PC += 4
	}
	h.tick()
	return nil
}

// Disassemble decodes the instruction at the current pc for diagnostic
// tracing. It performs the same fetch a real Step would (so it reflects
// the active address-translation state) but never mutates hart state;
// a translation or decode failure renders as "?" rather than erroring,
// since a trace line should never itself crash the host loop.
func (h *Hart) Disassemble() string {
	word, err := h.fetch(h.PC)
	if err != nil {
		return "?"
	}
	d, err := decode.Decode(word)
	if err != nil {
		return "?"
	}
	return decode.Disassemble(d)
}

func (h *Hart) translate(vaddr uint32, access sv32.Access) (uint32, error) {
	sum := bitfield.Bit(h.CSR.SStatus, csr.SStatusSUMBit) == 1
	mxr := bitfield.Bit(h.CSR.SStatus, csr.SStatusMXRBit) == 1
	return sv32.Translate(vaddr, access, h.CSR.SATP, h.Priv == PrivUser, sum, mxr, h.Mem)
}

func (h *Hart) fetch(pc uint32) (uint32, error) {
	phys, err := h.translate(pc, sv32.AccessExecute)
	if err != nil {
		return 0, err
	}
	return h.Mem.ReadWord(phys)
}

func (h *Hart) pendingInterrupt() (uint32, bool) {
	sie := bitfield.Bit(h.CSR.SStatus, csr.SStatusSIEBit) == 1
	if h.Priv != PrivUser && !sie {
		return 0, false
	}
	if bitfield.Bit(h.CSR.SIP, csr.SSIEBit) == 1 && bitfield.Bit(h.CSR.SIE, csr.SSIEBit) == 1 {
		return 1, true
	}
	if bitfield.Bit(h.CSR.SIP, csr.STIEBit) == 1 && bitfield.Bit(h.CSR.SIE, csr.STIEBit) == 1 {
		return 5, true
	}
	if bitfield.Bit(h.CSR.SIP, csr.SEIEBit) == 1 && bitfield.Bit(h.CSR.SIE, csr.SEIEBit) == 1 {
		return 9, true
	}
	return 0, false
}

// trap runs the common exception/interrupt prologue and redirects pc to
// stvec (vectored if this is an interrupt and stvec.mode selects it).
func (h *Hart) trap(code uint32, interrupt bool, tval uint32) {
	sie := bitfield.Bit(h.CSR.SStatus, csr.SStatusSIEBit)
	spp := uint32(0)
	if h.Priv == PrivSupervisor {
		spp = 1
	}

	st := h.CSR.SStatus
	st = bitfield.With32(st, csr.SStatusSPPBit, csr.SStatusSPPBit, spp)
	st = bitfield.With32(st, csr.SStatusSPIEBit, csr.SStatusSPIEBit, sie)
	st = bitfield.With32(st, csr.SStatusSIEBit, csr.SStatusSIEBit, 0)
	h.CSR.SStatus = st

	h.Priv = PrivSupervisor
	h.CSR.SEPC = h.PC
	cause := code
	if interrupt {
		cause |= 1 << 31
	}
	h.CSR.SCause = cause
	h.CSR.STval = tval

	mode := bitfield.Get32(h.CSR.STvec, 1, 0)
	base := bitfield.Get32(h.CSR.STvec, 31, 2) << 2
	if interrupt && mode == 1 {
		h.PC = base + 4*code
	} else {
		h.PC = base
	}
}

func (h *Hart) tick() {
	h.CSR.Cycle++
	h.CSR.Instret++

	now := time.Now()
	elapsed := now.Sub(h.lastTime)
	if elapsed <= 0 {
		return
	}
	ticks := uint64(elapsed.Nanoseconds()) / h.timebasePeriod
	if ticks == 0 {
		return
	}
	h.CSR.Time += ticks
	h.lastTime = h.lastTime.Add(time.Duration(ticks*h.timebasePeriod) * time.Nanosecond)
	if h.CSR.Time >= h.timeCompare {
		h.CSR.SIP = bitfield.With32(h.CSR.SIP, csr.STIEBit, csr.STIEBit, 1)
	}
}

func (h *Hart) dispatch(d decode.Decoded) (bool, error) {
	switch d.Format {
	case decode.FormatLoad:
		return h.execLoad(d)
	case decode.FormatStore:
		return h.execStore(d)
	case decode.FormatBranch:
		return h.execBranch(d), nil
	case decode.FormatJump:
		h.execJump(d)
		return true, nil
	case decode.FormatAMO:
		return h.execAMO(d)
	case decode.FormatOpImm:
		h.execOpImm(d)
		return false, nil
	case decode.FormatOp:
		h.execOp(d)
		return false, nil
	case decode.FormatSystem:
		return h.execSystem(d)
	case decode.FormatOpUI:
		h.execOpUI(d)
		return false, nil
	case decode.FormatFence:
		return false, nil
	default:
		h.trap(CauseIllegalInstruction, false, 0)
		return true, nil
	}
}

func (h *Hart) execLoad(d decode.Decoded) (bool, error) {
	eff := h.regGet(d.RS1) + d.IImm
	phys, terr := h.translate(eff, sv32.AccessRead)
	if terr != nil {
		if errors.Is(terr, sv32.ErrPageFault) {
			h.trap(CauseLoadPageFault, false, eff)
			return true, nil
		}
		return false, terr
	}

	switch d.Opcode {
	case decode.OpLB:
		b, err := h.Mem.ReadByte(phys)
		if err != nil {
			return false, err
		}
		h.regSet(d.RD, bitfield.SignExtend(uint32(b), 8))
	case decode.OpLBU:
		b, err := h.Mem.ReadByte(phys)
		if err != nil {
			return false, err
		}
		h.regSet(d.RD, uint32(b))
	case decode.OpLH:
		if eff&1 != 0 {
			h.trap(CauseLoadMisaligned, false, eff)
			return true, nil
		}
		w, err := h.Mem.ReadHalf(phys)
		if err != nil {
			return false, err
		}
		h.regSet(d.RD, bitfield.SignExtend(uint32(w), 16))
	case decode.OpLHU:
		if eff&1 != 0 {
			h.trap(CauseLoadMisaligned, false, eff)
			return true, nil
		}
		w, err := h.Mem.ReadHalf(phys)
		if err != nil {
			return false, err
		}
		h.regSet(d.RD, uint32(w))
	case decode.OpLW:
		if eff&3 != 0 {
			h.trap(CauseLoadMisaligned, false, eff)
			return true, nil
		}
		w, err := h.Mem.ReadWord(phys)
		if err != nil {
			return false, err
		}
		h.regSet(d.RD, w)
	}
	return false, nil
}

func (h *Hart) execStore(d decode.Decoded) (bool, error) {
	eff := h.regGet(d.RS1) + d.SImm
	phys, terr := h.translate(eff, sv32.AccessWrite)
	if terr != nil {
		if errors.Is(terr, sv32.ErrPageFault) {
			h.trap(CauseStoreAMOPageFault, false, eff)
			return true, nil
		}
		return false, terr
	}

	switch d.Opcode {
	case decode.OpSB:
		if err := h.Mem.WriteByte(phys, uint8(h.regGet(d.RS2))); err != nil {
			return false, err
		}
	case decode.OpSH:
		if eff&1 != 0 {
			h.trap(CauseStoreAMOMisaligned, false, eff)
			return true, nil
		}
		if err := h.Mem.WriteHalf(phys, uint16(h.regGet(d.RS2))); err != nil {
			return false, err
		}
	case decode.OpSW:
		if eff&3 != 0 {
			h.trap(CauseStoreAMOMisaligned, false, eff)
			return true, nil
		}
		if err := h.Mem.WriteWord(phys, h.regGet(d.RS2)); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (h *Hart) execBranch(d decode.Decoded) bool {
	a, b := h.regGet(d.RS1), h.regGet(d.RS2)
	var taken bool
	switch d.Opcode {
	case decode.OpBEQ:
		taken = a == b
	case decode.OpBNE:
		taken = a != b
	case decode.OpBLT:
		taken = int32(a) < int32(b)
	case decode.OpBGE:
		taken = int32(a) >= int32(b)
	case decode.OpBLTU:
		taken = a < b
	case decode.OpBGEU:
		taken = a >= b
	}
	if taken {
		h.PC += d.BImm
		return true
	}
	return false
}

func (h *Hart) execJump(d decode.Decoded) {
	switch d.Opcode {
	case decode.OpJAL:
		h.regSet(d.RD, h.PC+4)
		h.PC += d.JImm
	case decode.OpJALR:
		target := (h.regGet(d.RS1) + d.IImm) &^ 1
		h.regSet(d.RD, h.PC+4)
		h.PC = target
	}
}

func (h *Hart) execAMO(d decode.Decoded) (bool, error) {
	addr := h.regGet(d.RS1)
	if addr%4 != 0 {
		if d.Opcode == decode.OpLRW {
			h.trap(CauseLoadMisaligned, false, addr)
		} else {
			h.trap(CauseStoreAMOMisaligned, false, addr)
		}
		return true, nil
	}

	access := sv32.AccessWrite
	if d.Opcode == decode.OpLRW {
		access = sv32.AccessRead
	}
	phys, terr := h.translate(addr, access)
	if terr != nil {
		if errors.Is(terr, sv32.ErrPageFault) {
			if d.Opcode == decode.OpLRW {
				h.trap(CauseLoadPageFault, false, addr)
			} else {
				h.trap(CauseStoreAMOPageFault, false, addr)
			}
			return true, nil
		}
		return false, terr
	}

	switch d.Opcode {
	case decode.OpLRW:
		w, err := h.Mem.ReadWord(phys)
		if err != nil {
			return false, err
		}
		h.regSet(d.RD, w)
		h.ReservationValid = true
		return false, nil
	case decode.OpSCW:
		if h.ReservationValid {
			if err := h.Mem.WriteWord(phys, h.regGet(d.RS2)); err != nil {
				return false, err
			}
			h.regSet(d.RD, 0)
			h.ReservationValid = false
		} else {
			h.regSet(d.RD, 1)
		}
		return false, nil
	}

	old, err := h.Mem.ReadWord(phys)
	if err != nil {
		return false, err
	}
	rs2 := h.regGet(d.RS2)
	var result uint32
	switch d.Opcode {
	case decode.OpAMOSWAPW:
		result = rs2
	case decode.OpAMOADDW:
		result = old + rs2
	case decode.OpAMOXORW:
		result = old ^ rs2
	case decode.OpAMOANDW:
		result = old & rs2
	case decode.OpAMOORW:
		result = old | rs2
	case decode.OpAMOMINW:
		if int32(old) < int32(rs2) {
			result = old
		} else {
			result = rs2
		}
	case decode.OpAMOMAXW:
		if int32(old) > int32(rs2) {
			result = old
		} else {
			result = rs2
		}
	case decode.OpAMOMINUW:
		if old < rs2 {
			result = old
		} else {
			result = rs2
		}
	case decode.OpAMOMAXUW:
		if old > rs2 {
			result = old
		} else {
			result = rs2
		}
	}
	if err := h.Mem.WriteWord(phys, result); err != nil {
		return false, err
	}
	h.regSet(d.RD, old)
	return false, nil
}

func (h *Hart) execOpImm(d decode.Decoded) {
	a := h.regGet(d.RS1)
	var result uint32
	shamt := d.Shamt & 0x1f
	switch d.Opcode {
	case decode.OpADDI:
		result = a + d.IImm
	case decode.OpSLTI:
		if int32(a) < int32(d.IImm) {
			result = 1
		}
	case decode.OpSLTIU:
		if a < d.IImm {
			result = 1
		}
	case decode.OpXORI:
		result = a ^ d.IImm
	case decode.OpORI:
		result = a | d.IImm
	case decode.OpANDI:
		result = a & d.IImm
	case decode.OpSLLI:
		result = a << shamt
	case decode.OpSRLI:
		result = a >> shamt
	case decode.OpSRAI:
		result = uint32(int32(a) >> shamt)
	}
	h.regSet(d.RD, result)
}

func (h *Hart) execOp(d decode.Decoded) {
	a, b := h.regGet(d.RS1), h.regGet(d.RS2)
	var result uint32
	switch d.Opcode {
	case decode.OpADD:
		result = a + b
	case decode.OpSUB:
		result = a - b
	case decode.OpSLL:
		result = a << (b & 0x1f)
	case decode.OpSLT:
		if int32(a) < int32(b) {
			result = 1
		}
	case decode.OpSLTU:
		if a < b {
			result = 1
		}
	case decode.OpXOR:
		result = a ^ b
	case decode.OpSRL:
		result = a >> (b & 0x1f)
	case decode.OpSRA:
		result = uint32(int32(a) >> (b & 0x1f))
	case decode.OpOR:
		result = a | b
	case decode.OpAND:
		result = a & b
	case decode.OpMUL:
		result = a * b
	case decode.OpMULH:
		result = uint32((int64(int32(a)) * int64(int32(b))) >> 32)
	case decode.OpMULHSU:
		result = uint32((int64(int32(a)) * int64(b)) >> 32)
	case decode.OpMULHU:
		result = uint32((uint64(a) * uint64(b)) >> 32)
	case decode.OpDIV:
		ai, bi := int32(a), int32(b)
		switch {
		case bi == 0:
			result = 0xFFFFFFFF
		case ai == math.MinInt32 && bi == -1:
			result = uint32(ai)
		default:
			result = uint32(ai / bi)
		}
	case decode.OpDIVU:
		if b == 0 {
			result = 0xFFFFFFFF
		} else {
			result = a / b
		}
	case decode.OpREM:
		ai, bi := int32(a), int32(b)
		switch {
		case bi == 0:
			result = a
		case ai == math.MinInt32 && bi == -1:
			result = 0
		default:
			result = uint32(ai % bi)
		}
	case decode.OpREMU:
		if b == 0 {
			result = a
		} else {
			result = a % b
		}
	}
	h.regSet(d.RD, result)
}

func (h *Hart) execSystem(d decode.Decoded) (bool, error) {
	switch d.Opcode {
	case decode.OpSRET:
		spp := bitfield.Bit(h.CSR.SStatus, csr.SStatusSPPBit)
		spie := bitfield.Bit(h.CSR.SStatus, csr.SStatusSPIEBit)
		st := h.CSR.SStatus
		st = bitfield.With32(st, csr.SStatusSIEBit, csr.SStatusSIEBit, spie)
		st = bitfield.With32(st, csr.SStatusSPIEBit, csr.SStatusSPIEBit, 1)
		st = bitfield.With32(st, csr.SStatusSPPBit, csr.SStatusSPPBit, 0)
		h.CSR.SStatus = st
		if spp == 1 {
			h.Priv = PrivSupervisor
		} else {
			h.Priv = PrivUser
		}
		h.PC = h.CSR.SEPC
		return true, nil

	case decode.OpECALL:
		if h.Priv == PrivUser {
			h.trap(CauseUserECall, false, 0)
			return true, nil
		}
		return h.execSBI()

	case decode.OpEBREAK, decode.OpWFI,
		decode.OpSFENCEVMA, decode.OpSINVALVMA, decode.OpSFENCEWINVAL, decode.OpSFENCEINVALIR:
		return false, nil

	case decode.OpCSRRW, decode.OpCSRRS, decode.OpCSRRC,
		decode.OpCSRRWI, decode.OpCSRRSI, decode.OpCSRRCI:
		return h.execCSR(d)
	}
	return false, nil
}

func (h *Hart) execSBI() (bool, error) {
	selector := h.regGet(17)
	a0 := h.regGet(10)
	a1 := h.regGet(11)

	switch selector {
	case sbiSetTimer:
		h.timeCompare = (uint64(a1) << 32) | uint64(a0)
		h.CSR.SIP = bitfield.With32(h.CSR.SIP, csr.STIEBit, csr.STIEBit, 0)
	case sbiConsolePutchar:
		h.cb.PutChar(byte(a0))
	case sbiConsoleGetchar:
		h.regSet(10, uint32(int32(h.cb.GetChar())))
	case sbiShutdown:
		h.cb.Shutdown()
		h.regSet(10, 0)
	default:
		return false, &UnknownSBICallError{Selector: selector}
	}
	return false, nil
}

func (h *Hart) execCSR(d decode.Decoded) (bool, error) {
	addr := csr.Addr(bitfield.CSRIndex(d.Word))

	if gateBit, ok := csr.IsCounter(addr); ok {
		if h.Priv == PrivUser && bitfield.Bit(h.CSR.SCounterEn, uint(gateBit)) == 0 {
			h.trap(CauseIllegalInstruction, false, 0)
			return true, nil
		}
	}

	class := csr.AccessClass(addr)
	if class == csr.ClassUnknown {
		h.trap(CauseIllegalInstruction, false, 0)
		return true, nil
	}
	if h.Priv == PrivUser && class == csr.ClassSRW {
		h.trap(CauseIllegalInstruction, false, 0)
		return true, nil
	}

	imm := d.Opcode == decode.OpCSRRWI || d.Opcode == decode.OpCSRRSI || d.Opcode == decode.OpCSRRCI
	var src uint32
	if imm {
		src = d.RS1
	} else {
		src = h.regGet(d.RS1)
	}

	var writes bool
	switch d.Opcode {
	case decode.OpCSRRW, decode.OpCSRRWI:
		writes = true
	case decode.OpCSRRS, decode.OpCSRRSI, decode.OpCSRRC, decode.OpCSRRCI:
		writes = src != 0
	}

	if writes && class == csr.ClassURO {
		h.trap(CauseIllegalInstruction, false, 0)
		return true, nil
	}

	cur, err := h.CSR.Get(addr)
	if err != nil {
		return false, err
	}
	h.regSet(d.RD, cur)

	if !writes {
		return false, nil
	}

	var next uint32
	switch d.Opcode {
	case decode.OpCSRRW, decode.OpCSRRWI:
		next = src
	case decode.OpCSRRS, decode.OpCSRRSI:
		next = cur | src
	case decode.OpCSRRC, decode.OpCSRRCI:
		next = cur &^ src
	}
	if err := h.CSR.Set(addr, next); err != nil {
		return false, err
	}
	return false, nil
}

func (h *Hart) execOpUI(d decode.Decoded) {
	switch d.Opcode {
	case decode.OpLUI:
		h.regSet(d.RD, d.UImm)
	case decode.OpAUIPC:
		h.regSet(d.RD, h.PC+d.UImm)
	}
}
